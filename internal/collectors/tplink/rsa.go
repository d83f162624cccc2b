package tplink

import "math/big"

// encryptNonstandard implements the router's nonstandard RSA padding scheme,
// byte-for-byte equivalent to original_source/pet_monitor/tplink_scraper/custom_rsa.py's
// Custom_PKCS115_Cipher.encrypt: the plaintext is zero-padded up to the
// modulus length and encrypted as a single raw modular exponentiation — no
// PKCS#1 v1.5 random padding. Per SPEC_FULL.md's Design Notes this is kept
// as a deliberate, isolated primitive and must never be routed through
// crypto/rsa's padded encryption.
func encryptNonstandard(n, e *big.Int, plaintext []byte) []byte {
	k := (n.BitLen() + 7) / 8

	em := make([]byte, k)
	copy(em, plaintext) // plaintext followed by zero padding to modulus length

	emInt := new(big.Int).SetBytes(em)
	cInt := new(big.Int).Exp(emInt, e, n) // raw m^e mod N, no padding scheme

	c := cInt.Bytes()
	if len(c) < k {
		padded := make([]byte, k)
		copy(padded[k-len(c):], c)
		c = padded
	}
	return c
}
