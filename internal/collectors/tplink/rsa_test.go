package tplink

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptNonstandard_ZeroPadsRatherThanRandomPads(t *testing.T) {
	// Small toy key so the exponentiation is easy to check by hand:
	// n = 3233 (=61*53), e = 17.
	n := big.NewInt(3233)
	e := big.NewInt(17)

	c1 := encryptNonstandard(n, e, []byte{65}) // single byte plaintext, rest zero-padded
	c2 := encryptNonstandard(n, e, []byte{65})

	// Deterministic: no random padding means the same plaintext always
	// produces the same ciphertext, unlike PKCS#1 v1.5.
	require.Equal(t, c1, c2)

	k := (n.BitLen() + 7) / 8
	require.Len(t, c1, k)
}

func TestEncryptNonstandard_OutputLengthMatchesModulus(t *testing.T) {
	n, ok := new(big.Int).SetString("C9A8B5F1", 16)
	require.True(t, ok)
	e := big.NewInt(65537)

	c := encryptNonstandard(n, e, []byte("hunter2"))
	k := (n.BitLen() + 7) / 8
	require.Len(t, c, k)
}
