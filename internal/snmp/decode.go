package snmp

import "fmt"

// berValue is one decoded BER TLV: tag plus raw content bytes (nested
// structures keep their content undecoded until the caller recurses).
type berValue struct {
	Tag     byte
	Content []byte
}

// decodeTLV reads one TLV starting at offset, returning the value and the
// offset of the next TLV.
func decodeTLV(buf []byte, offset int) (berValue, int, error) {
	if offset >= len(buf) {
		return berValue{}, 0, fmt.Errorf("snmp: truncated BER at offset %d", offset)
	}
	tag := buf[offset]
	offset++
	if offset >= len(buf) {
		return berValue{}, 0, fmt.Errorf("snmp: truncated BER length")
	}
	length, offset, err := decodeLength(buf, offset)
	if err != nil {
		return berValue{}, 0, err
	}
	if offset+length > len(buf) {
		return berValue{}, 0, fmt.Errorf("snmp: BER length %d exceeds buffer", length)
	}
	content := buf[offset : offset+length]
	return berValue{Tag: tag, Content: content}, offset + length, nil
}

func decodeLength(buf []byte, offset int) (int, int, error) {
	b := buf[offset]
	offset++
	if b&0x80 == 0 {
		return int(b), offset, nil
	}
	n := int(b & 0x7F)
	if offset+n > len(buf) {
		return 0, 0, fmt.Errorf("snmp: truncated BER long-form length")
	}
	length := 0
	for i := 0; i < n; i++ {
		length = length<<8 | int(buf[offset+i])
	}
	return length, offset + n, nil
}

// decodeInteger decodes a two's-complement BER INTEGER content.
func decodeInteger(content []byte) int64 {
	if len(content) == 0 {
		return 0
	}
	var v int64
	neg := content[0]&0x80 != 0
	for _, b := range content {
		v = v<<8 | int64(b)
	}
	if neg {
		v -= 1 << (8 * uint(len(content)))
	}
	return v
}

// Varbind is one decoded (oid, value) pair from a GetResponse PDU.
type Varbind struct {
	OID     string
	Tag     byte
	Content []byte
}

// AsInt interprets the varbind's content as an INTEGER.
func (v Varbind) AsInt() int64 { return decodeInteger(v.Content) }

// AsString interprets the varbind's content as an OCTET STRING.
func (v Varbind) AsString() string { return string(v.Content) }

// decodeResponse parses a full SNMPv1 Message (SEQUENCE { version, community,
// PDU { request-id, error-status, error-index, varbind-list } }) and returns
// the decoded varbinds.
func decodeResponse(packet []byte) ([]Varbind, error) {
	msg, _, err := decodeTLV(packet, 0)
	if err != nil {
		return nil, err
	}
	if msg.Tag != tagSequence {
		return nil, fmt.Errorf("snmp: response is not a SEQUENCE")
	}

	off := 0
	// version
	_, off, err = decodeTLV(msg.Content, off)
	if err != nil {
		return nil, err
	}
	// community
	_, off, err = decodeTLV(msg.Content, off)
	if err != nil {
		return nil, err
	}
	pdu, _, err := decodeTLV(msg.Content, off)
	if err != nil {
		return nil, err
	}
	if pdu.Tag != tagGetResp {
		return nil, fmt.Errorf("snmp: expected GetResponse PDU, got tag 0x%x", pdu.Tag)
	}

	poff := 0
	// request-id
	_, poff, err = decodeTLV(pdu.Content, poff)
	if err != nil {
		return nil, err
	}
	errStatus, poff, err := decodeTLV(pdu.Content, poff)
	if err != nil {
		return nil, err
	}
	if decodeInteger(errStatus.Content) != 0 {
		return nil, fmt.Errorf("snmp: device returned error-status %d", decodeInteger(errStatus.Content))
	}
	// error-index
	_, poff, err = decodeTLV(pdu.Content, poff)
	if err != nil {
		return nil, err
	}

	varbindList, _, err := decodeTLV(pdu.Content, poff)
	if err != nil {
		return nil, err
	}

	var out []Varbind
	voff := 0
	for voff < len(varbindList.Content) {
		vb, next, err := decodeTLV(varbindList.Content, voff)
		if err != nil {
			return nil, err
		}
		voff = next

		ioff := 0
		oidTLV, ioff, err := decodeTLV(vb.Content, ioff)
		if err != nil {
			return nil, err
		}
		oidStr, err := decodeOID(oidTLV.Content)
		if err != nil {
			return nil, err
		}
		valTLV, _, err := decodeTLV(vb.Content, ioff)
		if err != nil {
			return nil, err
		}
		out = append(out, Varbind{OID: oidStr, Tag: valTLV.Tag, Content: valTLV.Content})
	}
	return out, nil
}
