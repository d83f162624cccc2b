package snmp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPacket_GetRequestRoundTripsThroughBER(t *testing.T) {
	c := NewClient("127.0.0.1", "public")
	packet, err := c.buildPacket(tagGetReq, "1.3.6.1.2.1.1.1.0")
	require.NoError(t, err)
	require.NotEmpty(t, packet)
	require.Equal(t, byte(tagSequence), packet[0])
}

func TestIsSubtreeOf_WalkTermination(t *testing.T) {
	require.True(t, isSubtreeOf("1.3.6.1.2.1.4.22.1.2.1.192.168.1.1", "1.3.6.1.2.1.4.22.1.2"))
	require.False(t, isSubtreeOf("1.3.6.1.2.1.4.23.0", "1.3.6.1.2.1.4.22.1.2"))
	require.True(t, isSubtreeOf("1.3.6.1.2.1.4.22.1.2", "1.3.6.1.2.1.4.22.1.2"))
}

func TestEncodeDecodeOID_RoundTrip(t *testing.T) {
	enc, err := encodeOID("1.3.6.1.2.1.1.1.0")
	require.NoError(t, err)
	tv, rest, err := decodeTLV(enc, 0)
	require.NoError(t, err)
	require.Equal(t, len(enc), rest)
	got, err := decodeOID(tv.Content)
	require.NoError(t, err)
	require.Equal(t, "1.3.6.1.2.1.1.1.0", got)
}

func TestDecodeInteger_TwosComplement(t *testing.T) {
	require.Equal(t, int64(127), decodeInteger([]byte{0x7F}))
	require.Equal(t, int64(128), decodeInteger([]byte{0x00, 0x80}))
	require.Equal(t, int64(-1), decodeInteger([]byte{0xFF}))
	require.Equal(t, int64(-128), decodeInteger([]byte{0x80}))
}
