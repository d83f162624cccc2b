package snmp

import (
	"fmt"
	"math/rand"
	"net"
	"time"
)

const (
	recvTimeout = 1 * time.Second
	recvRetries = 1
)

// Client speaks SNMPv1 GetRequest/GetNextRequest to a single host:161.
type Client struct {
	host      string
	community string
}

// NewClient creates a Client targeting host on UDP/161 with community.
func NewClient(host, community string) *Client {
	return &Client{host: host, community: community}
}

func (c *Client) buildPacket(pduTag byte, oid string) ([]byte, error) {
	oidBytes, err := encodeOID(oid)
	if err != nil {
		return nil, err
	}
	varbind := encodeSequence(oidBytes, encodeNull())
	varbindList := encodeSequence(varbind)
	requestID := int64(rand.Intn(1 << 30))
	pdu := tlv(pduTag, concat(
		encodeInteger(requestID),
		encodeInteger(0), // error-status
		encodeInteger(0), // error-index
		varbindList,
	))
	msg := encodeSequence(
		encodeInteger(0), // SNMPv1
		encodeOctetString(c.community),
		pdu,
	)
	return msg, nil
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// send transmits one request and waits for a response, with one retry on
// timeout, per SPEC_FULL.md §5 (SNMP UDP recv 1s with 1 retry).
func (c *Client) send(packet []byte) ([]Varbind, error) {
	conn, err := net.Dial("udp", fmt.Sprintf("%s:161", c.host))
	if err != nil {
		return nil, fmt.Errorf("snmp: dial %s: %w", c.host, err)
	}
	defer conn.Close()

	var lastErr error
	for attempt := 0; attempt <= recvRetries; attempt++ {
		if _, err := conn.Write(packet); err != nil {
			return nil, fmt.Errorf("snmp: send to %s: %w", c.host, err)
		}
		conn.SetReadDeadline(time.Now().Add(recvTimeout))
		buf := make([]byte, 65535)
		n, err := conn.Read(buf)
		if err != nil {
			lastErr = err
			continue
		}
		return decodeResponse(buf[:n])
	}
	return nil, fmt.Errorf("snmp: no response from %s: %w", c.host, lastErr)
}

// Get performs a single GetRequest for oid.
func (c *Client) Get(oid string) (Varbind, error) {
	packet, err := c.buildPacket(tagGetReq, oid)
	if err != nil {
		return Varbind{}, err
	}
	vbs, err := c.send(packet)
	if err != nil {
		return Varbind{}, err
	}
	if len(vbs) == 0 {
		return Varbind{}, fmt.Errorf("snmp: empty response for %s", oid)
	}
	return vbs[0], nil
}

// GetNext performs a single GetNextRequest for oid.
func (c *Client) GetNext(oid string) (Varbind, error) {
	packet, err := c.buildPacket(tagGetNext, oid)
	if err != nil {
		return Varbind{}, err
	}
	vbs, err := c.send(packet)
	if err != nil {
		return Varbind{}, err
	}
	if len(vbs) == 0 {
		return Varbind{}, fmt.Errorf("snmp: empty response for %s", oid)
	}
	return vbs[0], nil
}

// Walk performs repeated GetNextRequests starting at root, stopping when the
// returned OID no longer begins with root.
func (c *Client) Walk(root string) ([]Varbind, error) {
	var out []Varbind
	current := root
	for {
		vb, err := c.GetNext(current)
		if err != nil {
			return out, err
		}
		if !isSubtreeOf(vb.OID, root) {
			break
		}
		out = append(out, vb)
		current = vb.OID
		if len(out) > 10000 {
			return out, fmt.Errorf("snmp: walk of %s exceeded sanity limit", root)
		}
	}
	return out, nil
}
