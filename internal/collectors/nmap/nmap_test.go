package nmap

import (
	"context"
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/model"
)

const sampleXML = `<?xml version="1.0"?>
<nmaprun>
  <host>
    <status state="up"/>
    <address addr="192.168.1.50" addrtype="ipv4"/>
    <address addr="AA:BB:CC:DD:EE:FF" addrtype="mac"/>
    <hostnames><hostname name="desktop.lan"/></hostnames>
    <ports>
      <port portid="22"><state state="open"/><service name="ssh"/></port>
      <port portid="80"><state state="closed"/><service name="http"/></port>
    </ports>
  </host>
  <host>
    <status state="down"/>
    <address addr="192.168.1.51" addrtype="ipv4"/>
  </host>
</nmaprun>`

func TestParseHost_ExtractsIdentityAndOpenPorts(t *testing.T) {
	var run nmapRun
	require.NoError(t, xml.Unmarshal([]byte(sampleXML), &run))
	require.Len(t, run.Hosts, 2)

	rec, extra := parseHost(run.Hosts[0], 1000)
	require.Equal(t, "192.168.1.50", *rec.IP)
	require.Equal(t, "AA-BB-CC-DD-EE-FF", *rec.MAC)
	require.Equal(t, "desktop.lan", *rec.DNSHostname)
	require.Equal(t, "22(ssh)", extra[model.ExtraNMAPServices])
}

type recordingStore struct {
	recs []model.NetworkInterfaceInfo
}

func (s *recordingStore) AddNetworkInfo(rec model.NetworkInterfaceInfo, extra map[model.ExtraInfoType]string) error {
	s.recs = append(s.recs, rec)
	return nil
}

func TestParseHost_SkipsDownHostsAtCheckResultLevel(t *testing.T) {
	require.Equal(t, "down", func() string {
		var run nmapRun
		xml.Unmarshal([]byte(sampleXML), &run)
		return run.Hosts[1].Status.State
	}())

	var run nmapRun
	require.NoError(t, xml.Unmarshal([]byte(sampleXML), &run))
	s := &recordingStore{}
	b := New(s, clock.NewMockClock(time.Unix(1000, 0)), nil, nil, false)
	b.result = &run
	b.checkResult(context.Background())
	require.Len(t, s.recs, 1)
	require.Equal(t, "192.168.1.50", *s.recs[0].IP)
}
