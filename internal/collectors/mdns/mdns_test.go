package mdns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"lanpets.io/monitor/internal/model"
)

func TestTxtProperty_FindsMacKey(t *testing.T) {
	require.Equal(t, "aa:bb:cc:dd:ee:ff", txtProperty([]string{"version=1", "mac=aa:bb:cc:dd:ee:ff"}, "mac"))
	require.Equal(t, "", txtProperty([]string{"version=1"}, "mac"))
}

func TestStandardizeMAC_ColonsToDashesUppercase(t *testing.T) {
	require.Equal(t, "AA-BB-CC-DD-EE-FF", standardizeMAC("aa:bb:cc:dd:ee:ff"))
}

type recordingStore struct {
	recs []model.NetworkInterfaceInfo
}

func (s *recordingStore) AddNetworkInfo(rec model.NetworkInterfaceInfo, extra map[model.ExtraInfoType]string) error {
	s.recs = append(s.recs, rec)
	return nil
}

func TestUpdate_FlushesThenClearsEntries(t *testing.T) {
	s := &recordingStore{}
	b := New(s)
	b.entries["host.local"] = &entry{host: "host.local", name: "host", ip: "192.168.1.5", services: map[string]struct{}{"http": {}}}

	err := b.update(context.Background())
	require.NoError(t, err)
	require.Empty(t, b.entries)
	require.Len(t, s.recs, 1)
	require.Equal(t, "192.168.1.5", *s.recs[0].IP)
}

func TestUpdate_SkipsEntriesWithoutIP(t *testing.T) {
	s := &recordingStore{}
	b := New(s)
	b.entries["host.local"] = &entry{host: "host.local", services: map[string]struct{}{}}

	err := b.update(context.Background())
	require.NoError(t, err)
	require.Empty(t, s.recs)
}
