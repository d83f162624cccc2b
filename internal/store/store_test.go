package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir+"/test.sqlite3", clock.NewMockClock(time.Unix(1000, 0)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strp(s string) *string { return &s }

func TestAddNetworkInfo_DisjointInserts(t *testing.T) {
	s := newTestStore(t)
	recs := []model.NetworkInterfaceInfo{
		{IP: strp("ip0"), MAC: strp("mac0"), DNSHostname: strp("dns0"), Timestamp: 1},
		{IP: strp("ip1"), MAC: strp("mac1"), DNSHostname: strp("dns1"), Timestamp: 1},
		{IP: strp("ip2"), MAC: strp("mac2"), DNSHostname: strp("dns2"), Timestamp: 1},
	}
	for _, r := range recs {
		require.NoError(t, s.AddNetworkInfo(r, nil))
	}
	all, err := s.ListNetworkInfo()
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestAddNetworkInfo_RejectsEmptyIdentity(t *testing.T) {
	s := newTestStore(t)
	err := s.AddNetworkInfo(model.NetworkInterfaceInfo{Timestamp: 1}, nil)
	require.Error(t, err)
}

func TestTraffic_MeanBPS(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertPet(model.PetInfo{Name: "p", IdentifierType: model.IdentifierIP, IdentifierValue: "1.2.3.4"}))
	require.NoError(t, s.AppendTraffic("p", 0, 0, 0))
	require.NoError(t, s.AppendTraffic("p", 100, 200, 1))

	series, err := s.LoadTraffic([]string{"p"}, 0)
	require.NoError(t, err)
	points := MeanBPS(series["p"])
	require.Len(t, points, 2)
	require.Equal(t, float64(100), points[1].RXBps)
	require.Equal(t, float64(200), points[1].TXBps)
	require.Equal(t, int64(100), points[1].RXBytes)
	require.Equal(t, int64(200), points[1].TXBytes)
}

func TestAvailability_MeanCurrentLastSeen(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertPet(model.PetInfo{Name: "p", IdentifierType: model.IdentifierIP, IdentifierValue: "1.2.3.4"}))
	require.NoError(t, s.AppendAvailability("p", false, 1))
	require.NoError(t, s.AppendAvailability("p", true, 2))

	mean, err := s.MeanAvailability([]string{"p"}, 0)
	require.NoError(t, err)
	require.Equal(t, 50.0, mean["p"])

	cur, err := s.CurrentAvailability([]string{"p"})
	require.NoError(t, err)
	require.Equal(t, true, cur["p"])

	seen, err := s.LastSeen([]string{"p"})
	require.NoError(t, err)
	require.Equal(t, int64(2), seen["p"])
}

func TestRelationship_CanonicalOrder(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertPet(model.PetInfo{Name: "alice", IdentifierType: model.IdentifierIP, IdentifierValue: "1"}))
	require.NoError(t, s.UpsertPet(model.PetInfo{Name: "bob", IdentifierType: model.IdentifierIP, IdentifierValue: "2"}))

	require.NoError(t, s.AddRelationship("bob", "alice", model.RelationshipFriends))

	all, err := s.GetAllRelationships(nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "alice", all[0].NameA)
	require.Equal(t, "bob", all[0].NameB)
	require.Equal(t, model.RelationshipFriends, all[0].Kind)
}

func TestRetention_DeleteEntriesOlderThan(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertPet(model.PetInfo{Name: "p", IdentifierType: model.IdentifierIP, IdentifierValue: "1"}))
	require.NoError(t, s.AppendAvailability("p", true, 1))
	require.NoError(t, s.AppendAvailability("p", true, 100))

	require.NoError(t, s.DeleteEntriesOlderThan("device_availability", 50))

	seen, err := s.LastSeen([]string{"p"})
	require.NoError(t, err)
	require.Equal(t, int64(100), seen["p"])

	mean, err := s.MeanAvailability([]string{"p"}, 0)
	require.NoError(t, err)
	require.Equal(t, 100.0, mean["p"]) // the row at ts=1 is gone
}

func TestPet_SoftDeleteThenRevive(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertPet(model.PetInfo{Name: "p", IdentifierType: model.IdentifierIP, IdentifierValue: "1", Description: "first"}))
	require.NoError(t, s.SoftDeletePet("p"))

	_, ok, err := s.GetPet("p")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.UpsertPet(model.PetInfo{Name: "p", IdentifierType: model.IdentifierIP, IdentifierValue: "1", Description: "revived"}))
	p, ok, err := s.GetPet("p")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "revived", p.Description)
}

func TestResolvePetsToInterfaces_Totality(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.UpsertPet(model.PetInfo{Name: "p", IdentifierType: model.IdentifierIP, IdentifierValue: "9.9.9.9"}))

	resolved, err := s.ResolvePetsToInterfaces([]model.PetInfo{{Name: "p", IdentifierType: model.IdentifierIP, IdentifierValue: "9.9.9.9"}})
	require.NoError(t, err)
	iface, ok := resolved["p"]
	require.True(t, ok)
	require.NotNil(t, iface.IP)
	require.Equal(t, "9.9.9.9", *iface.IP)
}
