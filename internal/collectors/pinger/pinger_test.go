package pinger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/model"
)

type fakeStore struct {
	pets          []model.PetInfo
	resolved      map[string]model.NetworkInterfaceInfo
	availability  []availabilityRecord
	deletedBefore map[string]int64
}

type availabilityRecord struct {
	name      string
	available bool
	ts        int64
}

func (f *fakeStore) ListPets() ([]model.PetInfo, error) { return f.pets, nil }

func (f *fakeStore) ResolvePetsToInterfaces(pets []model.PetInfo) (map[string]model.NetworkInterfaceInfo, error) {
	return f.resolved, nil
}

func (f *fakeStore) AppendAvailability(name string, available bool, ts int64) error {
	f.availability = append(f.availability, availabilityRecord{name, available, ts})
	return nil
}

func (f *fakeStore) DeleteEntriesOlderThan(table string, cutoff int64) error {
	if f.deletedBefore == nil {
		f.deletedBefore = map[string]int64{}
	}
	f.deletedBefore[table] = cutoff
	return nil
}

func strp(s string) *string { return &s }

func TestPinger_Update_RecordsAvailabilityPerPet(t *testing.T) {
	oldCheck := CheckFunc
	defer func() { CheckFunc = oldCheck }()
	CheckFunc = func(address string) (bool, error) {
		return address == "10.0.0.1", nil
	}

	mc := clock.NewMockClock(time.Unix(1000, 0))
	fs := &fakeStore{
		pets: []model.PetInfo{{Name: "alice"}, {Name: "bob"}},
		resolved: map[string]model.NetworkInterfaceInfo{
			"alice": {IP: strp("10.0.0.1")},
			"bob":   {IP: strp("10.0.0.2")},
		},
	}
	p := New(fs, mc, 7*24*3600)

	err := p.update(context.Background())
	require.NoError(t, err)
	require.Len(t, fs.availability, 2)

	byName := map[string]bool{}
	for _, r := range fs.availability {
		byName[r.name] = r.available
		require.Equal(t, int64(1000), r.ts)
	}
	require.True(t, byName["alice"])
	require.False(t, byName["bob"])
}

func TestPinger_Update_SweepsRetentionBeforeEachTick(t *testing.T) {
	mc := clock.NewMockClock(time.Unix(1_000_000, 0))
	fs := &fakeStore{}
	p := New(fs, mc, 100)

	require.NoError(t, p.update(context.Background()))
	require.Equal(t, int64(999_900), fs.deletedBefore["device_availability"])
}
