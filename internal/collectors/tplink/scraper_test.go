package tplink

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lanpets.io/monitor/internal/clock"
	"lanpets.io/monitor/internal/model"
)

type fakeRouterClient struct {
	reservations []DHCPReservation
	clients      []DHCPClient
	traffic      []TrafficRow
}

func (f *fakeRouterClient) GetDHCPReservations() ([]DHCPReservation, error) { return f.reservations, nil }
func (f *fakeRouterClient) GetDHCPClients() ([]DHCPClient, error)           { return f.clients, nil }
func (f *fakeRouterClient) GetTrafficStats() ([]TrafficRow, error)          { return f.traffic, nil }

type fakeStore struct {
	upserts  []model.NetworkInterfaceInfo
	pets     []model.PetInfo
	resolved map[string]model.NetworkInterfaceInfo
	traffic  []struct {
		name           string
		rxBytes, txBytes int64
	}
}

func (f *fakeStore) AddNetworkInfo(rec model.NetworkInterfaceInfo, extra map[model.ExtraInfoType]string) error {
	f.upserts = append(f.upserts, rec)
	return nil
}
func (f *fakeStore) ListPets() ([]model.PetInfo, error) { return f.pets, nil }
func (f *fakeStore) ResolvePetsToInterfaces(pets []model.PetInfo) (map[string]model.NetworkInterfaceInfo, error) {
	return f.resolved, nil
}
func (f *fakeStore) AppendTraffic(name string, rxBytes, txBytes, ts int64) error {
	f.traffic = append(f.traffic, struct {
		name             string
		rxBytes, txBytes int64
	}{name, rxBytes, txBytes})
	return nil
}
func (f *fakeStore) DeleteEntriesOlderThan(table string, cutoff int64) error { return nil }

func strp(s string) *string { return &s }

func TestScraper_Update_MergesReservationsAndDHCPClients(t *testing.T) {
	note := url.QueryEscape("living room TV")
	rc := &fakeRouterClient{
		reservations: []DHCPReservation{{MAC: "AA-BB", IP: "10.0.0.5", Note: note}},
		clients:      []DHCPClient{{MAC: "AA-BB", IP: "10.0.0.5", Name: "tv"}, {MAC: "CC-DD", IP: "10.0.0.6", Name: "--"}},
	}
	fs := &fakeStore{}
	sc := &Scraper{client: rc, store: fs, clock: clock.NewMockClock(time.Unix(1000, 0)), collectTrafficData: false}

	require.NoError(t, sc.update(context.Background()))
	require.Len(t, fs.upserts, 2)

	var reservedDevice model.NetworkInterfaceInfo
	for _, d := range fs.upserts {
		if *d.MAC == "AA-BB" {
			reservedDevice = d
		}
	}
	require.Equal(t, "living room TV", reservedDevice.Extra[model.ExtraRouterDesc])
	require.Equal(t, "tv", reservedDevice.Extra[model.ExtraDHCPName])
}

func TestScraper_Update_SkipsSentinelDHCPName(t *testing.T) {
	rc := &fakeRouterClient{clients: []DHCPClient{{MAC: "EE-FF", IP: "10.0.0.7", Name: "--"}}}
	fs := &fakeStore{}
	sc := &Scraper{client: rc, store: fs, clock: clock.NewMockClock(time.Unix(1000, 0))}

	require.NoError(t, sc.update(context.Background()))
	require.Len(t, fs.upserts, 1)
	_, hasName := fs.upserts[0].Extra[model.ExtraDHCPName]
	require.False(t, hasName)
}

func TestScraper_Update_MatchesTrafficToResolvedPetIP(t *testing.T) {
	rc := &fakeRouterClient{traffic: []TrafficRow{{Addr: "10.0.0.9", RXBytes: 100, TXBytes: 200}}}
	fs := &fakeStore{
		pets:     []model.PetInfo{{Name: "alice"}},
		resolved: map[string]model.NetworkInterfaceInfo{"alice": {IP: strp("10.0.0.9")}},
	}
	sc := &Scraper{client: rc, store: fs, clock: clock.NewMockClock(time.Unix(2000, 0)), collectTrafficData: true}

	require.NoError(t, sc.update(context.Background()))
	require.Len(t, fs.traffic, 1)
	require.Equal(t, "alice", fs.traffic[0].name)
	require.Equal(t, int64(100), fs.traffic[0].rxBytes)
}
