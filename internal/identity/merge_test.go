package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanpets.io/monitor/internal/model"
)

func strp(s string) *string { return &s }

func TestCompute_NoDuplicates_Inserts(t *testing.T) {
	n := model.NetworkInterfaceInfo{IP: strp("10.0.0.1"), Timestamp: 1}
	plan := Compute(nil, n)
	require.True(t, plan.IsNew)
	assert.Equal(t, n.IP, plan.Result.IP)
}

func TestCompute_Idempotence(t *testing.T) {
	r := model.NetworkInterfaceInfo{RowID: 1, IP: strp("10.0.0.1"), MAC: strp("aa-bb"), Timestamp: 5}
	plan := Compute([]model.NetworkInterfaceInfo{r}, r)
	assert.Equal(t, r.IP, plan.Result.IP)
	assert.Equal(t, r.MAC, plan.Result.MAC)
	assert.Empty(t, plan.Delete)
	assert.Empty(t, plan.Nullify)
}

func TestCompute_Union_NewestWins(t *testing.T) {
	best := model.NetworkInterfaceInfo{RowID: 1, IP: strp("10.0.0.1"), DNSHostname: strp("old.local"), Timestamp: 1,
		Extra: map[model.ExtraInfoType]string{"a": "0"}}
	n := model.NetworkInterfaceInfo{MAC: strp("aa-bb"), IP: strp("10.0.0.1"), Timestamp: 2,
		Extra: map[model.ExtraInfoType]string{"b": "3"}}

	plan := Compute([]model.NetworkInterfaceInfo{best}, n)
	assert.Equal(t, int64(1), plan.Result.RowID)
	assert.Equal(t, "aa-bb", *plan.Result.MAC)
	assert.Equal(t, "old.local", *plan.Result.DNSHostname) // older's value survives, newer has none
	assert.Equal(t, int64(2), plan.Result.Timestamp)
	assert.Equal(t, "0", plan.Result.Extra["a"])
	assert.Equal(t, "3", plan.Result.Extra["b"])
}

func TestCompute_OverlappingInsert_NullsOutRemainingDuplicates(t *testing.T) {
	r0 := model.NetworkInterfaceInfo{RowID: 1, IP: strp("ip0"), MAC: strp("mac0"), DNSHostname: strp("dns0"), Timestamp: 1}
	r1 := model.NetworkInterfaceInfo{RowID: 2, IP: strp("ip1"), MAC: strp("mac1"), DNSHostname: strp("dns1"), Timestamp: 1}

	rX := model.NetworkInterfaceInfo{MAC: strp("mac0"), IP: strp("ip1"), DNSHostname: strp("dns2"), Timestamp: 2}

	plan := Compute([]model.NetworkInterfaceInfo{r0, r1}, rX)

	// r0's matching key (mac) is more specific than r1's (ip), so r0 is
	// best and is merged with rX; r1 keeps its identity under its
	// remaining distinct key (mac1, dns1) with its colliding ip cleared.
	require.Equal(t, int64(1), plan.Result.RowID)
	assert.Equal(t, "mac0", *plan.Result.MAC)
	assert.Equal(t, "ip1", *plan.Result.IP)
	assert.Equal(t, "dns2", *plan.Result.DNSHostname)

	require.Len(t, plan.Nullify, 1)
	op := plan.Nullify[0]
	assert.Equal(t, int64(2), op.RowID)
	assert.True(t, op.ClearIP)
	assert.False(t, op.ClearMAC)
	assert.False(t, op.ClearDNS)
	assert.Empty(t, plan.Delete)
}

func TestCompute_BestDuplicate_ChosenByMatchingKeySpecificity(t *testing.T) {
	r0 := model.NetworkInterfaceInfo{RowID: 1, IP: strp("ip0"), MAC: strp("mac0"), DNSHostname: strp("dns0"), Timestamp: 1}
	r1 := model.NetworkInterfaceInfo{RowID: 2, IP: strp("ip1"), MAC: strp("mac1"), DNSHostname: strp("dns1"), Timestamp: 1}
	r2 := model.NetworkInterfaceInfo{RowID: 3, IP: strp("ip2"), MAC: strp("mac2"), DNSHostname: strp("dns2"), Timestamp: 1}

	rX := model.NetworkInterfaceInfo{MAC: strp("mac0"), IP: strp("ip1"), DNSHostname: strp("dns2"), Timestamp: 2}

	plan := Compute([]model.NetworkInterfaceInfo{r0, r1, r2}, rX)

	// Every row carries a dns_hostname, so ranking by each row's own
	// most-specific present field would tie them all and pick r0. The
	// correct best is r2: its dns_hostname is the field that actually
	// matches rX, and dns_hostname outranks r0's matching mac and r1's
	// matching ip.
	require.Equal(t, int64(3), plan.Result.RowID)
	assert.Equal(t, "mac0", *plan.Result.MAC)
	assert.Equal(t, "ip1", *plan.Result.IP)
	assert.Equal(t, "dns2", *plan.Result.DNSHostname)

	require.Len(t, plan.Nullify, 2)
	for _, op := range plan.Nullify {
		switch op.RowID {
		case 1:
			assert.True(t, op.ClearMAC)
			assert.False(t, op.ClearIP)
			assert.False(t, op.ClearDNS)
		case 2:
			assert.True(t, op.ClearIP)
			assert.False(t, op.ClearMAC)
			assert.False(t, op.ClearDNS)
		default:
			t.Fatalf("unexpected row id %d", op.RowID)
		}
	}
	assert.Empty(t, plan.Delete)
}

func TestCompute_DeletesFullySubsumedDuplicate(t *testing.T) {
	// r has only ip, which collides with n's ip, and no other distinguishing key.
	r := model.NetworkInterfaceInfo{RowID: 9, IP: strp("ip0"), Timestamp: 1}
	n := model.NetworkInterfaceInfo{IP: strp("ip0"), MAC: strp("mac0"), Timestamp: 2}

	plan := Compute([]model.NetworkInterfaceInfo{r}, n)
	assert.Equal(t, []int64{9}, plan.Delete)
	assert.Empty(t, plan.Nullify)
}
