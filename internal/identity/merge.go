// Package identity implements the merge rule of SPEC_FULL.md §4.2: unifying
// NetworkInterfaceInfo records observed by independent collectors when they
// share a partial key (ip, mac or dns_hostname), without ever losing
// information from an older observation.
package identity

import "lanpets.io/monitor/internal/model"

// matchSpecificity returns the specificity of the most specific key on r
// that actually matches n (ip < mac < dns_hostname, per §4.2), or 0 if none
// match. The best duplicate is the row whose *matching* key is most
// specific, not the row whose own most-specific present field ranks
// highest — a row can carry a dns_hostname and still be a weaker match than
// a row that only matches n on mac.
func matchSpecificity(r, n model.NetworkInterfaceInfo) int {
	spec := 0
	if r.IP != nil && n.IP != nil && *r.IP == *n.IP && spec < 1 {
		spec = 1
	}
	if r.MAC != nil && n.MAC != nil && *r.MAC == *n.MAC && spec < 2 {
		spec = 2
	}
	if r.DNSHostname != nil && n.DNSHostname != nil && *r.DNSHostname == *n.DNSHostname && spec < 3 {
		spec = 3
	}
	return spec
}

// Matches reports whether candidate shares any non-null partial key with n.
func Matches(candidate, n model.NetworkInterfaceInfo) bool {
	if candidate.MAC != nil && n.MAC != nil && *candidate.MAC == *n.MAC {
		return true
	}
	if candidate.IP != nil && n.IP != nil && *candidate.IP == *n.IP {
		return true
	}
	if candidate.DNSHostname != nil && n.DNSHostname != nil && *candidate.DNSHostname == *n.DNSHostname {
		return true
	}
	return false
}

// Plan is the outcome of merging a new record N against the set of rows
// that share a partial key with it.
type Plan struct {
	// Result is the row that should be upserted (it is `best` merged
	// field-wise with N), or N itself verbatim when there were no
	// duplicates.
	Result model.NetworkInterfaceInfo
	// IsNew is true when Result has no RowID yet (insert, not update).
	IsNew bool
	// Nullify holds {RowID, fields-to-null} for duplicate rows that keep
	// their identity under a remaining distinct key.
	Nullify []NullOp
	// Delete holds the RowIDs of duplicate rows with no remaining
	// distinguishing key.
	Delete []int64
}

// NullOp describes which of a duplicate row's fields must be cleared
// because they now collide with the incoming record's identity.
type NullOp struct {
	RowID       int64
	ClearMAC    bool
	ClearIP     bool
	ClearDNS    bool
}

// Compute applies the four-step merge rule from §4.2 to a new record n
// against the current duplicate set dups (every row in dups already shares
// at least one non-null partial key with n; the caller is responsible for
// that selection query).
func Compute(dups []model.NetworkInterfaceInfo, n model.NetworkInterfaceInfo) Plan {
	if len(dups) == 0 {
		return Plan{Result: n, IsNew: true}
	}

	best := dups[0]
	bestSpec := matchSpecificity(best, n)
	for _, r := range dups[1:] {
		if s := matchSpecificity(r, n); s > bestSpec {
			best = r
			bestSpec = s
		}
	}

	plan := Plan{}
	for _, r := range dups {
		if r.RowID == best.RowID {
			continue
		}
		op := NullOp{RowID: r.RowID}
		hasOtherDistinctKey := false
		if r.MAC != nil {
			if n.MAC != nil && *r.MAC == *n.MAC {
				op.ClearMAC = true
			} else {
				hasOtherDistinctKey = true
			}
		}
		if r.IP != nil {
			if n.IP != nil && *r.IP == *n.IP {
				op.ClearIP = true
			} else {
				hasOtherDistinctKey = true
			}
		}
		if r.DNSHostname != nil {
			if n.DNSHostname != nil && *r.DNSHostname == *n.DNSHostname {
				op.ClearDNS = true
			} else {
				hasOtherDistinctKey = true
			}
		}
		if hasOtherDistinctKey {
			plan.Nullify = append(plan.Nullify, op)
		} else {
			plan.Delete = append(plan.Delete, r.RowID)
		}
	}

	plan.Result = union(best, n)
	return plan
}

// union computes the field-wise union of an existing row `best` and a new
// observation `n`: newest timestamp wins the tie-break, each field takes the
// newer record's value when non-null else the older's, and n's extra_info
// entries are layered on top of best's.
func union(best, n model.NetworkInterfaceInfo) model.NetworkInterfaceInfo {
	newer, older := best, n
	if n.Timestamp >= best.Timestamp {
		newer, older = n, best
	}

	result := model.NetworkInterfaceInfo{
		RowID:     best.RowID,
		Timestamp: maxInt64(best.Timestamp, n.Timestamp),
	}
	result.MAC = firstNonNil(newer.MAC, older.MAC)
	result.IP = firstNonNil(newer.IP, older.IP)
	result.DNSHostname = firstNonNil(newer.DNSHostname, older.DNSHostname)
	result.MDNSHostname = firstNonNil(newer.MDNSHostname, older.MDNSHostname)

	result.Extra = make(map[model.ExtraInfoType]string, len(best.Extra)+len(n.Extra))
	for k, v := range best.Extra {
		result.Extra[k] = v
	}
	for k, v := range n.Extra {
		result.Extra[k] = v
	}
	return result
}

func firstNonNil(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
