package combat

import (
	"fmt"
	"sort"
)

// RewardShare is one participant's slice of a kill.
type RewardShare struct {
	ParticipantID uint32
	Damage        int64   // cumulative ledger contribution
	Percent       float64 // final share after the assist floor
	Amount        int64   // share of total damage, sums exactly to total
}

// RewardSummary describes who gets credit for a kill and in what
// proportion. Shares are proportional to ledger contribution with a
// configurable assist-floor minimum; Participants additionally folds in
// group members of every contributor for quest/achievement credit.
type RewardSummary struct {
	EventID      string
	CreatureID   uint32
	KillerID     uint32 // attacker whose hit was lethal
	TotalDamage  int64
	Shares       []RewardShare
	Participants []uint32
}

// ComputeShares splits total contributed damage across attackers.
//
// Percentages are proportional to contribution. Any contributor below
// the assist floor (minSharePercent) is raised to it and the remainder
// is redistributed over the others in proportion to their damage.
// Redistribution repeats until no share sits under the floor, so a
// contributor at the floor is never rescaled below a lesser one. If
// the floor cannot be honored for everyone (floor x n > 100) all shares
// are equal. Amounts are assigned by largest remainder so they sum
// exactly to total damage.
func ComputeShares(contributions map[uint32]int64, minSharePercent int) []RewardShare {
	if len(contributions) == 0 {
		return nil
	}

	var total int64
	for _, dmg := range contributions {
		total += dmg
	}

	shares := make([]RewardShare, 0, len(contributions))
	for id, dmg := range contributions {
		shares = append(shares, RewardShare{ParticipantID: id, Damage: dmg})
	}
	// Deterministic order: damage descending, id ascending on ties.
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Damage != shares[j].Damage {
			return shares[i].Damage > shares[j].Damage
		}
		return shares[i].ParticipantID < shares[j].ParticipantID
	})

	if total <= 0 {
		// Degenerate ledger (e.g. scripted death): equal split of nothing.
		for i := range shares {
			shares[i].Percent = 100.0 / float64(len(shares))
		}
		return shares
	}

	floor := float64(minSharePercent)
	n := float64(len(shares))

	if floor*n >= 100 {
		for i := range shares {
			shares[i].Percent = 100.0 / n
		}
	} else {
		// Floor to a fixpoint: rescaling the unfloored shares can drop
		// another one under the floor, so repeat until the floored set
		// stops growing. The top contributor always stays above the
		// floor (floor x n < 100), so the loop terminates.
		floored := make([]bool, len(shares))
		for {
			var flooredCount int
			var unflooredDamage int64
			for i := range shares {
				if floored[i] {
					flooredCount++
				} else {
					unflooredDamage += shares[i].Damage
				}
			}
			remaining := 100.0 - floor*float64(flooredCount)
			changed := false
			for i := range shares {
				if floored[i] {
					shares[i].Percent = floor
					continue
				}
				p := float64(shares[i].Damage) / float64(unflooredDamage) * remaining
				if p < floor {
					floored[i] = true
					changed = true
					continue
				}
				shares[i].Percent = p
			}
			if !changed {
				break
			}
		}
	}

	distributeAmounts(shares, total)
	return shares
}

// distributeAmounts converts percents to integer damage amounts using
// largest-remainder rounding so the amounts sum exactly to total.
func distributeAmounts(shares []RewardShare, total int64) {
	type rem struct {
		idx  int
		frac float64
	}
	var assigned int64
	rems := make([]rem, len(shares))
	for i := range shares {
		exact := shares[i].Percent / 100.0 * float64(total)
		whole := int64(exact)
		shares[i].Amount = whole
		assigned += whole
		rems[i] = rem{idx: i, frac: exact - float64(whole)}
	}
	sort.Slice(rems, func(i, j int) bool {
		if rems[i].frac != rems[j].frac {
			return rems[i].frac > rems[j].frac
		}
		// Tie-break toward the larger contributor for determinism.
		return shares[rems[i].idx].Damage > shares[rems[j].idx].Damage
	})
	for i := int64(0); i < total-assigned; i++ {
		shares[rems[i%int64(len(rems))].idx].Amount++
	}
}

// GroupLookup resolves the credit-sharing group of a combatant.
// Implemented by the group manager; a nil slice means ungrouped.
type GroupLookup interface {
	GroupMembers(memberID uint32) []uint32
}

// creditList builds the participant-id list for quest/achievement
// credit: every contributor plus the members of each contributor's
// group, deduplicated, in ascending id order.
func creditList(shares []RewardShare, groups GroupLookup) []uint32 {
	seen := make(map[uint32]struct{}, len(shares))
	for _, s := range shares {
		seen[s.ParticipantID] = struct{}{}
		if groups == nil {
			continue
		}
		for _, m := range groups.GroupMembers(s.ParticipantID) {
			seen[m] = struct{}{}
		}
	}
	out := make([]uint32, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// killEventID builds the idempotency key persisted with reward credits.
// The per-resolver sequence makes the id unique across respawns of the
// same creature.
func killEventID(creatureID uint32, seq uint64) string {
	return fmt.Sprintf("kill-%d-%d", creatureID, seq)
}
