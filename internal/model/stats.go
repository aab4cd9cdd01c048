package model

// StatBlock holds the combat-relevant attributes of a combatant.
// Value type; a combatant's base stats never change mid-fight, only
// effect modifiers layered on top of them do.
type StatBlock struct {
	Power       int32   // physical/primary damage contribution
	Tech        int32   // ability damage contribution
	Support     int32   // healing contribution
	CritChance  float64 // 0.0 - 1.0
	Armor       int32   // flat damage mitigation
}

// Mitigate applies flat armor mitigation to incoming damage.
// Damage is never reduced below 1.
func (s StatBlock) Mitigate(damage int32) int32 {
	reduced := damage - s.Armor/4
	if reduced < 1 {
		reduced = 1
	}
	return reduced
}
