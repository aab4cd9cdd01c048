// Package gateway defines the outbound boundary between the combat core
// and the broadcast collaborator. Events carry only client-renderable
// data (ids, amounts, positions), never internal state-machine detail.
package gateway

import "github.com/arkadianet/worldserver/internal/model"

// SpellStart announces a timed cast beginning.
type SpellStart struct {
	CasterID   uint32
	SpellID    int32
	TargetID   uint32
	CastTimeMs int32
}

// SpellResolve announces a cast completing and its effects landing.
type SpellResolve struct {
	CasterID uint32
	SpellID  int32
	TargetID uint32
}

// SpellCancelled announces a timed cast ending without resolving.
type SpellCancelled struct {
	CasterID    uint32
	SpellID     int32
	Interrupted bool // false = caller cancel, true = external interrupt
}

// EffectApplied announces a buff/debuff landing on a target.
type EffectApplied struct {
	SourceSpellID int32
	CasterID      uint32
	TargetID      uint32
	DurationMs    int32
}

// EffectRemoved announces a buff/debuff expiring or being dispelled.
type EffectRemoved struct {
	SourceSpellID int32
	TargetID      uint32
}

// EntityDamaged announces a health change from damage or a tick.
type EntityDamaged struct {
	TargetID    uint32
	AttackerID  uint32
	Amount      int32
	RemainingHP int32
}

// EntityDeath announces a combatant dying.
type EntityDeath struct {
	EntityID uint32
	KillerID uint32
	Location model.Location
}

// LootDrop announces a corpse yielding items.
type LootDrop struct {
	CorpseID uint32
	Items    []model.ItemStack
	Location model.Location
}

// LootRollResult announces a contested item being awarded.
type LootRollResult struct {
	SessionID   int64
	ItemID      int32
	RecipientID uint32
	WinningRoll int32
}

// DuelStateChanged announces a duel protocol transition.
type DuelStateChanged struct {
	DuelID uint32
	State  string // requested, countdown, active, ended
	Reason string // defeat, flee, forfeit, timeout, cancelled ("" while running)
	AID    uint32
	BID    uint32
}
