package model

import "sync/atomic"

// Creature is a combatant controlled by the server. In addition to the
// combatant state it carries the per-attacker damage ledger used for
// reward splitting and the id of its static loot table.
type Creature struct {
	*Combatant

	templateID  int32
	level       int32
	lootTableID int32

	ledger *ContributionLedger

	// lootClaimed flips once when the corpse's loot is generated so a
	// corpse exposes its loot exactly once.
	lootClaimed atomic.Bool
}

// NewCreature creates a creature at full health with an empty ledger.
func NewCreature(id uint32, templateID int32, name string, loc Location, level, maxHP int32, stats StatBlock, lootTableID int32) *Creature {
	return &Creature{
		Combatant:   NewCombatant(id, name, loc, maxHP, stats),
		templateID:  templateID,
		level:       level,
		lootTableID: lootTableID,
		ledger:      NewContributionLedger(),
	}
}

// TemplateID returns the static creature template id.
func (c *Creature) TemplateID() int32 { return c.templateID }

// Level returns the creature level.
func (c *Creature) Level() int32 { return c.level }

// LootTableID returns the id of the creature's static loot table.
func (c *Creature) LootTableID() int32 { return c.lootTableID }

// Ledger returns the damage-contribution ledger.
func (c *Creature) Ledger() *ContributionLedger { return c.ledger }

// ClaimLoot returns true for the first caller only; a second claim
// means the corpse was already looted.
func (c *Creature) ClaimLoot() bool {
	return c.lootClaimed.CompareAndSwap(false, true)
}

// Respawn resets death state, health, ledger and loot claim.
func (c *Creature) Respawn() {
	c.ResetDeath()
	c.ledger.Clear()
	c.lootClaimed.Store(false)
}
