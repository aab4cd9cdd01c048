// Package combat resolves damage against creatures and computes kill
// rewards. Each creature's mutable combat state (health, contribution
// ledger) is owned by exactly one goroutine; concurrent ApplyDamage
// calls queue behind its mailbox and are processed in strict arrival
// order, which is what makes the death transition fire exactly once.
package combat

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/arkadianet/worldserver/internal/config"
	"github.com/arkadianet/worldserver/internal/gateway"
	"github.com/arkadianet/worldserver/internal/model"
	"github.com/arkadianet/worldserver/internal/world"
)

// Result of a damage application.
type Result int

const (
	// ResultDamaged — the creature took damage and survived.
	ResultDamaged Result = iota
	// ResultKilled — this call performed the death transition.
	ResultKilled
	// ResultAlreadyDead — benign no-op against a dead creature.
	ResultAlreadyDead
)

// Outcome is the authoritative state returned to the attacker.
type Outcome struct {
	Result      Result
	RemainingHP int32
	Reward      *RewardSummary // set only when Result == ResultKilled
}

// ErrUnknownCreature is returned when the target id has no owning unit.
var ErrUnknownCreature = errors.New("unknown creature")

type damageCmd struct {
	attackerID uint32
	amount     int32
	heal       bool
	reply      chan Outcome
}

// creatureActor owns one creature's combat state. Commands arrive on
// the mailbox and are handled one at a time; the goroutine exits when
// the mailbox is closed by Despawn.
type creatureActor struct {
	creature *model.Creature
	mailbox  chan damageCmd
}

// KillFunc is invoked inside the owning goroutine when a creature dies,
// before the lethal Outcome is returned. Loot generation and reward
// persistence hang off this hook, so they observe the creature's state
// in the same arrival order as the damage that killed it.
type KillFunc func(creature *model.Creature, reward *RewardSummary)

// Resolver routes damage to creature owners and computes kill rewards.
type Resolver struct {
	directory *world.Directory[*creatureActor]
	groups    GroupLookup
	bc        gateway.Broadcaster
	cfg       config.CombatConfig

	killFunc atomic.Pointer[KillFunc]
	killSeq  atomic.Uint64
}

// NewResolver creates a resolver. groups may be nil (no credit
// sharing); bc must not be nil.
func NewResolver(groups GroupLookup, bc gateway.Broadcaster, cfg config.CombatConfig) *Resolver {
	if cfg.MailboxBuffer <= 0 {
		cfg.MailboxBuffer = 64
	}
	return &Resolver{
		directory: world.NewDirectory[*creatureActor](),
		groups:    groups,
		bc:        bc,
		cfg:       cfg,
	}
}

// SetKillFunc sets the kill hook (loot generation, reward persistence).
func (r *Resolver) SetKillFunc(fn KillFunc) {
	r.killFunc.Store(&fn)
}

// Spawn registers a creature and starts its owning goroutine.
func (r *Resolver) Spawn(creature *model.Creature) {
	actor := &creatureActor{
		creature: creature,
		mailbox:  make(chan damageCmd, r.cfg.MailboxBuffer),
	}
	r.directory.Register(creature.ID(), actor)
	go r.run(actor)

	slog.Debug("creature spawned",
		"creatureID", creature.ID(),
		"template", creature.TemplateID(),
		"name", creature.Name())
}

// Despawn unregisters a creature and stops its owning goroutine once
// the already-queued commands drain.
func (r *Resolver) Despawn(creatureID uint32) {
	actor, ok := r.directory.Unregister(creatureID)
	if !ok {
		return
	}
	close(actor.mailbox)
}

// Creature returns the live creature for id, nil if not spawned.
func (r *Resolver) Creature(creatureID uint32) *model.Creature {
	actor, ok := r.directory.Lookup(creatureID)
	if !ok {
		return nil
	}
	return actor.creature
}

// ApplyDamage applies damage from an attacker to a creature. The call
// queues behind the creature's owning unit; the returned Outcome is the
// authoritative state after this hit was processed. Damage against an
// already-dead creature is a benign no-op, never a second kill.
func (r *Resolver) ApplyDamage(ctx context.Context, creatureID, attackerID uint32, amount int32) (Outcome, error) {
	actor, ok := r.directory.Lookup(creatureID)
	if !ok {
		return Outcome{}, ErrUnknownCreature
	}

	cmd := damageCmd{attackerID: attackerID, amount: amount, reply: make(chan Outcome, 1)}
	return r.send(ctx, actor, cmd)
}

// ApplyHeal restores health through the same per-creature serialization
// point as damage, so a heal tick can never race a lethal hit. Healing
// a dead creature is a benign no-op.
func (r *Resolver) ApplyHeal(ctx context.Context, creatureID, healerID uint32, amount int32) (Outcome, error) {
	actor, ok := r.directory.Lookup(creatureID)
	if !ok {
		return Outcome{}, ErrUnknownCreature
	}

	cmd := damageCmd{attackerID: healerID, amount: amount, heal: true, reply: make(chan Outcome, 1)}
	return r.send(ctx, actor, cmd)
}

func (r *Resolver) send(ctx context.Context, actor *creatureActor, cmd damageCmd) (Outcome, error) {
	select {
	case actor.mailbox <- cmd:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	select {
	case out := <-cmd.reply:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// run is the owning goroutine for one creature.
func (r *Resolver) run(actor *creatureActor) {
	for cmd := range actor.mailbox {
		if cmd.heal {
			cmd.reply <- r.applyHeal(actor.creature, cmd.amount)
		} else {
			cmd.reply <- r.applyDamage(actor.creature, cmd.attackerID, cmd.amount)
		}
	}
}

// applyHeal executes one heal tick. Runs only on the owning goroutine.
func (r *Resolver) applyHeal(creature *model.Creature, amount int32) Outcome {
	if creature.IsDead() {
		return Outcome{Result: ResultAlreadyDead, RemainingHP: 0}
	}
	return Outcome{Result: ResultDamaged, RemainingHP: creature.Heal(amount)}
}

// applyDamage executes one hit. Runs only on the owning goroutine.
func (r *Resolver) applyDamage(creature *model.Creature, attackerID uint32, amount int32) Outcome {
	if creature.IsDead() {
		return Outcome{Result: ResultAlreadyDead, RemainingHP: 0}
	}
	if amount <= 0 {
		return Outcome{Result: ResultDamaged, RemainingHP: creature.CurrentHP()}
	}

	effective := creature.Stats().Mitigate(amount)
	remaining := creature.ReduceHP(effective)
	creature.Ledger().Record(attackerID, int64(effective))

	r.bc.Publish(gateway.EntityDamaged{
		TargetID:    creature.ID(),
		AttackerID:  attackerID,
		Amount:      effective,
		RemainingHP: remaining,
	})

	if remaining > 0 {
		return Outcome{Result: ResultDamaged, RemainingHP: remaining}
	}

	// Death transition fires exactly once; arrival-order serialization
	// means only the lethal hit can reach this branch first.
	if !creature.Die() {
		return Outcome{Result: ResultAlreadyDead, RemainingHP: 0}
	}

	reward := r.computeReward(creature, attackerID)

	r.bc.Publish(gateway.EntityDeath{
		EntityID: creature.ID(),
		KillerID: attackerID,
		Location: creature.Location(),
	})

	if fn := r.killFunc.Load(); fn != nil {
		(*fn)(creature, reward)
	}

	slog.Info("creature killed",
		"creatureID", creature.ID(),
		"name", creature.Name(),
		"killer", attackerID,
		"participants", len(reward.Shares),
		"totalDamage", reward.TotalDamage)

	return Outcome{Result: ResultKilled, RemainingHP: 0, Reward: reward}
}

func (r *Resolver) computeReward(creature *model.Creature, killerID uint32) *RewardSummary {
	contributions := creature.Ledger().Contributions()
	shares := ComputeShares(contributions, r.cfg.MinSharePercent)

	var total int64
	for _, dmg := range contributions {
		total += dmg
	}

	return &RewardSummary{
		EventID:      killEventID(creature.ID(), r.killSeq.Add(1)),
		CreatureID:   creature.ID(),
		KillerID:     killerID,
		TotalDamage:  total,
		Shares:       shares,
		Participants: creditList(shares, r.groups),
	}
}

// Respawn resets a dead creature in place: death guard, full health,
// cleared ledger and a fresh loot claim.
func (r *Resolver) Respawn(creatureID uint32) error {
	actor, ok := r.directory.Lookup(creatureID)
	if !ok {
		return ErrUnknownCreature
	}
	actor.creature.Respawn()
	slog.Debug("creature respawned", "creatureID", creatureID)
	return nil
}
