package main

import (
	"testing"
	"time"

	"github.com/arkadianet/worldserver/internal/config"
	"github.com/arkadianet/worldserver/internal/data"
	"github.com/arkadianet/worldserver/internal/game/combat"
	"github.com/arkadianet/worldserver/internal/game/duel"
	"github.com/arkadianet/worldserver/internal/game/effect"
	"github.com/arkadianet/worldserver/internal/game/group"
	"github.com/arkadianet/worldserver/internal/gateway"
	"github.com/arkadianet/worldserver/internal/model"
	"github.com/arkadianet/worldserver/internal/world"
)

func newTestSink() (*damageSink, *duel.Manager, *combat.Resolver, *world.Directory[*model.Combatant]) {
	rec := &gateway.Recorder{}
	groups := group.NewManager()
	resolver := combat.NewResolver(groups, rec, config.CombatConfig{MinSharePercent: 10, MailboxBuffer: 16})
	duels := duel.NewManager(rec, config.DuelConfig{
		CountdownSeconds:      1,
		RequestTimeoutSeconds: 30,
		MaxDurationSeconds:    120,
		ArenaRadius:           1600,
	})
	entities := world.NewDirectory[*model.Combatant]()
	sink := &damageSink{entities: entities, resolver: resolver, duels: duels}
	return sink, duels, resolver, entities
}

func testPlayer(id uint32, x int32) *model.Combatant {
	return model.NewCombatant(id, "fighter", model.NewLocation(x, 0, 0), 100, model.StatBlock{})
}

// startActiveDuel runs the request/accept handshake and waits out the
// one-second countdown.
func startActiveDuel(t *testing.T, duels *duel.Manager, a, b *model.Combatant) *duel.Duel {
	t.Helper()
	if err := duels.Request(a, b); err != nil {
		t.Fatalf("Request: %v", err)
	}
	d, err := duels.Accept(b.ID())
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	waitForCond(t, 3*time.Second, func() bool { return d.State() == duel.StateActive })
	return d
}

func waitForCond(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDamageSink_DuelRouting(t *testing.T) {
	sink, duels, _, entities := newTestSink()
	a, b := testPlayer(1, 0), testPlayer(2, 10)
	entities.Register(a.ID(), a)
	entities.Register(b.ID(), b)

	startActiveDuel(t, duels, a, b)

	if !sink.Damage(b.ID(), a.ID(), 30) {
		t.Fatal("duel damage rejected")
	}
	if hp := b.CurrentHP(); hp != 70 {
		t.Errorf("hp = %d; want 70", hp)
	}

	// Overkill inside a duel stops at 1 health, never kills.
	if !sink.Damage(b.ID(), a.ID(), 999) {
		t.Fatal("overkill hit rejected")
	}
	if hp := b.CurrentHP(); hp != 1 {
		t.Errorf("hp after overkill = %d; want 1", hp)
	}
	if b.IsDead() {
		t.Error("duel damage killed the participant")
	}
}

func TestDamageSink_DuelistWalledOff(t *testing.T) {
	sink, duels, _, entities := newTestSink()
	a, b, c := testPlayer(1, 0), testPlayer(2, 10), testPlayer(3, 20)
	for _, p := range []*model.Combatant{a, b, c} {
		entities.Register(p.ID(), p)
	}

	startActiveDuel(t, duels, a, b)

	// Outsider into the duel.
	if sink.Damage(a.ID(), c.ID(), 10) {
		t.Error("third-party damage into a duel accepted")
	}
	if hp := a.CurrentHP(); hp != 100 {
		t.Errorf("duelist hp = %d; want 100", hp)
	}

	// Duelist out of the duel.
	if sink.Damage(c.ID(), a.ID(), 10) {
		t.Error("duelist damage to an outsider accepted")
	}
	if hp := c.CurrentHP(); hp != 100 {
		t.Errorf("outsider hp = %d; want 100", hp)
	}
}

func TestDamageSink_TickIntoDuelRemovesEffect(t *testing.T) {
	sink, duels, _, entities := newTestSink()
	a, b, c := testPlayer(1, 0), testPlayer(2, 10), testPlayer(3, 20)
	for _, p := range []*model.Combatant{a, b, c} {
		entities.Register(p.ID(), p)
	}
	scheduler := effect.NewScheduler(sink, &gateway.Recorder{})

	startActiveDuel(t, duels, a, b)

	// Outsider's damage-over-time landing on a duelist: the first tick
	// is rejected by the wall-off and the effect is dropped.
	if _, err := scheduler.Apply(effect.Application{
		SpellID:   3,
		CasterID:  c.ID(),
		TargetID:  a.ID(),
		Kind:      effect.KindDamageOverTime,
		Magnitude: 5,
		Duration:  300 * time.Millisecond,
		Tick:      50 * time.Millisecond,
		Stacking:  data.StackRefresh,
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	scheduler.Advance(50 * time.Millisecond)

	if hp := a.CurrentHP(); hp != 100 {
		t.Errorf("duelist hp after tick = %d; want 100", hp)
	}
	if n := scheduler.Count(); n != 0 {
		t.Errorf("active effects = %d; want 0", n)
	}
}

func TestDamageSink_CreatureAndOpenWorld(t *testing.T) {
	sink, _, resolver, entities := newTestSink()
	attacker := testPlayer(1, 0)
	victim := testPlayer(2, 10)
	entities.Register(attacker.ID(), attacker)
	entities.Register(victim.ID(), victim)

	creature := model.NewCreature(10, 1001, "boar", model.NewLocation(20, 0, 0), 1, 50, model.StatBlock{}, 0)
	resolver.Spawn(creature)

	// Creature damage goes through the resolver mailbox.
	if !sink.Damage(creature.ID(), attacker.ID(), 20) {
		t.Fatal("creature damage rejected")
	}
	if hp := creature.CurrentHP(); hp != 30 {
		t.Errorf("creature hp = %d; want 30", hp)
	}

	// A killing hit reports the target gone so ticking effects stop.
	if sink.Damage(creature.ID(), attacker.ID(), 999) {
		t.Error("lethal hit should report the target invalid")
	}

	// Open-world players take damage directly.
	if !sink.Damage(victim.ID(), attacker.ID(), 30) {
		t.Fatal("open-world damage rejected")
	}
	if hp := victim.CurrentHP(); hp != 70 {
		t.Errorf("victim hp = %d; want 70", hp)
	}

	if sink.Damage(999, attacker.ID(), 10) {
		t.Error("unknown target accepted")
	}
}
