package duel

import (
	"errors"
	"testing"
	"time"

	"github.com/arkadianet/worldserver/internal/config"
	"github.com/arkadianet/worldserver/internal/gateway"
	"github.com/arkadianet/worldserver/internal/model"
)

func testConfig() config.DuelConfig {
	return config.DuelConfig{
		CountdownSeconds:      5,
		RequestTimeoutSeconds: 30,
		MaxDurationSeconds:    120,
		ArenaRadius:           1600,
	}
}

func combatant(id uint32, x int32) *model.Combatant {
	return model.NewCombatant(id, "duelist", model.NewLocation(x, 0, 0), 100, model.StatBlock{})
}

func TestRequest_Rejections(t *testing.T) {
	m := NewManager(&gateway.Recorder{}, testConfig())
	a, b, c := combatant(1, 0), combatant(2, 10), combatant(3, 20)

	if err := m.Request(a, a); !errors.Is(err, ErrSelfDuel) {
		t.Errorf("self duel: err = %v", err)
	}
	if err := m.Request(a, b); err != nil {
		t.Fatalf("Request: %v", err)
	}

	// Both parties of a pending request count as busy.
	if err := m.Request(a, c); !errors.Is(err, ErrAlreadyInDuel) {
		t.Errorf("challenger re-request: err = %v", err)
	}
	if err := m.Request(c, b); !errors.Is(err, ErrAlreadyInDuel) {
		t.Errorf("challenge to pending target: err = %v", err)
	}
	if err := m.Request(b, c); !errors.Is(err, ErrAlreadyInDuel) {
		t.Errorf("pending target as challenger: err = %v", err)
	}
}

func TestDecline(t *testing.T) {
	rec := &gateway.Recorder{}
	m := NewManager(rec, testConfig())
	a, b := combatant(1, 0), combatant(2, 10)

	if err := m.Decline(2); !errors.Is(err, ErrNoRequest) {
		t.Errorf("decline without request: err = %v", err)
	}

	m.Request(a, b)
	if err := m.Decline(2); err != nil {
		t.Fatalf("Decline: %v", err)
	}

	events := gateway.EventsOf[gateway.DuelStateChanged](rec)
	last := events[len(events)-1]
	if last.State != "ended" || last.Reason != "cancelled" {
		t.Errorf("last event = %+v; want ended/cancelled", last)
	}

	// Declined parties are free again.
	if err := m.Request(a, b); err != nil {
		t.Errorf("re-request after decline: %v", err)
	}
}

func TestAccept(t *testing.T) {
	rec := &gateway.Recorder{}
	m := NewManager(rec, testConfig())
	a, b := combatant(1, 0), combatant(2, 10)

	if _, err := m.Accept(2); !errors.Is(err, ErrNoRequest) {
		t.Errorf("accept without request: err = %v", err)
	}

	m.Request(a, b)
	d, err := m.Accept(2)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if d.State() != StateCountdown {
		t.Errorf("state = %v; want countdown", d.State())
	}
	if !m.IsInDuel(1) || !m.IsInDuel(2) {
		t.Error("both duelists must be indexed")
	}
	if cond, ok := d.Condition(1); !ok || cond.HP != 100 {
		t.Errorf("condition snapshot = %+v, %v; want HP 100", cond, ok)
	}
	if m.DuelCount() != 1 {
		t.Errorf("DuelCount = %d; want 1", m.DuelCount())
	}

	states := []string{}
	for _, e := range gateway.EventsOf[gateway.DuelStateChanged](rec) {
		states = append(states, e.State)
	}
	if len(states) < 2 || states[0] != "requested" || states[1] != "countdown" {
		t.Errorf("event states = %v; want requested then countdown", states)
	}
}

func TestCanDamage_ExclusiveAndActiveOnly(t *testing.T) {
	m := NewManager(&gateway.Recorder{}, testConfig())
	a, b := combatant(1, 0), combatant(2, 10)
	m.Request(a, b)
	d, _ := m.Accept(2)

	// Countdown: no damage yet.
	if m.CanDamage(1, 2) {
		t.Error("damage legal during countdown")
	}

	d.state.Store(int32(StateActive))

	if !m.CanDamage(1, 2) || !m.CanDamage(2, 1) {
		t.Error("duelists must be able to damage each other while active")
	}
	if m.CanDamage(1, 3) {
		t.Error("duelist may not damage an outsider")
	}
	if m.CanDamage(3, 2) {
		t.Error("outsider may not damage a duelist through duel rules")
	}
	if m.CanDamage(1, 1) {
		t.Error("self damage is not duel damage")
	}
}

func TestApplyDamage_StopsAtOneHealth(t *testing.T) {
	m := NewManager(&gateway.Recorder{}, testConfig())
	a, b := combatant(1, 0), combatant(2, 10)
	m.Request(a, b)
	d, _ := m.Accept(2)
	d.state.Store(int32(StateActive))

	if !m.ApplyDamage(1, b, 40) {
		t.Fatal("legal duel hit rejected")
	}
	if b.CurrentHP() != 60 {
		t.Errorf("HP = %d; want 60", b.CurrentHP())
	}

	// Overkill stops at 1 and marks defeat instead of killing.
	if !m.ApplyDamage(1, b, 500) {
		t.Fatal("lethal-range duel hit rejected")
	}
	if b.CurrentHP() != 1 {
		t.Errorf("HP = %d; want 1 (duel damage never kills)", b.CurrentHP())
	}
	if b.IsDead() {
		t.Error("duel defeat must not be a death")
	}

	reason, loser := d.checkEnd(1600)
	if reason != ReasonDefeat || loser != 2 {
		t.Errorf("checkEnd = (%v, %d); want (defeat, 2)", reason, loser)
	}
}

func TestCheckEnd_FleeAndForfeit(t *testing.T) {
	m := NewManager(&gateway.Recorder{}, testConfig())
	a, b := combatant(1, 0), combatant(2, 10)
	m.Request(a, b)
	d, _ := m.Accept(2)
	d.state.Store(int32(StateActive))

	if reason, _ := d.checkEnd(1600); reason != "" {
		t.Fatalf("fresh duel reported end reason %q", reason)
	}

	// Boundary exit is a flee by the leaver.
	b.SetLocation(model.NewLocation(5000, 0, 0))
	if reason, loser := d.checkEnd(1600); reason != ReasonFlee || loser != 2 {
		t.Errorf("checkEnd = (%v, %d); want (flee, 2)", reason, loser)
	}
	b.SetLocation(model.NewLocation(10, 0, 0))

	if err := m.Forfeit(1); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	if reason, loser := d.checkEnd(1600); reason != ReasonForfeit || loser != 1 {
		t.Errorf("checkEnd = (%v, %d); want (forfeit, 1)", reason, loser)
	}

	if err := m.Forfeit(99); !errors.Is(err, ErrNotInDuel) {
		t.Errorf("outsider forfeit: err = %v", err)
	}
}

func TestCheckEnd_Timeout(t *testing.T) {
	a, b := combatant(1, 0), combatant(2, 10)
	d := newDuel(1, a, b, 0, -1*time.Second)
	d.state.Store(int32(StateActive))

	if reason, loser := d.checkEnd(1600); reason != ReasonTimeout || loser != 0 {
		t.Errorf("checkEnd = (%v, %d); want (timeout, 0)", reason, loser)
	}
}

func TestLifecycle_DefeatEndsAndRestores(t *testing.T) {
	cfg := testConfig()
	cfg.CountdownSeconds = 1
	rec := &gateway.Recorder{}
	m := NewManager(rec, cfg)
	a, b := combatant(1, 0), combatant(2, 10)

	m.Request(a, b)
	d, err := m.Accept(2)
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, func() bool { return d.State() == StateActive })

	m.ApplyDamage(1, b, 500)

	waitFor(t, 3*time.Second, func() bool { return d.IsFinished() })
	waitFor(t, time.Second, func() bool { return !m.IsInDuel(1) && !m.IsInDuel(2) })

	// Normal end restores the pre-duel snapshot.
	if b.CurrentHP() != 100 {
		t.Errorf("HP = %d after duel; want 100 restored", b.CurrentHP())
	}
	if m.DuelCount() != 0 {
		t.Errorf("DuelCount = %d; want 0 (no residual state)", m.DuelCount())
	}

	events := gateway.EventsOf[gateway.DuelStateChanged](rec)
	last := events[len(events)-1]
	if last.State != "ended" || last.Reason != "defeat" {
		t.Errorf("last event = %+v; want ended/defeat", last)
	}

	// Both are free to duel again.
	if err := m.Request(a, b); err != nil {
		t.Errorf("re-request after duel: %v", err)
	}
}

func TestLifecycle_DisconnectDuringCountdownCancels(t *testing.T) {
	cfg := testConfig()
	cfg.CountdownSeconds = 3
	rec := &gateway.Recorder{}
	m := NewManager(rec, cfg)
	a, b := combatant(1, 0), combatant(2, 10)

	m.Request(a, b)
	d, _ := m.Accept(2)

	m.OnDisconnect(2)

	waitFor(t, 3*time.Second, func() bool { return d.IsFinished() })

	events := gateway.EventsOf[gateway.DuelStateChanged](rec)
	last := events[len(events)-1]
	if last.State != "ended" || last.Reason != "cancelled" {
		t.Errorf("last event = %+v; want ended/cancelled", last)
	}
}

func TestRequestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeoutSeconds = 1
	rec := &gateway.Recorder{}
	m := NewManager(rec, cfg)
	a, b := combatant(1, 0), combatant(2, 10)

	m.Request(a, b)

	waitFor(t, 3*time.Second, func() bool {
		events := gateway.EventsOf[gateway.DuelStateChanged](rec)
		last := events[len(events)-1]
		return last.State == "ended" && last.Reason == "timeout"
	})

	// The timed-out pair is free again.
	if err := m.Request(b, a); err != nil {
		t.Errorf("request after timeout: %v", err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
