package combat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arkadianet/worldserver/internal/config"
	"github.com/arkadianet/worldserver/internal/gateway"
	"github.com/arkadianet/worldserver/internal/model"
)

func testResolver(t *testing.T) (*Resolver, *gateway.Recorder) {
	t.Helper()
	rec := &gateway.Recorder{}
	r := NewResolver(nil, rec, config.CombatConfig{MinSharePercent: 10, MailboxBuffer: 64})
	return r, rec
}

func spawnCreature(t *testing.T, r *Resolver, id uint32, maxHP int32) *model.Creature {
	t.Helper()
	c := model.NewCreature(id, 100, "Boar", model.NewLocation(0, 0, 0), 3, maxHP, model.StatBlock{}, 0)
	r.Spawn(c)
	t.Cleanup(func() { r.Despawn(id) })
	return c
}

func TestApplyDamage_Damaged(t *testing.T) {
	r, _ := testResolver(t)
	spawnCreature(t, r, 1, 100)

	out, err := r.ApplyDamage(context.Background(), 1, 10, 30)
	if err != nil {
		t.Fatalf("ApplyDamage: %v", err)
	}
	if out.Result != ResultDamaged {
		t.Errorf("Result = %v; want ResultDamaged", out.Result)
	}
	if out.RemainingHP != 70 {
		t.Errorf("RemainingHP = %d; want 70", out.RemainingHP)
	}
}

func TestApplyDamage_UnknownCreature(t *testing.T) {
	r, _ := testResolver(t)

	if _, err := r.ApplyDamage(context.Background(), 999, 10, 30); err != ErrUnknownCreature {
		t.Errorf("err = %v; want ErrUnknownCreature", err)
	}
}

func TestApplyDamage_TwoAttackerKillScenario(t *testing.T) {
	// 100-health creature takes 60 from A then 50 from B: killed,
	// ledger {A:60, B:50}, reward split ~55%/45%.
	r, rec := testResolver(t)
	c := spawnCreature(t, r, 1, 100)

	ctx := context.Background()
	out, err := r.ApplyDamage(ctx, 1, 100, 60)
	if err != nil || out.Result != ResultDamaged {
		t.Fatalf("first hit: out=%+v err=%v", out, err)
	}

	out, err = r.ApplyDamage(ctx, 1, 200, 50)
	if err != nil {
		t.Fatalf("second hit: %v", err)
	}
	if out.Result != ResultKilled {
		t.Fatalf("Result = %v; want ResultKilled", out.Result)
	}

	if got := c.Ledger().Get(100); got != 60 {
		t.Errorf("ledger[A] = %d; want 60", got)
	}
	if got := c.Ledger().Get(200); got != 50 {
		t.Errorf("ledger[B] = %d; want 50", got)
	}

	reward := out.Reward
	if reward == nil {
		t.Fatal("Reward is nil on kill")
	}
	if reward.KillerID != 200 {
		t.Errorf("KillerID = %d; want 200", reward.KillerID)
	}
	if reward.TotalDamage != 110 {
		t.Errorf("TotalDamage = %d; want 110", reward.TotalDamage)
	}
	a := shareByID(reward.Shares, 100)
	b := shareByID(reward.Shares, 200)
	if a == nil || b == nil {
		t.Fatalf("missing shares: %+v", reward.Shares)
	}
	if a.Percent < 54 || a.Percent > 56 {
		t.Errorf("share A = %.2f%%; want ~55%%", a.Percent)
	}
	if b.Percent < 44 || b.Percent > 46 {
		t.Errorf("share B = %.2f%%; want ~45%%", b.Percent)
	}
	if a.Amount+b.Amount != 110 {
		t.Errorf("amounts sum = %d; want 110", a.Amount+b.Amount)
	}

	deaths := gateway.EventsOf[gateway.EntityDeath](rec)
	if len(deaths) != 1 {
		t.Errorf("EntityDeath events = %d; want 1", len(deaths))
	}
}

func TestApplyDamage_ConcurrentLethal_ExactlyOneKill(t *testing.T) {
	r, rec := testResolver(t)
	spawnCreature(t, r, 1, 100)

	const attackers = 20
	var wg sync.WaitGroup
	results := make(chan Outcome, attackers)
	for i := 0; i < attackers; i++ {
		wg.Add(1)
		go func(attackerID uint32) {
			defer wg.Done()
			out, err := r.ApplyDamage(context.Background(), 1, attackerID, 25)
			if err != nil {
				t.Errorf("ApplyDamage: %v", err)
				return
			}
			results <- out
		}(uint32(i + 1))
	}
	wg.Wait()
	close(results)

	var kills, noops int
	for out := range results {
		switch out.Result {
		case ResultKilled:
			kills++
		case ResultAlreadyDead:
			noops++
		}
	}
	if kills != 1 {
		t.Errorf("killed outcomes = %d; want exactly 1", kills)
	}
	// 4 hits of 25 reach 100; the other 16 must be no-ops.
	if noops != attackers-4 {
		t.Errorf("no-op outcomes = %d; want %d", noops, attackers-4)
	}

	deaths := gateway.EventsOf[gateway.EntityDeath](rec)
	if len(deaths) != 1 {
		t.Errorf("EntityDeath events = %d; want 1", len(deaths))
	}
}

func TestApplyDamage_AfterKillIsNoOp(t *testing.T) {
	r, _ := testResolver(t)
	spawnCreature(t, r, 1, 50)

	ctx := context.Background()
	out, _ := r.ApplyDamage(ctx, 1, 10, 50)
	if out.Result != ResultKilled {
		t.Fatalf("Result = %v; want ResultKilled", out.Result)
	}

	out, err := r.ApplyDamage(ctx, 1, 11, 50)
	if err != nil {
		t.Fatalf("ApplyDamage after kill: %v", err)
	}
	if out.Result != ResultAlreadyDead {
		t.Errorf("Result = %v; want ResultAlreadyDead", out.Result)
	}
	if out.Reward != nil {
		t.Error("second lethal hit must not carry a reward")
	}
}

func TestApplyDamage_RewardSharesSumToLedger(t *testing.T) {
	r, _ := testResolver(t)
	spawnCreature(t, r, 1, 300)

	ctx := context.Background()
	r.ApplyDamage(ctx, 1, 1, 120)
	r.ApplyDamage(ctx, 1, 2, 90)
	r.ApplyDamage(ctx, 1, 3, 30)
	out, _ := r.ApplyDamage(ctx, 1, 1, 60)

	if out.Result != ResultKilled {
		t.Fatalf("Result = %v; want ResultKilled", out.Result)
	}
	var sum int64
	for _, s := range out.Reward.Shares {
		sum += s.Amount
	}
	if sum != out.Reward.TotalDamage {
		t.Errorf("share sum = %d; want total %d", sum, out.Reward.TotalDamage)
	}
	if out.Reward.TotalDamage != 300 {
		t.Errorf("TotalDamage = %d; want 300", out.Reward.TotalDamage)
	}
}

func TestKillFunc_RunsBeforeOutcome(t *testing.T) {
	r, _ := testResolver(t)
	spawnCreature(t, r, 1, 40)

	done := make(chan *RewardSummary, 1)
	r.SetKillFunc(func(c *model.Creature, reward *RewardSummary) {
		done <- reward
	})

	out, _ := r.ApplyDamage(context.Background(), 1, 5, 40)
	if out.Result != ResultKilled {
		t.Fatalf("Result = %v; want ResultKilled", out.Result)
	}

	select {
	case reward := <-done:
		if reward.EventID == "" {
			t.Error("kill event id must be set")
		}
	default:
		t.Error("kill func should have run before the outcome returned")
	}
}

func TestApplyHeal(t *testing.T) {
	r, _ := testResolver(t)
	spawnCreature(t, r, 1, 100)

	ctx := context.Background()
	r.ApplyDamage(ctx, 1, 10, 60)

	out, err := r.ApplyHeal(ctx, 1, 20, 30)
	if err != nil {
		t.Fatalf("ApplyHeal: %v", err)
	}
	if out.RemainingHP != 70 {
		t.Errorf("RemainingHP = %d; want 70", out.RemainingHP)
	}

	// Heal on a dead creature is a benign no-op.
	r.ApplyDamage(ctx, 1, 10, 200)
	out, err = r.ApplyHeal(ctx, 1, 20, 50)
	if err != nil {
		t.Fatalf("ApplyHeal on dead: %v", err)
	}
	if out.Result != ResultAlreadyDead {
		t.Errorf("Result = %v; want ResultAlreadyDead", out.Result)
	}
}

func TestRespawn_ClearsLedgerAndDeath(t *testing.T) {
	r, _ := testResolver(t)
	c := spawnCreature(t, r, 1, 80)

	ctx := context.Background()
	r.ApplyDamage(ctx, 1, 10, 80)
	if !c.IsDead() {
		t.Fatal("creature should be dead")
	}

	if err := r.Respawn(1); err != nil {
		t.Fatalf("Respawn: %v", err)
	}
	if c.IsDead() {
		t.Error("creature should be alive after respawn")
	}
	if !c.Ledger().IsEmpty() {
		t.Error("ledger should be cleared on respawn")
	}

	out, _ := r.ApplyDamage(ctx, 1, 11, 80)
	if out.Result != ResultKilled {
		t.Errorf("Result = %v after respawn; want ResultKilled again", out.Result)
	}
}

func TestApplyDamage_ContextCancelled(t *testing.T) {
	r, _ := testResolver(t)
	spawnCreature(t, r, 1, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled context must not hang even if the mailbox is busy.
	done := make(chan struct{})
	go func() {
		r.ApplyDamage(ctx, 1, 10, 5)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ApplyDamage with cancelled context timed out")
	}
}
