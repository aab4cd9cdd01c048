package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arkadianet/worldserver/internal/config"
	"github.com/arkadianet/worldserver/internal/data"
	"github.com/arkadianet/worldserver/internal/db"
	"github.com/arkadianet/worldserver/internal/game/combat"
	"github.com/arkadianet/worldserver/internal/game/duel"
	"github.com/arkadianet/worldserver/internal/game/effect"
	"github.com/arkadianet/worldserver/internal/game/group"
	"github.com/arkadianet/worldserver/internal/game/loot"
	"github.com/arkadianet/worldserver/internal/game/spell"
	"github.com/arkadianet/worldserver/internal/gateway"
	"github.com/arkadianet/worldserver/internal/model"
	"github.com/arkadianet/worldserver/internal/world"
)

const ConfigPath = "config/worldserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("WORLDSERVER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadWorldServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("worldserver starting", "log_level", cfg.LogLevel)

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	registry, err := data.Load(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("loading static data: %w", err)
	}
	slog.Info("static data loaded", "spells", registry.SpellCount())

	bc := gateway.LogBroadcaster{}

	groupMgr := group.NewManager()
	resolver := combat.NewResolver(groupMgr, bc, cfg.Combat)
	duelMgr := duel.NewManager(bc, cfg.Duel)

	entities := world.NewDirectory[*model.Combatant]()
	sink := &damageSink{entities: entities, resolver: resolver, duels: duelMgr}
	scheduler := effect.NewScheduler(sink, bc)

	cw := &castWorld{entities: entities, resolver: resolver, duels: duelMgr}
	castMgr := spell.NewManager(registry, cw, sink, scheduler, bc)
	slog.Info("cast manager initialized")

	auditRepo := db.NewAuditRepository(database.Pool())
	rewardRepo := db.NewRewardRepository(database.Pool())
	lootEngine := loot.NewEngine(registry, groupMgr, auditRepo, rewardRepo, bc, cfg.Loot)

	// Kill hook: loot generation runs inside the creature's owning
	// goroutine; reward persistence runs aside so a slow or failing
	// write never blocks the in-memory combat result.
	resolver.SetKillFunc(func(creature *model.Creature, reward *combat.RewardSummary) {
		lootEngine.HandleKill(creature, reward)
		go func() {
			pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer pcancel()
			if err := rewardRepo.SaveCredits(pctx, reward); err != nil {
				slog.Error("reward persistence failed",
					"eventID", reward.EventID,
					"creatureID", reward.CreatureID,
					"error", err)
			}
		}()
	})
	slog.Info("combat core initialized",
		"minSharePercent", cfg.Combat.MinSharePercent,
		"rollTimeout", cfg.Loot.RollTimeoutSeconds)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting effect scheduler", "interval", "100ms")
		scheduler.Run(gctx, 100*time.Millisecond)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				slog.Info("status",
					"groups", groupMgr.GroupCount(),
					"duels", duelMgr.DuelCount(),
					"activeCasts", castMgr.ActiveCasts(),
					"activeEffects", scheduler.Count(),
					"rollSessions", lootEngine.Sessions())
			}
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// damageSink routes tick and spell damage to the right serialization
// point: duel damage through the duel manager (stops at 1 health),
// creature damage through the per-creature resolver mailbox, and open
// world player damage straight onto the combatant.
type damageSink struct {
	entities *world.Directory[*model.Combatant]
	resolver *combat.Resolver
	duels    *duel.Manager
}

func (s *damageSink) Damage(targetID, sourceID uint32, amount int32) bool {
	if s.duels.CanDamage(sourceID, targetID) {
		target, ok := s.entities.Lookup(targetID)
		if !ok {
			return false
		}
		return s.duels.ApplyDamage(sourceID, target, amount)
	}
	// A duelist is walled off from all non-duel damage.
	if s.duels.IsInDuel(targetID) || s.duels.IsInDuel(sourceID) {
		return false
	}

	if creature := s.resolver.Creature(targetID); creature != nil {
		out, err := s.resolver.ApplyDamage(context.Background(), targetID, sourceID, amount)
		if err != nil {
			return false
		}
		return out.Result == combat.ResultDamaged
	}

	target, ok := s.entities.Lookup(targetID)
	if !ok || target.IsDead() {
		return false
	}
	target.ReduceHP(amount)
	return !target.IsDead()
}

func (s *damageSink) Heal(targetID, sourceID uint32, amount int32) bool {
	if s.resolver.Creature(targetID) != nil {
		out, err := s.resolver.ApplyHeal(context.Background(), targetID, sourceID, amount)
		if err != nil {
			return false
		}
		return out.Result != combat.ResultAlreadyDead
	}

	target, ok := s.entities.Lookup(targetID)
	if !ok || target.IsDead() {
		return false
	}
	target.Heal(amount)
	return true
}

// castWorld resolves cast targets across players and creatures and
// answers hostility for target validation.
type castWorld struct {
	entities *world.Directory[*model.Combatant]
	resolver *combat.Resolver
	duels    *duel.Manager
}

func (w *castWorld) Entity(id uint32) (*model.Combatant, bool) {
	if c, ok := w.entities.Lookup(id); ok {
		return c, true
	}
	if creature := w.resolver.Creature(id); creature != nil {
		return creature.Combatant, true
	}
	return nil, false
}

// Hostile: creatures are hostile to players; two players are hostile
// only inside their own active duel.
func (w *castWorld) Hostile(a, b uint32) bool {
	aCreature := w.resolver.Creature(a) != nil
	bCreature := w.resolver.Creature(b) != nil
	if aCreature != bCreature {
		return true
	}
	if aCreature && bCreature {
		return false
	}
	return w.duels.CanDamage(a, b)
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
