package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkadianet/worldserver/internal/game/combat"
	"github.com/arkadianet/worldserver/internal/model"
)

// RewardRepository persists kill-reward credits and item awards.
// Every write is idempotent by event id: a replay after a crash or a
// retried delivery hits ON CONFLICT DO NOTHING instead of crediting
// twice.
type RewardRepository struct {
	db *pgxpool.Pool
}

// NewRewardRepository creates a RewardRepository.
func NewRewardRepository(db *pgxpool.Pool) *RewardRepository {
	return &RewardRepository{db: db}
}

// SaveCredits persists every participant share of a kill in one
// transaction. Re-saving the same summary is a no-op.
func (r *RewardRepository) SaveCredits(ctx context.Context, summary *combat.RewardSummary) error {
	if summary == nil || len(summary.Shares) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("beginning reward tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, share := range summary.Shares {
		_, err := tx.Exec(ctx,
			`INSERT INTO reward_credits (event_id, participant_id, creature_id, damage, percent, amount)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (event_id, participant_id) DO NOTHING`,
			summary.EventID, int64(share.ParticipantID), int64(summary.CreatureID),
			share.Damage, share.Percent, share.Amount,
		)
		if err != nil {
			return fmt.Errorf("inserting reward credit %q/%d: %w",
				summary.EventID, share.ParticipantID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing reward tx: %w", err)
	}
	return nil
}

// Award records an item entering a recipient's inventory. Satisfies
// loot.Awarder. Idempotent by event id.
func (r *RewardRepository) Award(ctx context.Context, recipientID uint32, item model.ItemStack, eventID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO item_awards (event_id, recipient_id, item_id, count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, int64(recipientID), item.ItemID, item.Count,
	)
	if err != nil {
		return fmt.Errorf("awarding item %d to %d: %w", item.ItemID, recipientID, err)
	}
	return nil
}

// CreditsFor returns the total persisted reward amount for a
// participant, for reconnect reconciliation.
func (r *RewardRepository) CreditsFor(ctx context.Context, participantID uint32) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM reward_credits WHERE participant_id = $1`,
		int64(participantID),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing reward credits for %d: %w", participantID, err)
	}
	return total, nil
}
