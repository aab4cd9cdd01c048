package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkadianet/worldserver/internal/game/loot"
)

// AuditRepository appends loot assignments to the loot_audit table.
// The table is append-only; replayed events are deduped on event_id so
// at-least-once delivery never produces a second row.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit row. Satisfies loot.AuditSink.
func (r *AuditRepository) Append(ctx context.Context, rec loot.AuditRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO loot_audit (event_id, corpse_id, item_id, count, method, roll, recipient_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (event_id) DO NOTHING`,
		rec.EventID, int64(rec.CorpseID), rec.ItemID, rec.Count, rec.Method, rec.Roll, int64(rec.RecipientID),
	)
	if err != nil {
		return fmt.Errorf("appending loot audit %q: %w", rec.EventID, err)
	}
	return nil
}

// AuditEntry is one reconstructed audit row.
type AuditEntry struct {
	EventID     string
	CorpseID    uint32
	ItemID      int32
	Count       int32
	Method      string
	Roll        int32
	RecipientID uint32
	CreatedAt   time.Time
}

// ListByCorpse returns every assignment recorded for a corpse, oldest
// first. Used to reconstruct disputed distributions.
func (r *AuditRepository) ListByCorpse(ctx context.Context, corpseID uint32) ([]AuditEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT event_id, corpse_id, item_id, count, method, roll, recipient_id, created_at
		 FROM loot_audit
		 WHERE corpse_id = $1
		 ORDER BY id`,
		int64(corpseID),
	)
	if err != nil {
		return nil, fmt.Errorf("querying loot audit for corpse %d: %w", corpseID, err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var corpse, recipient int64
		if err := rows.Scan(&e.EventID, &corpse, &e.ItemID, &e.Count, &e.Method, &e.Roll, &recipient, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning loot audit row: %w", err)
		}
		e.CorpseID = uint32(corpse)
		e.RecipientID = uint32(recipient)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating loot audit rows: %w", err)
	}
	return entries, nil
}
