package calibration

import (
	"context"
	"strings"
	"time"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/level"
	"github.com/abhisek/gauge/internal/logger"
)

// Invalidator drops derived data for an item after its level changes.
type Invalidator interface {
	Invalidate(ctx context.Context, itemID int64) error
}

// Ledger is the only path by which an item's level of record changes.
type Ledger struct {
	store      LedgerStore
	invalidate Invalidator
	log        *logger.Logger
	now        func() time.Time
}

// NewLedger creates a ledger. inv may be nil.
func NewLedger(store LedgerStore, inv Invalidator, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{store: store, invalidate: inv, log: log, now: time.Now}
}

// Reclassify moves an item to newLevel and appends the audit record in the
// same transaction. Asking for the current level is a conflict and writes
// nothing.
func (l *Ledger) Reclassify(ctx context.Context, itemID int64, newLevel level.Level, actor, reason string) (*Reclassification, error) {
	const op = "calibration.reclassify"
	if !newLevel.Valid() {
		return nil, apperr.Validation(op, "new_level", "invalid level %q, must be one of %v", newLevel, level.All()).WithItem(itemID)
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperr.Validation(op, "actor", "actor is required").WithItem(itemID)
	}

	var rec *Reclassification
	err := l.store.WithinLedgerTx(ctx, func(tx LedgerTx) error {
		item, err := tx.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Level == newLevel {
			return apperr.Conflict(op, "item is already at level %s", newLevel).WithItem(itemID)
		}
		rec = &Reclassification{
			ItemID:   itemID,
			OldLevel: item.Level,
			NewLevel: newLevel,
			Actor:    actor,
			Reason:   strings.TrimSpace(reason),
			At:       l.now(),
		}
		if err := tx.AppendReclassification(ctx, rec); err != nil {
			return err
		}
		return tx.SetItemLevel(ctx, itemID, newLevel)
	})
	if err != nil {
		return nil, err
	}

	log := l.log.With("item_id", itemID, "actor", actor)
	log.Info("item reclassified", "old_level", rec.OldLevel, "new_level", rec.NewLevel, "sequence", rec.Sequence)
	if l.invalidate != nil {
		if err := l.invalidate.Invalidate(ctx, itemID); err != nil {
			log.Warn("metrics invalidation failed", "error", err)
		}
	}
	return rec, nil
}

// History lists an item's reclassifications, newest first.
func (l *Ledger) History(ctx context.Context, itemID int64) ([]Reclassification, error) {
	return l.store.Reclassifications(ctx, itemID)
}
