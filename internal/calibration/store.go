package calibration

import (
	"context"
	"time"

	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
)

// ItemLister reads the bank.
type ItemLister interface {
	ListItems(ctx context.Context) ([]*bank.Item, error)
	GetItem(ctx context.Context, id int64) (*bank.Item, error)
}

// ResponseSource reads the response log.
type ResponseSource interface {
	// Observations returns responses to itemID from completed sessions,
	// answered at or before cutoff.
	Observations(ctx context.Context, itemID int64, cutoff time.Time) ([]Observation, error)
}

// ReportStore persists reports. Saved reports are never modified.
type ReportStore interface {
	SaveReport(ctx context.Context, r *Report) (int64, error)
	GetReport(ctx context.Context, id int64) (*Report, error)
	ListReports(ctx context.Context, limit int) ([]*Report, error)
}

// MetricsStore keeps the latest metrics per item.
type MetricsStore interface {
	SaveMetrics(ctx context.Context, ms []ItemMetrics) error
	GetMetrics(ctx context.Context, itemID int64) (*ItemMetrics, error)
	// ListFlagged returns flagged metrics with at least minAttempts,
	// lowest confidence first.
	ListFlagged(ctx context.Context, minAttempts int) ([]ItemMetrics, error)
	DeleteMetrics(ctx context.Context, itemID int64) error
}

// MetricsCache is an optional fast lookup in front of MetricsStore.
type MetricsCache interface {
	Get(ctx context.Context, itemID int64) (*ItemMetrics, bool, error)
	Set(ctx context.Context, m ItemMetrics) error
	Delete(ctx context.Context, itemID int64) error
}

// Reclassification is one audited change of an item's level.
type Reclassification struct {
	ID       int64
	Sequence int64
	ItemID   int64
	OldLevel level.Level
	NewLevel level.Level
	Actor    string
	Reason   string
	At       time.Time
}

// LedgerTx is the unit of work for one reclassification.
type LedgerTx interface {
	GetItem(ctx context.Context, id int64) (*bank.Item, error)
	SetItemLevel(ctx context.Context, id int64, lvl level.Level) error
	AppendReclassification(ctx context.Context, r *Reclassification) error
}

// LedgerStore persists reclassifications.
type LedgerStore interface {
	WithinLedgerTx(ctx context.Context, fn func(tx LedgerTx) error) error
	// Reclassifications lists an item's records, newest first.
	Reclassifications(ctx context.Context, itemID int64) ([]Reclassification, error)
}
