package calibration

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/gauge/internal/logger"
)

// Config bundles the calibration rules.
type Config struct {
	Thresholds Thresholds
	Report     ReportConfig
	// Workers bounds concurrent item analysis during a report run.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Thresholds: DefaultThresholds(),
		Report:     DefaultReportConfig(),
		Workers:    4,
	}
}

// Service runs item analysis and report generation against storage.
type Service struct {
	items     ItemLister
	responses ResponseSource
	reports   ReportStore
	metrics   MetricsStore
	cache     MetricsCache
	cfg       Config
	log       *logger.Logger

	now func() time.Time
}

// NewService wires a calibration service. cache may be nil.
func NewService(items ItemLister, responses ResponseSource, reports ReportStore, metrics MetricsStore, cache MetricsCache, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Service{
		items:     items,
		responses: responses,
		reports:   reports,
		metrics:   metrics,
		cache:     cache,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// AnalyzeItem recomputes one item's metrics from every response up to now
// and stores the result.
func (s *Service) AnalyzeItem(ctx context.Context, itemID int64) (*ItemMetrics, error) {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	obs, err := s.responses.Observations(ctx, itemID, now)
	if err != nil {
		return nil, fmt.Errorf("load observations for item %d: %w", itemID, err)
	}
	m := Analyze(item, obs, s.cfg.Thresholds, now)
	if err := s.store(ctx, []ItemMetrics{m}); err != nil {
		return nil, err
	}
	return &m, nil
}

// Metrics returns the stored metrics for an item, computing them when none
// exist yet. The cache is consulted first when configured.
func (s *Service) Metrics(ctx context.Context, itemID int64) (*ItemMetrics, error) {
	if s.cache != nil {
		m, ok, err := s.cache.Get(ctx, itemID)
		if err != nil {
			s.log.Warn("metrics cache read failed", "item_id", itemID, "error", err)
		} else if ok {
			return m, nil
		}
	}
	m, err := s.metrics.GetMetrics(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return s.AnalyzeItem(ctx, itemID)
	}
	s.fill(ctx, *m)
	return m, nil
}

// GenerateReport analyzes every item against responses up to the moment
// the run starts and saves the resulting report. Items that fail to load
// are reported as zero-metric records.
func (s *Service) GenerateReport(ctx context.Context) (*Report, error) {
	cutoff := s.now()
	items, err := s.items.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	results := make([]ItemMetrics, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, item := range items {
		g.Go(func() error {
			obs, err := s.responses.Observations(gctx, item.ID, cutoff)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warn("item analysis degraded to zero metrics", "item_id", item.ID, "error", err)
				obs = nil
			}
			results[i] = Analyze(item, obs, s.cfg.Thresholds, cutoff)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store(ctx, results); err != nil {
		return nil, err
	}

	r := BuildReport(results, s.cfg.Report, cutoff, s.now())
	id, err := s.reports.SaveReport(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	r.ID = id

	log := s.log.With("report_id", r.ID)
	log.Info("calibration report generated", "items", r.TotalItems, "needs_review", r.NeedsReview)
	if r.HighPriority(s.cfg.Report) {
		log.Warn("flagged share above high-priority threshold",
			"needs_review", r.NeedsReview, "total", r.TotalItems, "share", s.cfg.Report.HighPriorityShare)
	}
	return r, nil
}

// Report returns a saved report.
func (s *Service) Report(ctx context.Context, id int64) (*Report, error) {
	return s.reports.GetReport(ctx, id)
}

// Reports lists saved reports, newest first.
func (s *Service) Reports(ctx context.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.reports.ListReports(ctx, limit)
}

// Review lists stored metrics of flagged items with at least minAttempts.
func (s *Service) Review(ctx context.Context, minAttempts int) ([]ItemMetrics, error) {
	if minAttempts < 0 {
		minAttempts = s.cfg.Thresholds.MinAttempts
	}
	return s.metrics.ListFlagged(ctx, minAttempts)
}

// Invalidate drops stored metrics for an item so the next read recomputes.
func (s *Service) Invalidate(ctx context.Context, itemID int64) error {
	if err := s.metrics.DeleteMetrics(ctx, itemID); err != nil {
		return fmt.Errorf("delete metrics for item %d: %w", itemID, err)
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, itemID); err != nil {
			s.log.Warn("metrics cache delete failed", "item_id", itemID, "error", err)
		}
	}
	return nil
}

// Watch regenerates the report every interval until ctx is done. Each
// report is passed to onReport when it is non-nil. A failed run is logged
// and retried on the next tick.
func (s *Service) Watch(ctx context.Context, interval time.Duration, onReport func(*Report)) error {
	run := func() {
		r, err := s.GenerateReport(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Error("scheduled calibration failed", "error", err)
			}
			return
		}
		if onReport != nil {
			onReport(r)
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}

func (s *Service) store(ctx context.Context, ms []ItemMetrics) error {
	if err := s.metrics.SaveMetrics(ctx, ms); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	for _, m := range ms {
		s.fill(ctx, m)
	}
	return nil
}

func (s *Service) fill(ctx context.Context, m ItemMetrics) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, m); err != nil {
		s.log.Warn("metrics cache write failed", "item_id", m.ItemID, "error", err)
	}
}
