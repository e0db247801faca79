package calibration

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
)

type mockItems struct {
	items []*bank.Item
}

func (m *mockItems) ListItems(context.Context) ([]*bank.Item, error) { return m.items, nil }

func (m *mockItems) GetItem(_ context.Context, id int64) (*bank.Item, error) {
	for _, it := range m.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, apperr.NotFound("mock.item", "item %d not found", id).WithItem(id)
}

type mockResponses struct {
	mu      sync.Mutex
	byItem  map[int64][]Observation
	failFor map[int64]bool
	cutoffs []time.Time
}

func (m *mockResponses) Observations(_ context.Context, id int64, cutoff time.Time) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cutoffs = append(m.cutoffs, cutoff)
	if m.failFor[id] {
		return nil, errors.New("connection reset")
	}
	var out []Observation
	for _, o := range m.byItem[id] {
		if !o.AnsweredAt.After(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockReports struct {
	saved []*Report
}

func (m *mockReports) SaveReport(_ context.Context, r *Report) (int64, error) {
	m.saved = append(m.saved, r)
	return int64(len(m.saved)), nil
}

func (m *mockReports) GetReport(_ context.Context, id int64) (*Report, error) {
	if id < 1 || int(id) > len(m.saved) {
		return nil, apperr.NotFound("mock.report", "report %d not found", id)
	}
	return m.saved[id-1], nil
}

func (m *mockReports) ListReports(_ context.Context, limit int) ([]*Report, error) {
	var out []*Report
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.saved[i])
	}
	return out, nil
}

type mockMetrics struct {
	mu   sync.Mutex
	byID map[int64]ItemMetrics
}

func newMockMetrics() *mockMetrics { return &mockMetrics{byID: map[int64]ItemMetrics{}} }

func (m *mockMetrics) SaveMetrics(_ context.Context, ms []ItemMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range ms {
		m.byID[x.ItemID] = x
	}
	return nil
}

func (m *mockMetrics) GetMetrics(_ context.Context, id int64) (*ItemMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &x, nil
}

func (m *mockMetrics) ListFlagged(_ context.Context, minAttempts int) ([]ItemMetrics, error) {
	var out []ItemMetrics
	for _, x := range m.byID {
		if x.NeedsReview && x.Attempts >= minAttempts {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence < out[j].Confidence })
	return out, nil
}

func (m *mockMetrics) DeleteMetrics(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

type mockCache struct {
	mu   sync.Mutex
	byID map[int64]ItemMetrics
	gets int
}

func (c *mockCache) Get(_ context.Context, id int64) (*ItemMetrics, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	x, ok := c.byID[id]
	return &x, ok, nil
}

func (c *mockCache) Set(_ context.Context, m ItemMetrics) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[m.ItemID] = m
	return nil
}

func (c *mockCache) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, id)
	return nil
}

type fixture struct {
	svc       *Service
	items     *mockItems
	responses *mockResponses
	reports   *mockReports
	metrics   *mockMetrics
	cache     *mockCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		items: &mockItems{items: []*bank.Item{
			itemAt(1, level.B1), // too easy
			itemAt(2, level.B1), // fine
			itemAt(3, level.C1), // no responses
			itemAt(4, level.A2), // load fails
		}},
		responses: &mockResponses{
			byItem: map[int64][]Observation{
				1: obsN(level.B1, 12, 12),
				2: concat(obsN(level.B2, 6, 5), obsN(level.A1, 6, 1)),
				4: obsN(level.A2, 20, 0),
			},
			failFor: map[int64]bool{4: true},
		},
		reports: &mockReports{},
		metrics: newMockMetrics(),
		cache:   &mockCache{byID: map[int64]ItemMetrics{}},
	}
	for id, obs := range f.responses.byItem {
		for i := range obs {
			obs[i].AnsweredAt = t0.Add(-time.Hour)
		}
		f.responses.byItem[id] = obs
	}
	f.svc = NewService(f.items, f.responses, f.reports, f.metrics, f.cache, DefaultConfig(), nil)
	f.svc.now = func() time.Time { return t0 }
	return f
}

func TestGenerateReport(t *testing.T) {
	f := newFixture(t)
	// A response after the cutoff must be ignored.
	f.responses.byItem[2] = append(f.responses.byItem[2], Observation{ResponderLevel: level.B1, AnsweredAt: t0.Add(time.Minute)})

	r, err := f.svc.GenerateReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, 4, r.TotalItems)
	assert.Equal(t, 1, r.NeedsReview)
	require.Len(t, r.Flagged, 1)
	assert.Equal(t, int64(1), r.Flagged[0].ItemID)
	assert.True(t, r.Cutoff.Equal(t0))
	assert.Equal(t, 50.0, r.WellCalibrated[level.B1])
	assert.Equal(t, 100.0, r.WellCalibrated[level.A2], "failed item degrades to an unflagged zero record")

	for _, c := range f.responses.cutoffs {
		assert.True(t, c.Equal(t0), "every item is read with the same cutoff")
	}

	m2, err := f.metrics.GetMetrics(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, m2)
	assert.Equal(t, 12, m2.Attempts)

	m4, err := f.metrics.GetMetrics(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 0, m4.Attempts)

	assert.Len(t, f.cache.byID, 4)
}

func TestGenerateReport_Reproducible(t *testing.T) {
	f := newFixture(t)
	a, err := f.svc.GenerateReport(context.Background())
	require.NoError(t, err)
	b, err := f.svc.GenerateReport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Flagged, b.Flagged)
	assert.Equal(t, a.WellCalibrated, b.WellCalibrated)
	assert.Equal(t, a.Recommendations, b.Recommendations)

	hist, err := f.svc.Reports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, b, hist[0])
}

func TestAnalyzeItem_StoresAndCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.AnalyzeItem(ctx, 1)
	require.NoError(t, err)
	assert.True(t, m.NeedsReview)
	assert.Equal(t, DirectionTooEasy, m.Direction)

	_, err = f.svc.AnalyzeItem(ctx, 99)
	assert.True(t, apperr.IsNotFound(err))

	cached, err := f.svc.Metrics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, m.Accuracy, cached.Accuracy)
	assert.Equal(t, 1, f.cache.gets)

	review, err := f.svc.Review(ctx, 10)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, int64(1), review[0].ItemID)

	require.NoError(t, f.svc.Invalidate(ctx, 1))
	_, ok := f.cache.byID[1]
	assert.False(t, ok)
	stored, err := f.metrics.GetMetrics(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestMetrics_ComputesWhenMissing(t *testing.T) {
	f := newFixture(t)
	f.svc.cache = nil
	m, err := f.svc.Metrics(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 12, m.Attempts)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	var got []*Report
	err := f.svc.Watch(ctx, time.Hour, func(r *Report) {
		got = append(got, r)
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, got, 1)
}
