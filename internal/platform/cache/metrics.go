package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisek/gauge/internal/calibration"
)

// DefaultMetricsTTL bounds how long cached item metrics are served.
const DefaultMetricsTTL = 24 * time.Hour

const metricsPrefix = "gauge:metrics:"

// MetricsCache stores JSON-encoded item metrics under gauge:metrics:<id>.
type MetricsCache struct {
	c   *Cache
	ttl time.Duration
}

// NewMetricsCache returns a metrics cache on c. A non-positive ttl uses
// DefaultMetricsTTL.
func NewMetricsCache(c *Cache, ttl time.Duration) *MetricsCache {
	if ttl <= 0 {
		ttl = DefaultMetricsTTL
	}
	return &MetricsCache{c: c, ttl: ttl}
}

var _ calibration.MetricsCache = (*MetricsCache)(nil)

func metricsKey(itemID int64) string {
	return metricsPrefix + strconv.FormatInt(itemID, 10)
}

// Get returns the cached metrics of an item. A miss is (nil, false, nil).
func (m *MetricsCache) Get(ctx context.Context, itemID int64) (*calibration.ItemMetrics, bool, error) {
	b, err := m.c.Client.Get(ctx, metricsKey(itemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached metrics: %w", err)
	}
	var im calibration.ItemMetrics
	if err := json.Unmarshal(b, &im); err != nil {
		return nil, false, fmt.Errorf("decode cached metrics: %w", err)
	}
	return &im, true, nil
}

// Set caches the metrics of one item.
func (m *MetricsCache) Set(ctx context.Context, im calibration.ItemMetrics) error {
	b, err := json.Marshal(im)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := m.c.Client.Set(ctx, metricsKey(im.ItemID), b, m.ttl).Err(); err != nil {
		return fmt.Errorf("set cached metrics: %w", err)
	}
	return nil
}

// Delete drops the cached metrics of an item.
func (m *MetricsCache) Delete(ctx context.Context, itemID int64) error {
	if err := m.c.Client.Del(ctx, metricsKey(itemID)).Err(); err != nil {
		return fmt.Errorf("delete cached metrics: %w", err)
	}
	return nil
}
