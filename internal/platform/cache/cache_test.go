package cache

import (
	"os"
	"testing"
	"time"

	"github.com/abhisek/gauge/internal/calibration"
	"github.com/abhisek/gauge/internal/level"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid-redis", "redis://localhost:6379", false},
		{"valid-with-db", "redis://localhost:6379/0", false},
		{"empty", "", true},
		{"wrong-scheme", "http://localhost:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	ctx := t.Context()
	_, err := New(ctx, "redis://localhost:59999")
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestMetricsKey(t *testing.T) {
	if got := metricsKey(42); got != "gauge:metrics:42" {
		t.Errorf("metricsKey(42) = %q", got)
	}
}

// TestMetricsCache_RoundTrip needs a live Redis at GAUGE_TEST_REDIS_URL.
func TestMetricsCache_RoundTrip(t *testing.T) {
	url := os.Getenv("GAUGE_TEST_REDIS_URL")
	if testing.Short() || url == "" {
		t.Skip("set GAUGE_TEST_REDIS_URL to run against Redis")
	}
	ctx := t.Context()
	c, err := New(ctx, url)
	if err != nil {
		t.Skipf("redis unreachable: %v", err)
	}
	defer c.Close()

	mc := NewMetricsCache(c, time.Minute)
	const id = int64(987654321)
	t.Cleanup(func() { mc.Delete(ctx, id) })

	if _, ok, err := mc.Get(ctx, id); err != nil || ok {
		t.Fatalf("Get before Set = %v, %v; want miss", ok, err)
	}
	rec := level.A2
	in := calibration.ItemMetrics{ItemID: id, ItemLevel: level.B1, Attempts: 12, Accuracy: 91.67, NeedsReview: true, Recommended: &rec}
	if err := mc.Set(ctx, in); err != nil {
		t.Fatalf("Set: %v", err)
	}
	out, ok, err := mc.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if out.Accuracy != 91.67 || out.Recommended == nil || *out.Recommended != level.A2 {
		t.Errorf("round trip = %+v", out)
	}
	if err := mc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := mc.Get(ctx, id); ok {
		t.Error("entry survived Delete")
	}
}
