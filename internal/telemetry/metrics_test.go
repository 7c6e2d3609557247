package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// ---------------------------------------------------------------------------
// Registration
//
// Describe() is used instead of Gather() because *Vec metrics with no label
// combination observed yet are absent from Gather output.
// ---------------------------------------------------------------------------

func TestMetrics_AllRegistered(t *testing.T) {
	cases := []struct {
		name string
		c    prometheus.Collector
	}{
		{"http_requests_total", HTTPRequestsTotal},
		{"http_request_duration_seconds", HTTPRequestDuration},
		{"resource_operations_total", ResourceOperationsTotal},
		{"listing_cache_hits_total", ListingCacheHitsTotal},
		{"listing_cache_misses_total", ListingCacheMissesTotal},
		{"rate_limit_rejections_total", RateLimitRejectionsTotal},
		{"background_panics_total", BackgroundPanicsTotal},
		{"inspection_reminders_sent_total", InspectionRemindersSentTotal},
		{"db_open_connections", DBOpenConnections},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan *prometheus.Desc, 10)
			tc.c.Describe(ch)
			close(ch)
			for desc := range ch {
				if strings.Contains(desc.String(), `"`+tc.name+`"`) {
					return
				}
			}
			t.Errorf("metric %q: Describe() returned no descriptor with this fqName", tc.name)
		})
	}
}

func TestMetrics_ResourceOperationsTotal(t *testing.T) {
	labels := prometheus.Labels{"resource": "inspection", "operation": "confirm", "outcome": "forbidden"}
	before := counterValue(t, ResourceOperationsTotal, labels)
	ResourceOperationsTotal.With(labels).Inc()
	after := counterValue(t, ResourceOperationsTotal, labels)
	if after-before != 1 {
		t.Errorf("counter delta = %.0f, want 1", after-before)
	}
}

func TestMetrics_InspectionReminders(t *testing.T) {
	before := plainCounterValue(t, InspectionRemindersSentTotal)
	InspectionRemindersSentTotal.Inc()
	if after := plainCounterValue(t, InspectionRemindersSentTotal); after-before != 1 {
		t.Errorf("counter delta = %.0f, want 1", after-before)
	}
}

func TestStartDBStatsCollector_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// A nil *sql.DB would panic if the ticker branch ran; cancellation wins first.
	StartDBStatsCollector(ctx, nil)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func counterValue(t *testing.T, cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 50)
	cv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if labelsMatch(dm.GetLabel(), labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

func plainCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var dm dto.Metric
	if err := c.Write(&dm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dm.GetCounter().GetValue()
}

func labelsMatch(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
