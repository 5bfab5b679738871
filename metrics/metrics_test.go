package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveEpoch(0.5, 0.2, true)
	c.ObserveEpoch(0.4, 0, false)
	if got := testutil.ToFloat64(c.TrainEpochs); got != 2 {
		t.Errorf("epochs = %v", got)
	}
	if got := testutil.ToFloat64(c.TrainLoss); got != 0.4 {
		t.Errorf("loss = %v", got)
	}
	if got := testutil.ToFloat64(c.TrainRecall); got != 0.2 {
		t.Errorf("recall gauge should keep the last observed value, got %v", got)
	}

	c.Request("cold_start", "ok")
	c.Request("cold_start", "ok")
	if got := testutil.ToFloat64(c.Requests.WithLabelValues("cold_start", "ok")); got != 2 {
		t.Errorf("requests = %v", got)
	}

	c.VersionPublished(7)
	if got := testutil.ToFloat64(c.CurrentVersion); got != 7 {
		t.Errorf("current version = %v", got)
	}
	c.ObserveSearch("content", time.Millisecond)
	if n := testutil.CollectAndCount(c.SearchDuration); n != 1 {
		t.Errorf("search histogram series = %d", n)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveEpoch(1, 1, true)
	c.TrainingFinished("converged")
	c.Request("user", "ok")
	c.DegradedResponse("unhealthy")
	c.ObserveSearch("collaborative", time.Second)
	c.VersionPublished(1)
	c.IndexBuilt("content", 1)
	c.BreakerTransition("open")
}
