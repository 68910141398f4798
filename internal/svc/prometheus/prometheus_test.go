package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	tu "github.com/seventv/image-resizer/internal/testutil"
)

func TestRegisterAndRecord(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()

	inst := New(Options{Labels: prometheus.Labels{"pod": "test"}})
	inst.Register(registry)

	done := inst.StartRun()
	inst.DecodeSource()()
	inst.Rasterize()()
	done(true)

	inst.Requested()
	inst.Requested()
	inst.Coalesced()
	inst.StaleResult()
	inst.TotalBytesIn(100)
	inst.TotalBytesOut(40)
	inst.TotalBytesSaved(60)
	inst.TotalBytesSaved(-5)
	inst.Analysis(true, false)

	m := inst.(*Instance)
	tu.Assert(t, 1.0, testutil.ToFloat64(m.totalSuccessfulRuns), "successful runs")
	tu.Assert(t, 0.0, testutil.ToFloat64(m.currentRuns), "no run in flight")
	tu.Assert(t, 2.0, testutil.ToFloat64(m.totalRequests), "requests")
	tu.Assert(t, 60.0, testutil.ToFloat64(m.totalBytesSaved), "negative savings are ignored")

	families, err := registry.Gather()
	tu.IsNil(t, err, "gather")
	tu.Assert(t, true, len(families) > 0, "metrics are exported")
}
