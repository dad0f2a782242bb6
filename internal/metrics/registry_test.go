package metrics

import (
	"testing"
	"time"
)

func newTestRegistry(start time.Time) (*Registry, *time.Time) {
	cur := start
	r := New(Config{Window: 10 * time.Second, FPSWindow: 2 * time.Second})
	r.now = func() time.Time { return cur }
	return r, &cur
}

func TestDropCountsAreNonDecreasingWithinWindow(t *testing.T) {
	start := time.Unix(0, 0)
	r, cur := newTestRegistry(start)

	r.RecordDrop("p1", 2, 2)
	snap1 := r.Snapshot()[0]

	*cur = cur.Add(time.Second)
	r.RecordDrop("p1", 2, 2)
	snap2 := r.Snapshot()[0]

	if snap2.TotalDrops < snap1.TotalDrops {
		t.Fatalf("total drops must be non-decreasing: %d then %d", snap1.TotalDrops, snap2.TotalDrops)
	}
}

func TestWindowedDropCountMatchesEventsInWindow(t *testing.T) {
	start := time.Unix(0, 0)
	r, cur := newTestRegistry(start)

	r.RecordDrop("p1", 1, 2)
	*cur = cur.Add(5 * time.Second)
	r.RecordDrop("p1", 1, 2)
	*cur = cur.Add(8 * time.Second) // pushes the first drop outside the 10s window, keeps the second inside

	snap := r.Snapshot()[0]
	if snap.WindowedDrops != 1 {
		t.Fatalf("want 1 windowed drop after the first aged out, got %d", snap.WindowedDrops)
	}
	if snap.TotalDrops != 2 {
		t.Fatalf("total drops must still count both events, got %d", snap.TotalDrops)
	}
}

func TestLatencyQuantileOrdering(t *testing.T) {
	start := time.Unix(0, 0)
	r, _ := newTestRegistry(start)

	for _, ms := range []time.Duration{5, 10, 15, 100, 200} {
		r.RecordLatencies("p1", ms*time.Millisecond, ms*time.Millisecond, ms*time.Millisecond)
	}

	snap := r.Snapshot()[0]
	stats := snap.TotalLatencyMS
	if !(stats.P50 <= stats.P95 && stats.P95 <= stats.Max) {
		t.Fatalf("quantile ordering violated: p50=%v p95=%v max=%v", stats.P50, stats.P95, stats.Max)
	}
	if stats.Count != 5 {
		t.Fatalf("want count 5, got %d", stats.Count)
	}
}

func TestFPSCountsOnlyWithinShortWindow(t *testing.T) {
	start := time.Unix(0, 0)
	r, cur := newTestRegistry(start)

	for i := 0; i < 10; i++ {
		r.RecordProcessed("p1")
	}
	*cur = cur.Add(3 * time.Second) // outside the 2s FPS window
	r.RecordProcessed("p1")

	snap := r.Snapshot()[0]
	wantFPS := 1.0 / r.fpsWindow.Seconds()
	if snap.FPS != wantFPS {
		t.Fatalf("want fps=%v after old events aged out, got %v", wantFPS, snap.FPS)
	}
}

func TestQueueUtilizationIsFractionOfCapacity(t *testing.T) {
	start := time.Unix(0, 0)
	r, _ := newTestRegistry(start)

	r.RecordQueueDepth("p1", 1, 2)
	snap := r.Snapshot()[0]
	if snap.QueueUtilization != 0.5 {
		t.Fatalf("want utilization 0.5, got %v", snap.QueueUtilization)
	}
}

func TestRegisterPipelineAppearsInSnapshotBeforeEvents(t *testing.T) {
	r, _ := newTestRegistry(time.Unix(0, 0))
	r.RegisterPipeline("idle")
	snaps := r.Snapshot()
	if len(snaps) != 1 || snaps[0].PipelineID != "idle" {
		t.Fatalf("expected the registered pipeline to appear in the snapshot, got %+v", snaps)
	}
}
