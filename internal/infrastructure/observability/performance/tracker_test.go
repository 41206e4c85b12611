package performance

import (
	"errors"
	"testing"
	"time"
)

func TestTrackerAggregatesOperations(t *testing.T) {
	tracker := NewTracker(time.Hour, 2)

	ok := tracker.StartOperation("campaigns:evaluate", "c1")
	ok.Complete()
	ok.Complete() // second call is ignored

	failed := tracker.StartOperation("campaigns:evaluate", "c2")
	failed.SetError(errors.New("boom"))
	failed.Complete()

	other := tracker.StartOperation("readers:events", "c1")
	other.Complete()

	summary := tracker.Summary()
	if len(summary.Operations) != 2 {
		t.Fatalf("operations = %d, want 2", len(summary.Operations))
	}
	eval := summary.Operations[0]
	if eval.Operation != "campaigns:evaluate" || eval.Count != 2 || eval.Failures != 1 || eval.Slow != 0 {
		t.Errorf("unexpected stats %+v", eval)
	}
	if len(summary.Recent) != 2 || summary.Recent[0].Operation != "readers:events" {
		t.Errorf("recent = %+v, want the two newest markers newest first", summary.Recent)
	}
}

func TestTrackerCountsSlowOperations(t *testing.T) {
	tracker := NewTracker(time.Nanosecond, 10)
	m := tracker.StartOperation("segments:list", "")
	time.Sleep(time.Millisecond)
	m.Complete()

	if got := tracker.Summary().Operations[0].Slow; got != 1 {
		t.Errorf("slow = %d, want 1", got)
	}
}
