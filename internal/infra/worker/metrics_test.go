package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCollectionRun(t *testing.T) {
	m := sharedMetrics()

	before := testutil.ToFloat64(m.CollectionRunsTotal.WithLabelValues("success"))
	m.RecordCollectionRun("success")
	m.RecordCollectionRun("failure")

	after := testutil.ToFloat64(m.CollectionRunsTotal.WithLabelValues("success"))
	if after != before+1 {
		t.Errorf("expected success counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestRecordLinksCollected(t *testing.T) {
	m := sharedMetrics()

	before := testutil.ToFloat64(m.CollectionLinksTotal)
	m.RecordLinksCollected(7)

	if got := testutil.ToFloat64(m.CollectionLinksTotal); got != before+7 {
		t.Errorf("expected links counter to grow by 7, got %v -> %v", before, got)
	}
}

func TestRecordLastSuccess(t *testing.T) {
	m := sharedMetrics()

	m.RecordLastSuccess()
	if got := testutil.ToFloat64(m.CollectionLastSuccessMoment); got <= 0 {
		t.Errorf("expected a current timestamp, got %v", got)
	}
}
