package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersNormaliseLabels(t *testing.T) {
	before := testutil.ToFloat64(uploadsTotal.WithLabelValues("ok"))
	IncUpload(" OK ")
	IncUpload("ok")
	if got := testutil.ToFloat64(uploadsTotal.WithLabelValues("ok")) - before; got != 2 {
		t.Fatalf("want 2 uploads counted under ok, got %v", got)
	}

	before = testutil.ToFloat64(rowLogAppendsTotal.WithLabelValues("csv", "error"))
	IncRowLogAppend("CSV", false)
	if got := testutil.ToFloat64(rowLogAppendsTotal.WithLabelValues("csv", "error")) - before; got != 1 {
		t.Fatalf("want 1 failed csv append, got %v", got)
	}
}

func TestSetBuildInfoKeepsOneSeries(t *testing.T) {
	SetBuildInfo("v1", "abc")
	SetBuildInfo("v2", "def")
	if n := testutil.CollectAndCount(buildInfo); n != 1 {
		t.Fatalf("want a single build_info series, got %d", n)
	}
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	MustRegister()
	MustRegister()
}
