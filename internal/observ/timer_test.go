package observ

import (
	"strings"
	"testing"
	"time"
)

func TestTimerReportAggregates(t *testing.T) {
	timer := NewTimer()

	p1 := timer.Begin("check")
	p1.Dur = 30 * time.Millisecond // выставляем вручную, чтобы тест был детерминирован
	p1.Note = "12 files"
	p1.done = true

	p2 := timer.Begin("render")
	p2.Dur = 10 * time.Millisecond
	p2.done = true

	report := timer.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(report.Phases))
	}
	if report.TotalMS != 40 {
		t.Fatalf("total = %v ms, want 40", report.TotalMS)
	}
	if report.Phases[0].Note != "12 files" {
		t.Fatalf("note = %q, want %q", report.Phases[0].Note, "12 files")
	}

	summary := timer.Summary()
	if !strings.Contains(summary, "check") || !strings.Contains(summary, "total") {
		t.Fatalf("summary missing phases:\n%s", summary)
	}
}

func TestPhaseDoneIsIdempotent(t *testing.T) {
	timer := NewTimer()
	p := timer.Begin("once")
	p.Done("first")
	dur := p.Dur
	p.Done("second")
	if p.Note != "first" || p.Dur != dur {
		t.Fatalf("second Done must not overwrite: note=%q", p.Note)
	}

	var nilPhase *Phase
	nilPhase.Done("ignored") // не должно паниковать
}

func TestEmptyTimerReport(t *testing.T) {
	if r := NewTimer().Report(); len(r.Phases) != 0 || r.TotalMS != 0 {
		t.Fatalf("empty timer must produce empty report, got %+v", r)
	}
}
