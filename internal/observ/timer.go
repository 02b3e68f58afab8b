package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase records one timed stage of an analysis run.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string

	done bool
}

// Done finishes the phase. Calling it twice keeps the first measurement.
func (p *Phase) Done(note string) {
	if p == nil || p.done {
		return
	}
	p.done = true
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Timer collects the phases of one run for the --timings report.
type Timer struct {
	phases []*Phase
}

func NewTimer() *Timer { return &Timer{phases: make([]*Phase, 0, 8)} }

// Begin starts a new phase; finish it with Done.
func (t *Timer) Begin(name string) *Phase {
	p := &Phase{Name: name, Start: time.Now()}
	t.phases = append(t.phases, p)
	return p
}

// Summary returns a human-readable string summarizing all tracked phases.
func (t *Timer) Summary() string {
	report := t.Report()
	var b strings.Builder
	b.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&b, "  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			b.WriteString("  // " + p.Note)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "  %-20s %7.2f ms\n", "total", report.TotalMS)
	return b.String()
}

// PhaseReport представляет сжатую информацию о фазе таймера для сериализации.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report описывает агрегированные данные таймера.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report формирует срез фаз и общую длительность в миллисекундах.
func (t *Timer) Report() Report {
	if len(t.phases) == 0 {
		return Report{}
	}
	report := Report{
		Phases: make([]PhaseReport, len(t.phases)),
	}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
