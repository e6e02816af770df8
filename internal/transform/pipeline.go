package transform

import (
	"fmt"
	"time"

	"normalizer/internal/dataset"
	"normalizer/internal/metrics"
)

// Step is one named, switchable rule in a Pipeline.
type Step struct {
	Name     string
	Rule     Rule
	Disabled bool
}

// Pipeline applies its steps in order.
type Pipeline struct {
	Name   string
	Steps  []Step
	Logger Logger
}

// Add appends an enabled step.
func (p *Pipeline) Add(name string, r Rule) {
	p.Steps = append(p.Steps, Step{Name: name, Rule: r})
}

// Remove drops every step called name and reports whether any was found.
func (p *Pipeline) Remove(name string) bool {
	kept := p.Steps[:0]
	for _, s := range p.Steps {
		if s.Name != name {
			kept = append(kept, s)
		}
	}
	removed := len(kept) != len(p.Steps)
	p.Steps = kept
	return removed
}

// StepStat records one applied step.
type StepStat struct {
	Name       string
	Type       string
	RowsBefore int
	RowsAfter  int
	Duration   time.Duration
}

// RowsChanged is RowsAfter - RowsBefore.
func (s StepStat) RowsChanged() int { return s.RowsAfter - s.RowsBefore }

// StepError is a step that failed; the pipeline continued without it.
type StepError struct {
	Name string
	Type string
	Err  error
}

func (e StepError) Error() string { return fmt.Sprintf("step %s (%s): %v", e.Name, e.Type, e.Err) }
func (e StepError) Unwrap() error { return e.Err }

// Stats summarizes one Execute call.
type Stats struct {
	Pipeline       string
	Applied        []StepStat
	Errors         []StepError
	InitialRows    int
	InitialColumns int
	FinalRows      int
	FinalColumns   int
	Duration       time.Duration
}

// Execute runs every enabled step against d and returns the final dataset.
//
// A failing step leaves the dataset as it was before that step, is
// recorded in Stats.Errors and logged; later steps still run. d itself is
// never modified. A nil d yields nil and a single *dataset.InvalidInputError
// in Stats.Errors.
func (p *Pipeline) Execute(d *dataset.Dataset) (*dataset.Dataset, Stats) {
	start := time.Now()
	logf := loggerFunc(p.Logger)
	st := Stats{Pipeline: p.Name}
	if d == nil {
		st.Errors = append(st.Errors, StepError{Name: p.Name, Type: "pipeline", Err: &dataset.InvalidInputError{Reason: "dataset is nil"}})
		return nil, st
	}
	st.InitialRows, st.InitialColumns = d.Len(), d.Width()

	cur := d
	for _, s := range p.Steps {
		if s.Disabled || s.Rule == nil {
			continue
		}
		t0 := time.Now()
		before := cur.Len()
		next, err := s.Rule.Apply(cur)
		dur := time.Since(t0)
		if err != nil {
			st.Errors = append(st.Errors, StepError{Name: s.Name, Type: s.Rule.Type(), Err: err})
			metrics.RecordStep("transform", "error", dur)
			logf("stage=transform step=%s type=%s failed err=%v", s.Name, s.Rule.Type(), err)
			continue
		}
		cur = next
		st.Applied = append(st.Applied, StepStat{
			Name: s.Name, Type: s.Rule.Type(),
			RowsBefore: before, RowsAfter: cur.Len(), Duration: dur,
		})
		metrics.RecordStep("transform", "ok", dur)
		logf("stage=transform step=%s type=%s ok rows_before=%d rows_after=%d duration=%s",
			s.Name, s.Rule.Type(), before, cur.Len(), dur)
	}

	st.FinalRows, st.FinalColumns = cur.Len(), cur.Width()
	st.Duration = time.Since(start)
	logf("stage=pipeline name=%s ok steps=%d errors=%d rows=%d->%d duration=%s",
		p.Name, len(st.Applied), len(st.Errors), st.InitialRows, st.FinalRows, st.Duration)
	return cur, st
}
