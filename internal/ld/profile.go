package ld

import (
	"fmt"
	"io"
	"time"

	"github.com/google/pprof/profile"
)

// PhaseTimer records wall-clock durations for the compiler's top-level
// phases (analyze, codegen, assemble) and renders them as a pprof profile
// so `go tool pprof -top phases.pb.gz` works the same way it does against a
// CPU profile, without requiring the runtime's own profiler.
type PhaseTimer struct {
	phases []phaseSample
}

type phaseSample struct {
	name     string
	duration time.Duration
}

// Record adds one phase's measured duration.
func (t *PhaseTimer) Record(name string, d time.Duration) {
	t.phases = append(t.phases, phaseSample{name: name, duration: d})
}

// WriteProfile serializes the recorded phases as a pprof samples-type
// profile with a single "nanoseconds" value per sample, one sample per
// phase, labeled by phase name.
func (t *PhaseTimer) WriteProfile(w io.Writer) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "phase_time", Unit: "nanoseconds"}},
		TimeNanos:  time.Now().UnixNano(),
	}
	fn := &profile.Function{ID: 1, Name: "compile"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn}}}
	p.Function = []*profile.Function{fn}
	p.Location = []*profile.Location{loc}

	for i, ph := range t.phases {
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{ph.duration.Nanoseconds()},
			Label:    map[string][]string{"phase": {ph.name}},
			NumUnit:  map[string][]string{"phase": {fmt.Sprintf("%d", i)}},
		})
	}
	return p.Write(w)
}
