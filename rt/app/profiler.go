package app

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Profiler accumulates named CPU scopes and frame counters. Scope
// durations are smoothed with an exponential moving average so the
// periodic log line is readable instead of jittering per frame.
type Profiler struct {
	scopes    map[string]time.Duration
	starts    map[string]time.Time
	counts    map[string]int
	order     []string
	smoothing float64
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes:    make(map[string]time.Duration),
		starts:    make(map[string]time.Time),
		counts:    make(map[string]int),
		smoothing: 0.9,
	}
}

func (p *Profiler) Begin(name string) {
	p.starts[name] = time.Now()
	for _, n := range p.order {
		if n == name {
			return
		}
	}
	p.order = append(p.order, name)
}

func (p *Profiler) End(name string) {
	start, ok := p.starts[name]
	if !ok {
		return
	}
	sample := time.Since(start)
	prev := p.scopes[name]
	p.scopes[name] = time.Duration(float64(prev)*p.smoothing + float64(sample)*(1-p.smoothing))
}

func (p *Profiler) SetCount(name string, count int) {
	p.counts[name] = count
}

func (p *Profiler) Stats() string {
	var sb strings.Builder
	sb.WriteString("frame scopes:")
	for _, name := range p.order {
		ms := float64(p.scopes[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf(" %s=%.2fms", name, ms))
	}
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%d", k, p.counts[k]))
	}
	return sb.String()
}
