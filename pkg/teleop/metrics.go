package teleop

import (
	"fmt"

	gometrics "github.com/rcrowley/go-metrics"
)

// jitterBounds are the upper bounds, in microseconds, of the jitter buckets.
var jitterBounds = []int64{50, 250, 1000}

// Metrics are the counters of one loop, registered in their own registry.
// Everything the control goroutine updates is a lock-free counter or gauge.
type Metrics struct {
	Registry gometrics.Registry

	// Ticks counts completed control ticks
	Ticks gometrics.Counter
	// Overruns counts ticks that took longer than the tick period
	Overruns gometrics.Counter
	// Saturations counts ticks where the load shaper hit its ceiling
	Saturations gometrics.Counter
	// Jitter[i] counts ticks whose interval deviated from the period by less
	// than jitterBounds[i]; the last bucket counts the rest
	Jitter []gometrics.Counter
	// JitterMax is the largest deviation seen, in microseconds
	JitterMax gometrics.Gauge
}

func newMetrics() *Metrics {
	r := gometrics.NewRegistry()
	m := &Metrics{
		Registry:    r,
		Ticks:       gometrics.NewRegisteredCounter("teleop.ticks", r),
		Overruns:    gometrics.NewRegisteredCounter("teleop.overruns", r),
		Saturations: gometrics.NewRegisteredCounter("teleop.saturations", r),
		JitterMax:   gometrics.NewRegisteredGauge("teleop.tick_jitter_max_us", r),
	}
	for _, b := range jitterBounds {
		m.Jitter = append(m.Jitter, gometrics.NewRegisteredCounter(fmt.Sprintf("teleop.tick_jitter.lt_%dus", b), r))
	}
	last := jitterBounds[len(jitterBounds)-1]
	m.Jitter = append(m.Jitter, gometrics.NewRegisteredCounter(fmt.Sprintf("teleop.tick_jitter.ge_%dus", last), r))
	return m
}

// observeJitter records one tick interval deviation in microseconds. Only the
// control goroutine calls it.
func (m *Metrics) observeJitter(us int64) {
	i := 0
	for i < len(jitterBounds) && us >= jitterBounds[i] {
		i++
	}
	m.Jitter[i].Inc(1)
	if us > m.JitterMax.Value() {
		m.JitterMax.Update(us)
	}
}

// Summary returns the counters as slog-friendly key/value pairs.
func (m *Metrics) Summary() []any {
	last := jitterBounds[len(jitterBounds)-1]
	return []any{
		"ticks", m.Ticks.Count(),
		"overruns", m.Overruns.Count(),
		"saturations", m.Saturations.Count(),
		fmt.Sprintf("jitter_over_%dus", last), m.Jitter[len(m.Jitter)-1].Count(),
		"jitter_max_us", m.JitterMax.Value(),
	}
}
