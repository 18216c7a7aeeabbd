package teleop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObserveJitter(t *testing.T) {
	m := newMetrics()
	for _, us := range []int64{0, 49, 50, 300, 999, 1000, 5000} {
		m.observeJitter(us)
	}

	counts := make([]int64, len(m.Jitter))
	for i, c := range m.Jitter {
		counts[i] = c.Count()
	}
	assert.Equal(t, []int64{2, 1, 2, 2}, counts)
	assert.Equal(t, int64(5000), m.JitterMax.Value())

	// a smaller deviation keeps the maximum
	m.observeJitter(10)
	assert.Equal(t, int64(5000), m.JitterMax.Value())

	assert.NotNil(t, m.Registry.Get("teleop.tick_jitter.ge_1000us"))
	assert.Contains(t, m.Summary(), "jitter_over_1000us")
}

func TestObserveJitterDoesNotAllocate(t *testing.T) {
	m := newMetrics()
	allocs := testing.AllocsPerRun(100, func() {
		m.observeJitter(120)
	})
	assert.Zero(t, allocs)
}
