package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderBound(t *testing.T) {
	const capacity = 64
	r := NewLatencyRecorder(capacity)

	for n := 1; n <= 500; n++ {
		r.Record(uint64(n))
		want := min(n, capacity)
		require.Equal(t, want, r.Len(), "after %d calls", n)
	}
	assert.Equal(t, uint64(500), r.Seen())
	assert.Len(t, r.Samples(), capacity)
}

func TestRecorderKeepsEverythingBelowCapacity(t *testing.T) {
	r := NewLatencyRecorder(100)
	for i := 1; i <= 10; i++ {
		r.Record(uint64(i))
	}
	assert.ElementsMatch(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, r.Samples())
}

func TestRecorderZeroCapacityIsNoop(t *testing.T) {
	r := NewLatencyRecorder(0)
	for i := 0; i < 1000; i++ {
		r.Record(uint64(i))
	}
	assert.Equal(t, uint64(1000), r.Seen())
	assert.Empty(t, r.Samples())
}

func TestRecorderUniformInclusion(t *testing.T) {
	const (
		capacity = 10
		n        = 100
		trials   = 4000
	)
	counts := make([]int, n)
	for trial := 0; trial < trials; trial++ {
		r := NewLatencyRecorder(capacity)
		for v := 0; v < n; v++ {
			r.Record(uint64(v))
		}
		for _, v := range r.Samples() {
			counts[v]++
		}
	}

	want := float64(capacity) / float64(n)
	// sigma = sqrt(p(1-p)/trials) ~ 0.0047; allow ~6 sigma per value.
	const tolerance = 0.03
	for v, c := range counts {
		freq := float64(c) / trials
		assert.InDelta(t, want, freq, tolerance, "value %d inclusion frequency", v)
	}
}

func TestRecorderConcurrentWriters(t *testing.T) {
	const (
		capacity  = 1000
		writers   = 16
		perWriter = 5000
	)
	r := NewLatencyRecorder(capacity)

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				r.Record(uint64(base*perWriter + i + 1))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, uint64(writers*perWriter), r.Seen())
	samples := r.Samples()
	assert.Len(t, samples, capacity)
	for _, v := range samples {
		assert.NotZero(t, v)
	}
}

func TestRecorderConcurrentUniformity(t *testing.T) {
	const (
		capacity = 20
		writers  = 4
		per      = 50
		trials   = 1500
	)
	n := writers * per
	counts := make([]int, n)
	for trial := 0; trial < trials; trial++ {
		r := NewLatencyRecorder(capacity)
		var wg sync.WaitGroup
		wg.Add(writers)
		for w := 0; w < writers; w++ {
			go func(base int) {
				defer wg.Done()
				for i := 0; i < per; i++ {
					r.Record(uint64(base*per + i))
				}
			}(w)
		}
		wg.Wait()
		for _, v := range r.Samples() {
			counts[v]++
		}
	}

	// Averaging across each writer's values keeps the check robust while
	// still catching a writer that is systematically favoured.
	want := float64(capacity) / float64(n)
	for w := 0; w < writers; w++ {
		total := 0
		for i := 0; i < per; i++ {
			total += counts[w*per+i]
		}
		freq := float64(total) / float64(trials*per)
		assert.InDelta(t, want, freq, 0.02, "writer %d", w)
	}
}
