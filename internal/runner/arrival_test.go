package runner

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPoissonArrivalNextDelayUsesSampler(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }, rate: 200}
	delay := ctrl.nextDelay()
	expected := time.Second / 200
	if delay != expected {
		t.Fatalf("expected delay %s, got %s", expected, delay)
	}
}

func TestPoissonArrivalWaitCancelledContext(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }, rate: 0.000001}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The first slot is immediate; the second lies far in the future.
	_ = ctrl.Wait(ctx)
	if err := ctrl.Wait(ctx); err == nil {
		t.Fatalf("expected context error when cancelled")
	}
}

func TestPoissonArrivalSharesTimelineAcrossCallers(t *testing.T) {
	ctrl := &poissonArrival{sample: func() float64 { return 1 }, rate: 100}

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			at := ctrl.reserve()
			mu.Lock()
			seen[at] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 8 {
		t.Fatalf("expected 8 distinct slots, got %d", len(seen))
	}
	var first, last time.Time
	for at := range seen {
		if first.IsZero() || at.Before(first) {
			first = at
		}
		if at.After(last) {
			last = at
		}
	}
	if span := last.Sub(first); span < 70*time.Millisecond {
		t.Errorf("slots span %s, want at least 70ms for 8 arrivals at 100/s", span)
	}
}

func TestNewArrivalController(t *testing.T) {
	opt := Options{}
	opt.normalize()
	if ctrl := newArrivalController(opt); ctrl != nil {
		t.Errorf("expected nil controller without a rate, got %T", ctrl)
	}

	opt.RatePerSecond = 10
	if _, ok := newArrivalController(opt).(*uniformArrival); !ok {
		t.Errorf("expected uniform controller by default")
	}

	opt.ArrivalModel = ArrivalModelPoisson
	if _, ok := newArrivalController(opt).(*poissonArrival); !ok {
		t.Errorf("expected poisson controller")
	}
}
