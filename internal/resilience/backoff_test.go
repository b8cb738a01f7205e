package resilience

import (
	"testing"
	"time"
)

func TestBackoffPolicy_Delay_NoJitterDoublesToCeiling(t *testing.T) {
	p := BackoffPolicy{Base: 60 * time.Second, Max: 900 * time.Second, Multiplier: 2.0, Jitter: false}

	want := []time.Duration{
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		480 * time.Second,
		900 * time.Second, // clamps before overshooting 960s
		900 * time.Second,
	}
	for attempt, w := range want {
		got := p.Delay(attempt)
		if got != w {
			t.Fatalf("attempt %d: got %v, want %v", attempt, got, w)
		}
	}
}

func TestBackoffPolicy_Delay_JitterStaysWithinTenPercent(t *testing.T) {
	p := BackoffPolicy{Base: 60 * time.Second, Max: 900 * time.Second, Multiplier: 2.0, Jitter: true}
	base := 240 * time.Second
	lo, hi := base-base/10, base+base/10
	sawBelowBase := false
	for i := 0; i < 50; i++ {
		got := p.Delay(2) // unjittered base would be 240s
		if got < lo || got > hi {
			t.Fatalf("jittered delay %v out of [%v, %v]", got, lo, hi)
		}
		if got < base {
			sawBelowBase = true
		}
	}
	if !sawBelowBase {
		t.Fatalf("jitter never went below base %v across 50 samples; expected it to be symmetric, not one-sided", base)
	}
}

func TestDefaultBackoffPolicy(t *testing.T) {
	p := DefaultBackoffPolicy()
	if p.Base != 60*time.Second || p.Max != 900*time.Second || p.Multiplier != 2.0 || !p.Jitter {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}
