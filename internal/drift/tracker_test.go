package drift

import (
	"math"
	"testing"
)

const testBufferFrames = 512

// feedConstantRate pushes n updates at exactly rate R, advancing the clock
// by bufferFrames/R seconds each tick, and returns the tracker.
func feedConstantRate(t *Tracker, rate float64, n int, startTime float64) float64 {
	clock := startTime
	for i := 0; i < n; i++ {
		t.Update(clock, testBufferFrames)
		clock += float64(testBufferFrames) / rate
	}
	return clock
}

// TestTrackerConvergesToConstantRate covers property 5: given a synthetic
// stream of timestamps exactly matching a constant rate R, rate()
// converges to R within 1e-3 relative error by the time stableCount > 50.
func TestTrackerConvergesToConstantRate(t *testing.T) {
	const rate = 48000.0
	tr := New(rate, 1.0)

	feedConstantRate(tr, rate, stableAfter+1, 0)

	if !tr.IsStable() {
		t.Fatalf("expected tracker to be stable after %d updates", stableAfter+1)
	}

	relErr := math.Abs(tr.Rate()-rate) / rate
	if relErr > 1e-3 {
		t.Fatalf("rate = %v, want within 1e-3 of %v (relErr=%v)", tr.Rate(), rate, relErr)
	}
}

// TestTrackerReconvergesAfterStep covers property 6: timestamps for R1
// stepping to R2 at tick 500, rate() re-converges to R2 within 1e-3 after
// at most 500 further updates.
func TestTrackerReconvergesAfterStep(t *testing.T) {
	const r1 = 48000.0
	const r2 = 48100.0
	tr := New(r1, 1.0)

	clock := feedConstantRate(tr, r1, 500, 0)
	feedConstantRate(tr, r2, 500, clock)

	relErr := math.Abs(tr.Rate()-r2) / r2
	if relErr > 1e-3 {
		t.Fatalf("after step, rate = %v, want within 1e-3 of %v (relErr=%v)", tr.Rate(), r2, relErr)
	}
}

// TestTrackerNotStableBeforeThreshold covers property 7: isStable() is
// false for the first <=50 updates after reset.
func TestTrackerNotStableBeforeThreshold(t *testing.T) {
	tr := New(48000, 1.0)
	for i := 0; i < stableAfter; i++ {
		tr.Update(float64(i)*float64(testBufferFrames)/48000, testBufferFrames)
		if tr.IsStable() {
			t.Fatalf("tracker became stable at update %d, want stable only after %d", i, stableAfter)
		}
	}
}

func TestTrackerResetClearsState(t *testing.T) {
	tr := New(48000, 1.0)
	feedConstantRate(tr, 48000, stableAfter+10, 0)
	if !tr.IsStable() {
		t.Fatalf("expected stable tracker before reset")
	}
	tr.Reset()
	if tr.IsStable() {
		t.Fatalf("expected unstable tracker immediately after reset")
	}
	if tr.Rate() != tr.NominalRate() {
		t.Fatalf("expected rate to return to nominal after reset, got %v want %v", tr.Rate(), tr.NominalRate())
	}
}
