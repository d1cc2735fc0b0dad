// Package drift implements the delay-locked loop (DLL) used to estimate a
// physical audio device's true sample rate from timestamped I/O callbacks.
// One Tracker is owned per physical device and mutated only on that
// device's own I/O thread — it carries no internal locking.
package drift

import "math"

// Tracker is a second-order, critically damped delay-locked loop after
// Fons Adriaensen's design (used by JACK's zita-a2j). It filters noisy
// host-time observations to extract the true sample rate of a free-running
// device clock.
type Tracker struct {
	nominalRate float64
	bandwidth   float64

	rate          float64
	predictedTime float64
	integral      float64
	initialized   bool
	stableCount   int
}

// stableAfter is the stableCount threshold past which Rate() is considered
// trustworthy for ratio computation (~1-2s at typical buffer sizes).
const stableAfter = 50

// maxStableCount is the saturation ceiling for stableCount.
const maxStableCount = 200

// New creates a Tracker for a device with the given nominal sample rate and
// filter bandwidth (in Hz; 1.0 matches the original's default). The
// tracker starts uninitialized: the first Update seeds it and does not
// yet move the rate estimate.
func New(nominalRate, bandwidth float64) *Tracker {
	return &Tracker{
		nominalRate: nominalRate,
		bandwidth:   bandwidth,
		rate:        nominalRate,
	}
}

// Update feeds one observation: hostTime in seconds (already converted from
// the platform's monotonic clock by the caller — see hwdevice) and the
// number of frames the I/O callback delivered.
func (t *Tracker) Update(hostTimeSeconds float64, bufferFrames uint32) {
	if !t.initialized {
		// predictedTime is the expected time of the next callback.
		t.predictedTime = hostTimeSeconds + float64(bufferFrames)/t.nominalRate
		t.rate = t.nominalRate
		t.initialized = true
		t.stableCount = 0
		return
	}

	period := float64(bufferFrames) / t.rate
	omega := 2 * math.Pi * t.bandwidth * period
	b := omega * math.Sqrt2
	c := omega * omega

	errorTerm := hostTimeSeconds - t.predictedTime
	t.predictedTime += period + b*errorTerm
	t.integral += c * errorTerm
	// integral is the measured period's deviation from the nominal period.
	t.rate = float64(bufferFrames) / (float64(bufferFrames)/t.nominalRate + t.integral)

	if t.stableCount < maxStableCount {
		t.stableCount++
	}
}

// Reset returns the tracker to its uninitialized state. The caller is
// responsible for calling this on device reopen (e.g. hot-plug) — the
// tracker never resets itself on a transient outlier, only on an explicit
// Reset.
func (t *Tracker) Reset() {
	t.initialized = false
	t.rate = t.nominalRate
	t.predictedTime = 0
	t.integral = 0
	t.stableCount = 0
}

// Rate returns the current sample-rate estimate.
func (t *Tracker) Rate() float64 {
	return t.rate
}

// NominalRate returns the rate the tracker was constructed with.
func (t *Tracker) NominalRate() float64 {
	return t.nominalRate
}

// IsStable reports whether the estimate has passed initial convergence and
// is safe to use for ratio computation.
func (t *Tracker) IsStable() bool {
	return t.initialized && t.stableCount > stableAfter
}
