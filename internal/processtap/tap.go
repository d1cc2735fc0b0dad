// Package processtap is the contract for the OS-provided process-audio-tap
// collaborator: a facility that delivers a copy of another process's
// audio output, filtered to a specific device stream. It is named as an
// external collaborator in spec.md §1/§4.4/§6 and specified only at its
// contract; this package also provides the darwin implementation
// (AudioHardwareCreateProcessTap) and a no-op stand-in for everywhere else.
package processtap

// Callback receives tapped audio at the source device's own clock — the
// caller (internal/resamplepipeline) is responsible for resampling it to
// the master clock before writing to the cue ring buffer.
type Callback func(data []byte, frameCount uint32)

// Tap is the contract for tapping a specific process's audio on a specific
// output stream of a device.
type Tap interface {
	// Create sets up a tap on streamIndex (0-based) of deviceUID, filtered
	// to processNameSubstring (a case-insensitive bundle-ID/name
	// substring match; empty taps all processes on that stream). Returns
	// false if the tap could not be created — non-fatal per spec.md §7
	// (ResamplerCreationFailure on the cue path only is non-fatal).
	Create(deviceUID string, streamIndex int, processNameSubstring string) bool

	// Start begins delivering callbacks on the tap's own IO thread.
	Start(callback Callback) bool

	Stop()

	IsRunning() bool
}
