// Package hwdevice wraps the OS facility that, given a string device
// identifier, yields realtime I/O callbacks carrying input/output audio
// buffers and timestamps. It is the only package in this module that
// touches physical hardware; everything else works against the Device
// interface so the rest of the engine is portable and testable without
// real hardware.
package hwdevice

import "time"

// IOTimestamp carries the host-time and sample-time information a single
// I/O callback delivers, mirroring the fields spec.md §4.2/§4.3 need from
// the platform's realtime clock.
type IOTimestamp struct {
	// HostTimeSeconds is the callback's "now" converted to seconds using
	// the platform's monotonic-clock ratio (e.g. mach_timebase_info on
	// darwin). Feed directly to drift.Tracker.Update.
	HostTimeSeconds float64

	// SampleTime is the device's running sample position at this
	// callback, when the platform provides one (used only to publish the
	// master clock record; slave devices ignore it).
	SampleTime float64

	// SampleTimeValid reports whether SampleTime carries a meaningful
	// value for this callback.
	SampleTimeValid bool
}

// Callback is invoked on a realtime thread owned by the OS for every I/O
// tick. input is the captured audio for this tick (nil/empty on a
// device with no input channels enabled); output must be filled with
// exactly len(output) bytes of outgoing audio before the callback returns.
// Per spec.md §5, implementations must not allocate, block, take locks, or
// log at warning level from inside this callback.
type Callback func(now IOTimestamp, input []byte, inputTime IOTimestamp, output []byte)

// Device is the contract every hardware adapter implementation (darwin
// CoreAudio, or the portable simulator) satisfies.
type Device interface {
	// Open resolves the string UID to a concrete device. Returns false if
	// the UID is not currently present (spec.md §7 DeviceOpenFailure) —
	// not an error, since hot-plug means the device may appear later.
	Open(uid string) bool

	// Start registers callback on the device's realtime I/O thread.
	Start(callback Callback) bool

	// Stop is synchronous: it unregisters the callback and returns only
	// after the OS guarantees no further invocations (spec.md §5).
	Stop()

	IsRunning() bool

	// NominalSampleRate is the device's configured sample rate in Hz.
	NominalSampleRate() float64

	// Latency returns the device's reported hardware latency in frames
	// for the given direction.
	Latency(input bool) uint32

	// SafetyOffset returns the device's reported safety offset in frames
	// for the given direction.
	SafetyOffset(input bool) uint32

	// BufferFrameSize returns the device's current I/O buffer size in
	// frames.
	BufferFrameSize() uint32
}

// defaultSimCallbackInterval is the callback period of a 512-frame buffer
// at 48 kHz, the simulator's default configuration. The simulator
// (device_sim.go) derives its own interval from each device's rate and
// buffer size and does not read this constant.
const defaultSimCallbackInterval = 512 * time.Second / 48000
