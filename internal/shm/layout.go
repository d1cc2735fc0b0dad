// Package shm implements the cross-process shared-memory region: its
// fixed-offset layout, the lock-free SPSC ring buffers embedded in it, and
// the atomics that publish helper/device/clock state to the plugin.
package shm

import (
	"math"
	"sync/atomic"
)

// HelperStatus enumerates the helper daemon's lifecycle state, published in
// Layout.HelperStatus.
type HelperStatus uint32

const (
	HelperOffline HelperStatus = iota
	HelperRunning
	HelperError
)

func (s HelperStatus) String() string {
	switch s {
	case HelperOffline:
		return "offline"
	case HelperRunning:
		return "running"
	case HelperError:
		return "error"
	default:
		return "unknown"
	}
}

// DeviceState enumerates a physical device's connection state, published in
// Layout.MasterState / Layout.SlaveState.
type DeviceState uint32

const (
	DeviceDisconnected DeviceState = iota
	DeviceConnected
	DeviceRunning
)

func (s DeviceState) String() string {
	switch s {
	case DeviceDisconnected:
		return "disconnected"
	case DeviceConnected:
		return "connected"
	case DeviceRunning:
		return "running"
	default:
		return "unknown"
	}
}

// RingCapacity is the compile-time byte capacity of every ring buffer in the
// layout: 65536 bytes is 8192 frames, ~170ms at 48kHz stereo float32, enough runway for
// DLL convergence (~1-2s) without underrunning at typical audio buffer
// sizes.
const RingCapacity = 65536

// BytesPerFrame is one interleaved stereo float32 frame.
const BytesPerFrame = 8

// ClockRecord is the master device's timestamp pair, published by the
// helper on every master I/O tick and read by the plugin on every virtual
// clock query. Per spec.md §5, the two fields are written and read with
// relaxed ordering: the plugin only ever extrapolates from them, never uses
// them to order other memory observations, so the momentary incoherence
// between the two loads is within the host's tolerance.
type ClockRecord struct {
	SampleTime atomic.Uint64 // float64 bits, see math.Float64bits/Float64frombits
	HostTime   atomic.Uint64
	Seed       atomic.Uint64
	_          [40]byte // pad to a 64-byte cache line
}

// Layout is the single fixed-layout struct placed at the start of the
// shared region. Field order matches spec.md §6 exactly: helperStatus,
// masterState, slaveState, clockRecord, driftRatio, then the five ring
// buffers in master-input, slave-input, master-output, slave-output,
// slave-cue-input order. Every ring buffer starts on a 64-byte boundary
// with its head and tail on their own cache lines: _pad1 ends the header
// at offset 192, and Ring's own padding keeps its size a multiple of 64
// bytes, so each following ring stays aligned. This is the Go-native
// stand-in for the original's "_pad0 suggests 8-byte alignment" note in
// spec.md §9: rather than rely on struct-layout happenstance,
// layout_test.go asserts with unsafe.Offsetof that the fields keep this
// order and that every ring starts on a 64-byte boundary.
type Layout struct {
	HelperStatus atomic.Uint32
	MasterState  atomic.Uint32
	SlaveState   atomic.Uint32
	_pad0        uint32

	Clock ClockRecord

	DriftRatioBits atomic.Uint64 // float64 bits; informational only
	_pad1          [104]byte // DriftRatioBits is at 80; pads the header to 192

	MasterInput  Ring
	SlaveInput   Ring
	MasterOutput Ring
	SlaveOutput  Ring
	SlaveCueIn   Ring
}

// Init resets every field of the layout to its zero/offline state and
// initializes all five ring buffers with RingCapacity. Called once by the
// helper immediately after allocating the region; the plugin never calls
// this — it only maps an already-initialized region.
func (l *Layout) Init() {
	l.HelperStatus.Store(uint32(HelperOffline))
	l.MasterState.Store(uint32(DeviceDisconnected))
	l.SlaveState.Store(uint32(DeviceDisconnected))
	l.Clock.SampleTime.Store(0)
	l.Clock.HostTime.Store(0)
	l.Clock.Seed.Store(0)
	l.DriftRatioBits.Store(math.Float64bits(1.0))
	l.MasterInput.init(RingCapacity)
	l.SlaveInput.init(RingCapacity)
	l.MasterOutput.init(RingCapacity)
	l.SlaveOutput.init(RingCapacity)
	l.SlaveCueIn.init(RingCapacity)
}

// DriftRatio returns the informational drift ratio (master rate / slave
// rate) most recently published by the helper.
func (l *Layout) DriftRatio() float64 {
	return math.Float64frombits(l.DriftRatioBits.Load())
}

// SetDriftRatio publishes the informational drift ratio. Helper-only.
func (l *Layout) SetDriftRatio(ratio float64) {
	l.DriftRatioBits.Store(math.Float64bits(ratio))
}

// SampleTimeValue returns the master clock's most recently published sample
// time. Relaxed ordering per spec.md §5 — see ClockRecord.
func (c *ClockRecord) SampleTimeValue() float64 {
	return math.Float64frombits(c.SampleTime.Load())
}

// SetSampleTime publishes the master clock's sample time. Helper-only.
func (c *ClockRecord) SetSampleTime(v float64) {
	c.SampleTime.Store(math.Float64bits(v))
}

// HostTimeValue returns the master clock's most recently published host
// time, in the same monotonic-seconds domain the drift tracker uses.
func (c *ClockRecord) HostTimeValue() float64 {
	return math.Float64frombits(c.HostTime.Load())
}

// SetHostTime publishes the master clock's host time. Helper-only.
func (c *ClockRecord) SetHostTime(v float64) {
	c.HostTime.Store(math.Float64bits(v))
}
