// Package helperengine implements the helper daemon's audio engine: it
// owns the master and slave hardware devices, the drift trackers and
// resampling pipeline that bridge their clocks, the optional cue tap, and
// the shared-memory region the plugin engine reads and writes. It is the
// Go-native rebuild of AudioEngine from original_source/helper/src, in
// the teacher's Engine/dispatcher/device-monitor idiom.
package helperengine

import (
	"fmt"
	"sync"

	"github.com/pushflx4/aggregate/internal/drift"
	"github.com/pushflx4/aggregate/internal/hwdevice"
	"github.com/pushflx4/aggregate/internal/processtap"
	"github.com/pushflx4/aggregate/internal/resamplepipeline"
	"github.com/pushflx4/aggregate/internal/shm"
)

// dllBandwidth matches the original DriftTracker's default filter
// bandwidth in Hz.
const dllBandwidth = 1.0

// defaultCueProcessMatch is the bundle-ID/process-name substring the cue
// tap filters to, mirroring original_source's djay substring constant —
// generalized to a configurable match since this rebuild is not tied to
// one specific companion app.
const defaultCueProcessMatch = "algoriddim"

// defaultCueStreamIndex is FLX4's cue output stream (channels 3-4) in the
// original's AudioHardwareCreateProcessTap call.
const defaultCueStreamIndex = 1

// Config configures an Engine. Only PushUID and FLX4UID are required;
// everything else has a validated default applied by New, following the
// teacher's EngineConfig pattern.
type Config struct {
	// PushUID / FLX4UID are the master/slave hardware device UIDs
	// (spec.md §6 --push-uid/--flx4-uid flags).
	PushUID string
	FLX4UID string

	// NominalSampleRate seeds both DLLs when a device reports no usable
	// nominal rate of its own (0 Hz).
	NominalSampleRate float64

	// CueProcessMatch filters the cue tap to one process by substring;
	// empty selects defaultCueProcessMatch.
	CueProcessMatch string
	CueStreamIndex  int

	// ErrorHandler receives every error surfaced off the realtime paths.
	// Defaults to a SlogErrorHandler using the default logger.
	ErrorHandler ErrorHandler

	// NewMasterDevice / NewSlaveDevice / NewTap construct the hardware
	// adapters; tests substitute simulators with accelerated behavior.
	// Default to hwdevice.New / processtap.New (the real/simulated pair
	// selected by build tags).
	NewMasterDevice func() hwdevice.Device
	NewSlaveDevice  func() hwdevice.Device
	NewTap          func() processtap.Tap
}

func (c *Config) setDefaults() {
	if c.NominalSampleRate <= 0 {
		c.NominalSampleRate = 48000.0
	}
	if c.CueProcessMatch == "" {
		c.CueProcessMatch = defaultCueProcessMatch
	}
	if c.CueStreamIndex == 0 {
		c.CueStreamIndex = defaultCueStreamIndex
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = &SlogErrorHandler{}
	}
	if c.NewMasterDevice == nil {
		c.NewMasterDevice = hwdevice.New
	}
	if c.NewSlaveDevice == nil {
		c.NewSlaveDevice = hwdevice.New
	}
	if c.NewTap == nil {
		c.NewTap = processtap.New
	}
}

func (c *Config) validate() error {
	if c.PushUID == "" {
		return fmt.Errorf("helperengine: PushUID is required")
	}
	if c.FLX4UID == "" {
		return fmt.Errorf("helperengine: FLX4UID is required")
	}
	return nil
}

// Engine owns one helper process's full signal path: two hardware
// devices, their drift trackers, the three-stage resampling pipeline, the
// optional cue tap, and the shared region they all publish into. Exactly
// one Engine exists per helper process.
type Engine struct {
	cfg    Config
	layout *shm.Layout

	mu    sync.RWMutex
	state State

	master hwdevice.Device
	slave  hwdevice.Device
	tap    processtap.Tap

	masterDLL *drift.Tracker
	slaveDLL  *drift.Tracker

	pipe    *resamplepipeline.Pipeline
	monitor *hotplugMonitor

	events    chan error
	stopDrain chan struct{}
	drainDone chan struct{}
}

// New validates cfg, applies defaults, and constructs an Engine bound to
// layout. layout must already be Init'd — the engine never initializes
// the region itself (that is the handshake server's job, so the region
// is ready before any client can connect).
func New(layout *shm.Layout, cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	e := &Engine{
		cfg:    cfg,
		layout: layout,
		state:  StateCreated,
		pipe:   resamplepipeline.New(),
		events: make(chan error, eventQueueDepth),
	}
	e.monitor = newHotplugMonitor(e)
	return e, nil
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Start opens the master and slave devices, begins their I/O callbacks,
// attempts the cue tap, and publishes Running — following
// AudioEngine::start()'s ordering: master first (it is the shared clock
// every other stage resamples against), slave second, cue tap only if
// the slave ended up running. A missing device is DeviceOpenFailure
// (spec.md §7): non-fatal, logged, and left Disconnected for hot-plug to
// resolve later.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state != StateCreated && e.state != StateStopped {
		e.mu.Unlock()
		return fmt.Errorf("helperengine: Start called in state %s", e.state)
	}
	e.state = StateDevicesOpening
	e.mu.Unlock()

	e.stopDrain = make(chan struct{})
	e.drainDone = make(chan struct{})
	go func() {
		defer close(e.drainDone)
		e.drainEvents(e.stopDrain)
	}()

	e.master = e.cfg.NewMasterDevice()
	e.masterDLL = drift.New(e.cfg.NominalSampleRate, dllBandwidth)
	if e.master.Open(e.cfg.PushUID) {
		rate := e.master.NominalSampleRate()
		if rate <= 0 {
			rate = e.cfg.NominalSampleRate
		}
		e.masterDLL = drift.New(rate, dllBandwidth)
		e.layout.MasterState.Store(uint32(shm.DeviceConnected))
		if e.master.Start(e.onMasterIO) && e.master.IsRunning() {
			e.layout.MasterState.Store(uint32(shm.DeviceRunning))
		}
	} else {
		e.layout.MasterState.Store(uint32(shm.DeviceDisconnected))
		e.postError(fmt.Errorf("%w: push uid %q not found, will retry on hot-plug", ErrDeviceOpenFailure, e.cfg.PushUID))
	}

	e.slave = e.cfg.NewSlaveDevice()
	e.slaveDLL = drift.New(e.cfg.NominalSampleRate, dllBandwidth)
	if e.slave.Open(e.cfg.FLX4UID) {
		rate := e.slave.NominalSampleRate()
		if rate <= 0 {
			rate = e.cfg.NominalSampleRate
		}
		e.slaveDLL = drift.New(rate, dllBandwidth)
		e.layout.SlaveState.Store(uint32(shm.DeviceConnected))
		if e.slave.Start(e.onSlaveIO) && e.slave.IsRunning() {
			e.layout.SlaveState.Store(uint32(shm.DeviceRunning))
		}
	} else {
		e.layout.SlaveState.Store(uint32(shm.DeviceDisconnected))
		e.postError(fmt.Errorf("%w: flx4 uid %q not found, will retry on hot-plug", ErrDeviceOpenFailure, e.cfg.FLX4UID))
	}

	if e.slave.IsRunning() {
		e.tap = e.cfg.NewTap()
		if e.tap.Create(e.cfg.FLX4UID, e.cfg.CueStreamIndex, e.cfg.CueProcessMatch) {
			if !e.tap.Start(e.onCueIO) {
				e.postError(fmt.Errorf("%w: cue tap create succeeded but start failed", ErrResamplerCreationFailure))
			}
		} else {
			// Non-fatal per spec.md §7: the cue tap is an optional
			// collaborator, the main signal path works without it.
			e.postError(fmt.Errorf("%w: cue tap unavailable on stream %d", ErrResamplerCreationFailure, e.cfg.CueStreamIndex))
		}
	}

	e.layout.HelperStatus.Store(uint32(shm.HelperRunning))
	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()

	e.monitor.start()
	return nil
}

// Stop unregisters the cue tap then both devices, in that order, and only
// then resets the resampling pipeline — Stop is synchronous all the way
// down (hwdevice.Device.Stop blocks until the OS guarantees no further
// callbacks), so resetting the pipeline here can never race a live I/O
// callback (spec.md §5's "resampler teardown happens only after the last
// I/O callback has returned").
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != StateRunning && e.state != StateDevicesOpening {
		e.mu.Unlock()
		return
	}
	e.state = StateStopped
	e.mu.Unlock()

	e.monitor.stopMonitor()

	if e.tap != nil {
		e.tap.Stop()
	}
	if e.master != nil {
		e.master.Stop()
	}
	if e.slave != nil {
		e.slave.Stop()
	}

	e.pipe.Reset()

	e.layout.MasterState.Store(uint32(shm.DeviceDisconnected))
	e.layout.SlaveState.Store(uint32(shm.DeviceDisconnected))
	e.layout.HelperStatus.Store(uint32(shm.HelperOffline))

	if e.stopDrain != nil {
		close(e.stopDrain)
		<-e.drainDone
	}
}

// masterSlaveRatio returns masterRate/slaveRate, and whether both DLLs
// have converged enough to trust it.
func (e *Engine) masterSlaveRatio() (float64, bool) {
	if !e.masterDLL.IsStable() || !e.slaveDLL.IsStable() {
		return 1.0, false
	}
	ratio := e.masterDLL.Rate() / e.slaveDLL.Rate()
	e.layout.SetDriftRatio(ratio)
	return ratio, true
}

// onMasterIO is the master device's realtime I/O callback: direct
// passthrough to/from shared memory, plus publication of the master
// clock record the plugin's virtual-device clock query reads. Grounded
// on AudioEngine::onPushIO. Must not allocate, block, or log.
func (e *Engine) onMasterIO(now hwdevice.IOTimestamp, input []byte, inputTime hwdevice.IOTimestamp, output []byte) {
	frames := uint32(len(input)) / shm.BytesPerFrame
	e.masterDLL.Update(now.HostTimeSeconds, frames)

	if inputTime.SampleTimeValid {
		e.layout.Clock.SetSampleTime(inputTime.SampleTime)
		e.layout.Clock.SetHostTime(inputTime.HostTimeSeconds)
	}

	if len(input) > 0 {
		e.layout.MasterInput.Write(input)
	}

	if len(output) > 0 {
		if !e.layout.MasterOutput.Read(output) {
			zero(output)
		}
	}
}

// onSlaveIO is the slave device's realtime I/O callback: input is
// resampled from the slave's own clock into the master clock domain
// before being written to the shared region; output is read back from
// the shared region in the master clock domain and resampled down to the
// slave's clock before reaching hardware. Grounded on
// AudioEngine::onFLX4IO.
func (e *Engine) onSlaveIO(now hwdevice.IOTimestamp, input []byte, _ hwdevice.IOTimestamp, output []byte) {
	frames := uint32(len(input)) / shm.BytesPerFrame
	e.slaveDLL.Update(now.HostTimeSeconds, frames)

	ratio, dllReady := e.masterSlaveRatio()

	if len(input) > 0 {
		if dllReady {
			resampled, err := e.pipe.SlaveInputToMaster(input, ratio)
			if err != nil {
				e.postError(fmt.Errorf("slave input resample: %w", err))
			} else if len(resampled) > 0 {
				e.layout.SlaveInput.Write(resampled)
			}
		} else {
			// DLL not stable yet — pass through raw, per spec.md §7
			// DllNotStable: a transient degraded state, not an error.
			e.layout.SlaveInput.Write(input)
		}
	}

	if len(output) == 0 {
		return
	}
	outputFrames := uint32(len(output)) / shm.BytesPerFrame
	if !dllReady {
		if !e.layout.SlaveOutput.Read(output) {
			zero(output)
		}
		return
	}

	outToSlaveRatio := 1.0 / ratio
	needed := resamplepipeline.InputFramesNeeded(outputFrames, outToSlaveRatio)
	neededBytes := int(needed) * shm.BytesPerFrame
	if e.layout.SlaveOutput.AvailableRead() < neededBytes {
		zero(output)
		return
	}
	staged := make([]byte, neededBytes)
	if !e.layout.SlaveOutput.Read(staged) {
		zero(output)
		return
	}
	resampled, err := e.pipe.MasterOutputToSlave(staged, outToSlaveRatio, outputFrames)
	if err != nil {
		e.postError(fmt.Errorf("slave output resample: %w", err))
		zero(output)
		return
	}
	copy(output, resampled)
}

// onCueIO is the cue tap's realtime callback, running on the tap's own
// IO thread independent of the slave hardware IOProc. Grounded on the
// tap callback in AudioEngine::start().
func (e *Engine) onCueIO(data []byte, frameCount uint32) {
	if len(data) == 0 {
		return
	}
	ratio, dllReady := e.masterSlaveRatio()
	if !dllReady {
		e.layout.SlaveCueIn.Write(data)
		return
	}
	resampled, err := e.pipe.CueInputToMaster(data, ratio)
	if err != nil {
		// Non-fatal on the cue path: the cue tap simply drops this
		// buffer.
		e.postError(fmt.Errorf("%w: %v", ErrResamplerCreationFailure, err))
		return
	}
	if len(resampled) > 0 {
		e.layout.SlaveCueIn.Write(resampled)
	}
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
