package helperengine

import (
	"sync"
	"testing"
	"time"

	"github.com/pushflx4/aggregate/internal/hwdevice"
	"github.com/pushflx4/aggregate/internal/processtap"
	"github.com/pushflx4/aggregate/internal/shm"
	"github.com/stretchr/testify/require"
)

// recordingErrorHandler collects every posted error so tests can assert on
// the non-fatal error paths (DeviceOpenFailure, cue-tap-unavailable)
// without any of them ever reaching a log call from a realtime thread.
type recordingErrorHandler struct {
	mu   sync.Mutex
	errs []error
}

func (h *recordingErrorHandler) HandleError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func (h *recordingErrorHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

func newTestRegion(t *testing.T) *shm.Layout {
	t.Helper()
	var l shm.Layout
	l.Init()
	return &l
}

// flakyDevice fails its first opensBefore Open calls and opens
// successfully after that, simulating a physical device that is absent at Start and
// appears later via hot-plug.
type flakyDevice struct {
	hwdevice.Device
	mu          sync.Mutex
	opensBefore int
	opens       int
}

func newFlakyDevice(opensBefore int) *flakyDevice {
	return &flakyDevice{Device: hwdevice.New(), opensBefore: opensBefore}
}

func (d *flakyDevice) Open(uid string) bool {
	d.mu.Lock()
	d.opens++
	ready := d.opens > d.opensBefore
	d.mu.Unlock()
	if !ready {
		return false
	}
	return d.Device.Open(uid)
}

// TestEngineStartRunsBothDevices covers scenario S1: both devices present,
// Start brings the engine to Running and publishes Running/Running/Running
// across helperStatus, masterState, slaveState.
func TestEngineStartRunsBothDevices(t *testing.T) {
	layout := newTestRegion(t)
	eh := &recordingErrorHandler{}
	e, err := New(layout, Config{
		PushUID:      "push-sim",
		FLX4UID:      "flx4-sim",
		ErrorHandler: eh,
	})
	require.NoError(t, err)

	require.NoError(t, e.Start())
	defer e.Stop()

	require.Equal(t, StateRunning, e.State())
	require.Equal(t, uint32(shm.HelperRunning), layout.HelperStatus.Load())
	require.Equal(t, uint32(shm.DeviceRunning), layout.MasterState.Load())
	require.Equal(t, uint32(shm.DeviceRunning), layout.SlaveState.Load())
}

// TestEngineMissingDeviceIsNonFatal covers spec.md §7
// DeviceOpenFailure: a device UID that never opens leaves the engine
// Running (not aborted) with that device Disconnected, and reports the
// failure through the ErrorHandler rather than returning an error from
// Start.
func TestEngineMissingDeviceIsNonFatal(t *testing.T) {
	layout := newTestRegion(t)
	eh := &recordingErrorHandler{}
	e, err := New(layout, Config{
		PushUID: "push-sim",
		FLX4UID: "flx4-sim",
		ErrorHandler: eh,
		NewSlaveDevice: func() hwdevice.Device {
			return newFlakyDevice(1000000) // never opens within the test
		},
	})
	require.NoError(t, err)

	require.NoError(t, e.Start())
	defer e.Stop()

	require.Equal(t, StateRunning, e.State())
	require.Equal(t, uint32(shm.DeviceRunning), layout.MasterState.Load())
	require.Equal(t, uint32(shm.DeviceDisconnected), layout.SlaveState.Load())
	require.Eventually(t, func() bool { return eh.count() > 0 }, time.Second, 5*time.Millisecond)
}

// TestEngineHotplugReopensMissingDevice covers spec.md §7's "hot-plug is
// supported by reopening on start": a device that fails to open at Start
// time becomes available a few monitor ticks later and the engine brings
// it up to Running without any call beyond the initial Start.
func TestEngineHotplugReopensMissingDevice(t *testing.T) {
	layout := newTestRegion(t)
	eh := &recordingErrorHandler{}
	flaky := newFlakyDevice(2) // fails the first two Open calls, then succeeds
	e, err := New(layout, Config{
		PushUID:        "push-sim",
		FLX4UID:        "flx4-sim",
		ErrorHandler:   eh,
		NewSlaveDevice: func() hwdevice.Device { return flaky },
	})
	require.NoError(t, err)

	require.NoError(t, e.Start())
	defer e.Stop()

	require.Equal(t, uint32(shm.DeviceDisconnected), layout.SlaveState.Load())

	require.Eventually(t, func() bool {
		return layout.SlaveState.Load() == uint32(shm.DeviceRunning)
	}, 2*time.Second, 10*time.Millisecond)
}

// TestEngineCueTapUnavailableIsNonFatal covers spec.md §7's
// ResamplerCreationFailure-on-cue-only non-fatal policy: the portable
// simulator's Tap.Create always returns false, so the engine must still
// reach Running.
func TestEngineCueTapUnavailableIsNonFatal(t *testing.T) {
	layout := newTestRegion(t)
	eh := &recordingErrorHandler{}
	e, err := New(layout, Config{
		PushUID:      "push-sim",
		FLX4UID:      "flx4-sim",
		ErrorHandler: eh,
		NewTap:       processtap.New,
	})
	require.NoError(t, err)

	require.NoError(t, e.Start())
	defer e.Stop()

	require.Equal(t, StateRunning, e.State())
	require.Eventually(t, func() bool { return eh.count() > 0 }, time.Second, 5*time.Millisecond)
}

// TestEngineStopPublishesOffline covers the stop half of spec.md §4.7:
// after Stop, both device states and helperStatus return to their offline
// values, and a second Stop call is a harmless no-op.
func TestEngineStopPublishesOffline(t *testing.T) {
	layout := newTestRegion(t)
	e, err := New(layout, Config{
		PushUID: "push-sim",
		FLX4UID: "flx4-sim",
	})
	require.NoError(t, err)
	require.NoError(t, e.Start())

	e.Stop()
	require.Equal(t, StateStopped, e.State())
	require.Equal(t, uint32(shm.HelperOffline), layout.HelperStatus.Load())
	require.Equal(t, uint32(shm.DeviceDisconnected), layout.MasterState.Load())
	require.Equal(t, uint32(shm.DeviceDisconnected), layout.SlaveState.Load())

	e.Stop() // no-op, must not panic or block
}

// TestEngineMasterPassthroughDeliversInput covers the passthrough half of
// onMasterIO: bytes written into MasterInput by the callback are readable
// by a stand-in plugin-side consumer.
func TestEngineMasterPassthroughDeliversInput(t *testing.T) {
	layout := newTestRegion(t)
	e, err := New(layout, Config{
		PushUID: "push-sim",
		FLX4UID: "flx4-sim",
	})
	require.NoError(t, err)
	require.NoError(t, e.Start())
	defer e.Stop()

	require.Eventually(t, func() bool {
		return layout.MasterInput.AvailableRead() > 0
	}, time.Second, 5*time.Millisecond)
}

// TestEngineRejectsStartWithoutRequiredUIDs covers Config validation.
func TestEngineRejectsStartWithoutRequiredUIDs(t *testing.T) {
	layout := newTestRegion(t)
	_, err := New(layout, Config{FLX4UID: "flx4-sim"})
	require.Error(t, err)

	_, err = New(layout, Config{PushUID: "push-sim"})
	require.Error(t, err)
}
