package helperengine

import (
	"sync"
	"time"

	"github.com/pushflx4/aggregate/internal/shm"
)

// baseMonitorInterval / maxMonitorInterval are the adaptive polling
// bounds, carried over from the teacher's DeviceMonitor (50ms base,
// 200ms max) — fast enough to reopen a hot-plugged device within a
// couple of audio buffers, slow enough to idle cheaply once both devices
// have been stable for a while.
const (
	baseMonitorInterval = 50 * time.Millisecond
	maxMonitorInterval  = 200 * time.Millisecond
	slowdownAfterTicks  = 10
	slowdownFactor      = 1.1
)

// hotplugMonitor retries Open/Start on whichever device is currently
// Disconnected, implementing spec.md §7's "missing device ... hot-plug is
// supported by reopening on start". It never touches a device that is
// already Running.
type hotplugMonitor struct {
	engine *Engine

	mu           sync.Mutex
	interval     time.Duration
	noChangeRuns int

	stop chan struct{}
	done chan struct{}
}

func newHotplugMonitor(e *Engine) *hotplugMonitor {
	return &hotplugMonitor{engine: e, interval: baseMonitorInterval}
}

func (m *hotplugMonitor) start() {
	m.mu.Lock()
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go m.run(stop, done)
}

func (m *hotplugMonitor) stopMonitor() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (m *hotplugMonitor) run(stop, done chan struct{}) {
	defer close(done)

	m.mu.Lock()
	interval := m.interval
	m.mu.Unlock()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			reopened := m.checkAndReopen()

			m.mu.Lock()
			if reopened {
				m.noChangeRuns = 0
				m.interval = baseMonitorInterval
			} else {
				m.noChangeRuns++
				if m.noChangeRuns > slowdownAfterTicks {
					next := time.Duration(float64(m.interval) * slowdownFactor)
					if next > maxMonitorInterval {
						next = maxMonitorInterval
					}
					m.interval = next
				}
			}
			next := m.interval
			m.mu.Unlock()

			if next != interval {
				ticker.Stop()
				ticker = time.NewTicker(next)
				interval = next
			}
		}
	}
}

// checkAndReopen attempts to reopen+restart whichever of master/slave is
// currently not running, and reports whether anything changed state.
func (m *hotplugMonitor) checkAndReopen() bool {
	e := m.engine
	changed := false

	if e.master != nil && !e.master.IsRunning() {
		if e.master.Open(e.cfg.PushUID) {
			e.masterDLL.Reset()
			e.layout.MasterState.Store(uint32(shm.DeviceConnected))
			if e.master.Start(e.onMasterIO) && e.master.IsRunning() {
				e.layout.MasterState.Store(uint32(shm.DeviceRunning))
				changed = true
			}
		}
	}

	if e.slave != nil && !e.slave.IsRunning() {
		if e.slave.Open(e.cfg.FLX4UID) {
			e.slaveDLL.Reset()
			e.layout.SlaveState.Store(uint32(shm.DeviceConnected))
			if e.slave.Start(e.onSlaveIO) && e.slave.IsRunning() {
				e.layout.SlaveState.Store(uint32(shm.DeviceRunning))
				changed = true
			}
		}
	}

	return changed
}
