package pluginhost

import (
	"sync"
	"time"
)

// DevDriver stands in for the OS virtual-device framework: it calls a
// Host's lifecycle and realtime methods on a ticker, the way coreaudiod
// would drive the real plugin. It exists so the engine can be exercised
// end-to-end — by tests and by cmd/plugin's dev harness — without the
// real out-of-scope framework.
type DevDriver struct {
	host        Host
	bufferBytes int
	interval    time.Duration

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewDevDriver builds a driver that ticks every interval, delivering
// bufferBytes-sized buffers to each of the five stream IDs per tick —
// symmetric read-then-write per tick, matching a real duplex I/O callback.
func NewDevDriver(host Host, bufferBytes int, interval time.Duration) *DevDriver {
	return &DevDriver{host: host, bufferBytes: bufferBytes, interval: interval}
}

// Start calls Host.OnStartIO and, on success, begins the simulated I/O
// ticks on a background goroutine.
func (d *DevDriver) Start() error {
	if err := d.host.OnStartIO(); err != nil {
		return err
	}

	d.mu.Lock()
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	stop, done := d.stop, d.done
	d.mu.Unlock()

	go d.run(stop, done)
	return nil
}

func (d *DevDriver) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	streams := []StreamID{MasterIn, MasterOut, SlaveIn, SlaveOut, SlaveCueIn}
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, s := range streams {
				buf := make([]byte, d.bufferBytes)
				d.host.OnReadClientInput(s, buf)
				d.host.OnWriteMixedOutput(s, buf)
			}
		}
	}
}

// Stop calls Host.OnStopIO after the simulated I/O goroutine has exited,
// mirroring the framework's own stop-then-teardown ordering.
func (d *DevDriver) Stop() {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	d.host.OnStopIO()
}
