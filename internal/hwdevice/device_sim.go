//go:build !darwin || !cgo

package hwdevice

import (
	"math/rand"
	"sync"
	"time"
)

// simDevice is a software-simulated device used wherever the real
// CoreAudio adapter (device_darwin.go) is unavailable: non-darwin
// platforms, or darwin builds without cgo. It generates I/O callbacks on
// a ticker at the configured nominal rate with a small jitter, so the
// drift tracker, ring buffer, and resampling pipeline can be exercised
// end-to-end without hardware. It is never a substitute for the spec'd
// hardware semantics — only a portable stand-in for the "opaque OS
// facility" contract in spec.md §4.3.
type simDevice struct {
	mu          sync.Mutex
	uid         string
	opened      bool
	running     bool
	stop        chan struct{}
	done        chan struct{}
	nominalRate float64
	bufferSize  uint32
}

// New constructs a simulated device at 48000 Hz with 512-frame buffers.
// The UID later passed to Open does not change the rate; NewWithRate
// builds a device at any other rate or buffer size.
func New() Device {
	return NewWithRate(48000, 512)
}

// NewWithRate constructs a simulated device with an explicit nominal rate
// and buffer size, for tests that need a master/slave pair running at
// deliberately different (or drifting) rates.
func NewWithRate(nominalRate float64, bufferSize uint32) Device {
	return &simDevice{
		nominalRate: nominalRate,
		bufferSize:  bufferSize,
	}
}

func (d *simDevice) Open(uid string) bool {
	if uid == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uid = uid
	d.opened = true
	return true
}

func (d *simDevice) Start(callback Callback) bool {
	d.mu.Lock()
	if !d.opened || d.running {
		d.mu.Unlock()
		return d.opened && d.running
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	rate := d.nominalRate
	frames := d.bufferSize
	stop := d.stop
	done := d.done
	d.mu.Unlock()

	go d.ioLoop(callback, rate, frames, stop, done)
	return true
}

func (d *simDevice) ioLoop(callback Callback, rate float64, frames uint32, stop, done chan struct{}) {
	defer close(done)

	interval := time.Duration(float64(frames) / rate * float64(time.Second))
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(1))
	elapsed := 0.0
	inBuf := make([]byte, int(frames)*8)
	outBuf := make([]byte, int(frames)*8)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			jitter := (rng.Float64() - 0.5) * 0.00002
			elapsed += float64(frames)/rate + jitter

			now := IOTimestamp{HostTimeSeconds: elapsed}
			inputTime := IOTimestamp{HostTimeSeconds: elapsed, SampleTime: elapsed * rate, SampleTimeValid: true}

			callback(now, inBuf, inputTime, outBuf)
		}
	}
}

func (d *simDevice) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	stop, done := d.stop, d.done
	d.running = false
	d.mu.Unlock()

	close(stop)
	<-done
}

func (d *simDevice) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *simDevice) NominalSampleRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nominalRate
}

func (d *simDevice) Latency(bool) uint32 { return 64 }

func (d *simDevice) SafetyOffset(bool) uint32 { return 32 }

func (d *simDevice) BufferFrameSize() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bufferSize
}
