//go:build !darwin || !cgo

package hwdevice

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSimDeviceDeliversCallbacks(t *testing.T) {
	d := NewWithRate(48000, 64)
	if !d.Open("push-sim") {
		t.Fatalf("Open failed")
	}

	var calls atomic.Int64
	if !d.Start(func(now IOTimestamp, input []byte, inputTime IOTimestamp, output []byte) {
		calls.Add(1)
	}) {
		t.Fatalf("Start failed")
	}
	defer d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 10 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if calls.Load() < 10 {
		t.Fatalf("expected at least 10 callbacks, got %d", calls.Load())
	}
	if !d.IsRunning() {
		t.Fatalf("expected device to report running")
	}
}

func TestSimDeviceOpenRequiresUID(t *testing.T) {
	d := New()
	if d.Open("") {
		t.Fatalf("Open(\"\") should fail")
	}
}

func TestSimDeviceStopIsSynchronous(t *testing.T) {
	d := NewWithRate(48000, 64)
	d.Open("flx4-sim")
	d.Start(func(IOTimestamp, []byte, IOTimestamp, []byte) {})
	d.Stop()
	if d.IsRunning() {
		t.Fatalf("expected device to report stopped immediately after Stop()")
	}
}
