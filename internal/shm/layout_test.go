package shm

import (
	"testing"
	"unsafe"
)

// TestLayoutOffsets pins the field order spec.md §6 requires: helperStatus,
// masterState, slaveState, clockRecord, driftRatio, then the five rings in
// master-input, slave-input, master-output, slave-output, slave-cue-input
// order. This is the Go-native replacement for the original's
// static-assert-by-convention on struct layout (spec.md §9).
func TestLayoutOffsets(t *testing.T) {
	var l Layout

	fields := []struct {
		name   string
		offset uintptr
	}{
		{"HelperStatus", unsafe.Offsetof(l.HelperStatus)},
		{"MasterState", unsafe.Offsetof(l.MasterState)},
		{"SlaveState", unsafe.Offsetof(l.SlaveState)},
		{"Clock", unsafe.Offsetof(l.Clock)},
		{"DriftRatioBits", unsafe.Offsetof(l.DriftRatioBits)},
		{"MasterInput", unsafe.Offsetof(l.MasterInput)},
		{"SlaveInput", unsafe.Offsetof(l.SlaveInput)},
		{"MasterOutput", unsafe.Offsetof(l.MasterOutput)},
		{"SlaveOutput", unsafe.Offsetof(l.SlaveOutput)},
		{"SlaveCueIn", unsafe.Offsetof(l.SlaveCueIn)},
	}

	for i := 1; i < len(fields); i++ {
		if fields[i].offset <= fields[i-1].offset {
			t.Fatalf("field %s (offset %d) must come after %s (offset %d)",
				fields[i].name, fields[i].offset, fields[i-1].name, fields[i-1].offset)
		}
	}

	for _, f := range fields[5:] {
		if f.offset%64 != 0 {
			t.Errorf("ring field %s at offset %d is not 64-byte aligned", f.name, f.offset)
		}
	}
}

func TestLayoutInit(t *testing.T) {
	var l Layout
	l.Init()

	if HelperStatus(l.HelperStatus.Load()) != HelperOffline {
		t.Errorf("expected HelperOffline after Init, got %v", HelperStatus(l.HelperStatus.Load()))
	}
	if DeviceState(l.MasterState.Load()) != DeviceDisconnected {
		t.Errorf("expected DeviceDisconnected after Init")
	}
	if l.DriftRatio() != 1.0 {
		t.Errorf("expected drift ratio 1.0 after Init, got %v", l.DriftRatio())
	}
	if got := l.MasterInput.AvailableWrite(); got != RingCapacity-1 {
		t.Errorf("expected AvailableWrite()==capacity-1==%d after Init, got %d", RingCapacity-1, got)
	}
}
