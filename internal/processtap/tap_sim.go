//go:build !darwin || !cgo

package processtap

import "sync"

// simTap is the portable stand-in for the process-audio-tap collaborator.
// Create always reports unavailable, exercising the "tap unavailable at
// startup" non-fatal path in spec.md §4.4/§7 — the engine proceeds without
// a cue tap exactly as it would on an OS version lacking
// AudioHardwareCreateProcessTap.
type simTap struct {
	mu      sync.Mutex
	running bool
}

func New() Tap {
	return &simTap{}
}

func (t *simTap) Create(deviceUID string, streamIndex int, processNameSubstring string) bool {
	return false
}

func (t *simTap) Start(callback Callback) bool {
	return false
}

func (t *simTap) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

func (t *simTap) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
