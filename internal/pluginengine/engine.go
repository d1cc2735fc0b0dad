// Package pluginengine implements the plugin-side half of the aggregate
// device: it holds the capability handshake client, maps the helper's
// shared region, and answers the virtual-device framework's realtime
// callbacks by reading and writing that region's ring buffers. It is the
// Go-native rebuild of PluginHandler from original_source/plugin/src.
package pluginengine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pushflx4/aggregate/internal/handshake"
	"github.com/pushflx4/aggregate/internal/pluginhost"
	"github.com/pushflx4/aggregate/internal/shm"
)

// State mirrors helperengine.State on the plugin side. One enum covers
// both the handshake connection and the virtual device's IO lifecycle:
// Connected once the shared region is mapped, Running while IO is
// started; OnStopIO returns to Connected without unmapping.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// ErrorHandler mirrors helperengine's error boundary. Realtime callbacks
// never call it directly.
type ErrorHandler interface {
	HandleError(error)
}

// SlogErrorHandler logs through a structured logger, defaulting to the
// package-level slog logger when Logger is nil.
type SlogErrorHandler struct {
	Logger *slog.Logger
}

func (h *SlogErrorHandler) HandleError(err error) {
	if h.Logger == nil {
		slog.Warn("plugin engine error", "err", err)
		return
	}
	h.Logger.Warn("plugin engine error", "err", err)
}

// Config configures an Engine.
type Config struct {
	// ServiceName is the capability service name both processes hardcode
	// (spec.md §6). Defaults to handshake.ServiceName.
	ServiceName string

	// CueEnabled controls whether the virtual device declares a fifth
	// stream (spec.md §4.7: "four or five streams ... optional cue in").
	CueEnabled bool

	ErrorHandler ErrorHandler
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = handshake.ServiceName
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = &SlogErrorHandler{}
	}
}

// Engine is the plugin process's half of the signal path. It implements
// pluginhost.Host so a real virtual-device framework (or DevDriver in
// tests/dev builds) can drive it directly.
type Engine struct {
	cfg Config

	mu     sync.RWMutex
	state  State
	client *handshake.Client
	region *shm.Region
}

// New constructs a disconnected Engine. It does not dial the helper —
// that happens lazily on the first OnStartIO, or explicitly via Connect,
// so constructing an Engine never fails on a helper that simply hasn't
// started yet.
func New(cfg Config) *Engine {
	cfg.setDefaults()
	return &Engine{
		cfg:    cfg,
		state:  StateDisconnected,
		client: handshake.NewClient(cfg.ServiceName),
	}
}

// State returns the engine's current connection/run state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// StreamCount returns 5 when the cue stream is enabled, else 4, for the
// virtual device declaration in spec.md §4.7.
func (e *Engine) StreamCount() int {
	if e.cfg.CueEnabled {
		return 5
	}
	return 4
}

// Connect dials the helper and maps its shared region, if not already
// connected. Safe to call repeatedly — e.g. on every host-driven start,
// per spec.md §7's "client may be retried on subsequent host-driven
// starts".
func (e *Engine) Connect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.region != nil {
		return nil
	}
	region, err := e.client.Connect()
	if err != nil {
		return fmt.Errorf("pluginengine: connect: %w", err)
	}
	e.region = region
	e.state = StateConnected
	return nil
}

// Disconnect unmaps the shared region. Exposed for a clean process exit;
// the virtual-device lifecycle itself (OnStopIO) does not call this —
// the mapping is cheap to hold across IO start/stop cycles, and dropping
// it would force a full handshake retry on every restart.
func (e *Engine) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.region == nil {
		return nil
	}
	err := e.region.Close()
	e.region = nil
	e.state = StateDisconnected
	return err
}

// MasterClock returns the master device's most recently published
// sample-time/host-time pair, for the virtual device's clock-query
// callback (spec.md §4.7). Returns false if the engine is not yet
// connected.
func (e *Engine) MasterClock() (sampleTime, hostTime float64, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.region == nil {
		return 0, 0, false
	}
	clock := &e.region.Layout().Clock
	return clock.SampleTimeValue(), clock.HostTimeValue(), true
}

// OnStartIO implements pluginhost.ControlHandler. It ensures the
// handshake has succeeded before declaring the device started — a failed
// connect surfaces as ErrCapabilityUnavailable, which the real framework
// integration reports to its host as "device appears but startup fails"
// per spec.md §7.
func (e *Engine) OnStartIO() error {
	if err := e.Connect(); err != nil {
		if errors.Is(err, handshake.ErrCapabilityUnavailable) {
			e.cfg.ErrorHandler.HandleError(err)
		}
		return err
	}
	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()
	return nil
}

// OnStopIO implements pluginhost.ControlHandler. It stops serving
// realtime callbacks but leaves the handshake connection mapped.
func (e *Engine) OnStopIO() {
	e.mu.Lock()
	if e.state == StateRunning {
		e.state = StateConnected
	}
	e.mu.Unlock()
}

var _ pluginhost.Host = (*Engine)(nil)
