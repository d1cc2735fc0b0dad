// Package pluginhost defines the contract the OS's virtual-device
// framework drives the plugin engine through — out of scope per spec.md
// §1 ("the virtual-device framework used by the plugin, treated as a
// callback-driven stream framework"). This package only specifies the
// capability set; internal/pluginengine provides the implementation, and
// DevDriver stands in for the real framework in tests and the dev harness.
package pluginhost

// StreamID identifies one of the virtual device's four or five stereo
// streams, standing in for the pointer-identity comparisons
// PluginHandler::OnReadClientInput/OnWriteMixedOutput perform against each
// aspl::Stream in the original.
type StreamID int

const (
	MasterIn StreamID = iota
	MasterOut
	SlaveIn
	SlaveOut
	SlaveCueIn
)

func (s StreamID) String() string {
	switch s {
	case MasterIn:
		return "master-in"
	case MasterOut:
		return "master-out"
	case SlaveIn:
		return "slave-in"
	case SlaveOut:
		return "slave-out"
	case SlaveCueIn:
		return "slave-cue-in"
	default:
		return "unknown"
	}
}

// ControlHandler is the framework's lifecycle capability — called on the
// framework's ordinary (non-realtime) thread.
type ControlHandler interface {
	OnStartIO() error
	OnStopIO()
}

// IOHandler is the framework's realtime-callback capability. Per spec.md
// §5, implementations must not allocate, block, or log at warning level on
// these paths — they run on the audio daemon's realtime I/O thread.
type IOHandler interface {
	// OnReadClientInput fills buf with input audio for stream. buf is
	// framework-owned; implementations must not retain it past the call.
	OnReadClientInput(stream StreamID, buf []byte)

	// OnWriteMixedOutput delivers mixed output audio for stream. buf is
	// framework-owned and read-only for the duration of the call.
	OnWriteMixedOutput(stream StreamID, buf []byte)
}

// Host is the tagged capability set the plugin engine hands to the
// virtual-device framework: one value satisfying both roles, per spec.md
// §9's "realize as a tagged capability set, not inheritance" note.
type Host interface {
	ControlHandler
	IOHandler
}
