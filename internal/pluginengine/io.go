package pluginengine

import (
	"github.com/pushflx4/aggregate/internal/pluginhost"
	"github.com/pushflx4/aggregate/internal/shm"
)

// OnReadClientInput implements pluginhost.IOHandler: it fills buf with
// whatever the helper has published for stream, or silence on underrun
// (spec.md §4.7 — "filling with silence on underrun"). MasterIn, SlaveIn,
// and SlaveCueIn are the three streams the helper only ever produces
// into; the plugin only ever consumes them here.
func (e *Engine) OnReadClientInput(stream pluginhost.StreamID, buf []byte) {
	ring := e.inputRing(stream)
	if ring == nil {
		zero(buf)
		return
	}
	if !ring.Read(buf) {
		zero(buf)
	}
}

// OnWriteMixedOutput implements pluginhost.IOHandler: it writes buf
// (audio the host mixed for this stream) into the ring buffer the helper
// reads from. MasterOut and SlaveOut are the only two output-direction
// streams; a full ring simply drops the write (spec.md §7 RingOverrun —
// "the block is dropped", not an error).
func (e *Engine) OnWriteMixedOutput(stream pluginhost.StreamID, buf []byte) {
	ring := e.outputRing(stream)
	if ring == nil {
		return
	}
	ring.Write(buf)
}

// inputRing/outputRing resolve a StreamID to its backing ring without
// taking a lock — per spec.md §5 these run on realtime threads, and the
// region pointer is only ever set once by Connect before any IO callback
// can fire (OnStartIO connects first), never mutated concurrently with a
// live callback.
func (e *Engine) inputRing(stream pluginhost.StreamID) *shm.Ring {
	if e.region == nil {
		return nil
	}
	l := e.region.Layout()
	switch stream {
	case pluginhost.MasterIn:
		return &l.MasterInput
	case pluginhost.SlaveIn:
		return &l.SlaveInput
	case pluginhost.SlaveCueIn:
		return &l.SlaveCueIn
	default:
		return nil
	}
}

func (e *Engine) outputRing(stream pluginhost.StreamID) *shm.Ring {
	if e.region == nil {
		return nil
	}
	l := e.region.Layout()
	switch stream {
	case pluginhost.MasterOut:
		return &l.MasterOutput
	case pluginhost.SlaveOut:
		return &l.SlaveOutput
	default:
		return nil
	}
}

func zero(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
