package resamplepipeline

import "github.com/pushflx4/aggregate/internal/shm"

// resampleBufFrames caps a single resample call's output, mirroring
// AudioEngine.cpp's fixed-size kResampleBufFrames scratch buffers.
const resampleBufFrames = 8192

// Pipeline holds the three resampling stages AudioEngine maintains: slave
// hardware input into the master clock domain, master-domain buffered
// audio down to the slave hardware clock, and the independent cue-tap path
// into the master clock domain. Each stage keeps its own adaptive resampler
// so that the cue tap's irregular delivery cadence, and the two hardware
// directions' differing buffer sizes, never perturb each other's filter
// state.
type Pipeline struct {
	in  *adaptiveResampler
	out *adaptiveResampler
	cue *adaptiveResampler
}

func New() *Pipeline {
	return &Pipeline{
		in:  newAdaptiveResampler(),
		out: newAdaptiveResampler(),
		cue: newAdaptiveResampler(),
	}
}

// marginedFrameCount mirrors the "+4" safety margin AudioEngine.cpp adds to
// every resampler output-capacity estimate, capped at resampleBufFrames.
func marginedFrameCount(frames uint32, ratio float64) uint32 {
	n := uint32(float64(frames)*ratio) + 4
	if n > resampleBufFrames {
		n = resampleBufFrames
	}
	return n
}

// SlaveInputToMaster resamples audio captured on the slave device's own
// hardware clock into the master clock domain, ready to write to the
// slave-input ring buffer. ratio is masterRate/slaveRate. Returns nil with
// no error if the input is empty or the resampler produced nothing yet
// (it may be buffering internally to build up filter history).
func (p *Pipeline) SlaveInputToMaster(input []byte, ratio float64) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}
	inputFrames := uint32(len(input)) / shm.BytesPerFrame
	channels, gen, err := p.in.process(input, ratio, marginedFrameCount(inputFrames, ratio))
	if err != nil {
		return nil, err
	}
	return interleave(channels, gen), nil
}

// CueInputToMaster resamples a process-tap cue capture into the master
// clock domain, for writing to the slave-cue-input ring buffer. It shares
// SlaveInputToMaster's ratio convention but runs through its own resampler
// instance — the tap delivers on its own IO thread at its own cadence,
// independent of the slave hardware IOProc.
func (p *Pipeline) CueInputToMaster(input []byte, ratio float64) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}
	inputFrames := uint32(len(input)) / shm.BytesPerFrame
	channels, gen, err := p.cue.process(input, ratio, marginedFrameCount(inputFrames, ratio))
	if err != nil {
		return nil, err
	}
	return interleave(channels, gen), nil
}

// InputFramesNeeded returns how many master-clock-domain frames must be
// read from the slave-output ring to produce outputFrames of slave-clock
// audio at the given ratio (slaveRate/masterRate), including the same "+4"
// margin AudioEngine.cpp reads ahead of the output resample.
func InputFramesNeeded(outputFrames uint32, ratio float64) uint32 {
	n := uint32(float64(outputFrames)/ratio) + 4
	if n > resampleBufFrames {
		n = resampleBufFrames
	}
	return n
}

// MasterOutputToSlave resamples master-clock-domain frames read from the
// slave-output ring into exactly outputFrames of slave-hardware-clock
// audio. Any shortfall between what the resampler generated and
// outputFrames is zero-padded, matching AudioEngine.cpp's handling of a
// partial src_process result — silence is preferable to a stale or
// truncated buffer reaching the hardware.
func (p *Pipeline) MasterOutputToSlave(input []byte, ratio float64, outputFrames uint32) ([]byte, error) {
	out := make([]byte, int(outputFrames)*int(shm.BytesPerFrame))
	if len(input) == 0 {
		return out, nil
	}
	channels, gen, err := p.out.process(input, ratio, outputFrames)
	if err != nil {
		return out, err
	}
	if gen == 0 {
		return out, nil
	}
	copy(out, interleave(channels, gen))
	return out, nil
}

// Reset clears all three stages' internal filter state, for use after a
// hot-plug reopen when the previous filter history no longer applies.
func (p *Pipeline) Reset() {
	p.in.reset()
	p.out.reset()
	p.cue.reset()
}
