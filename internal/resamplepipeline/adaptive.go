// Package resamplepipeline performs the sample-rate conversion AudioEngine
// maintains between the master and slave hardware clocks: slave-captured
// input resampled into the master clock domain, master-clock buffered
// output resampled down to the slave hardware's own clock, and the optional
// process-tap cue signal resampled into the master domain alongside it.
package resamplepipeline

import (
	"math"
	"sync"

	resampler "github.com/tphakala/go-audio-resampler"
)

// ratioRebuildEpsilon bounds how far the instantaneous drift ratio may move
// away from the ratio a resampler instance was built with before that
// instance is discarded and rebuilt. The underlying engine fixes its ratio
// at construction (github.com/tphakala/go-audio-resampler has no SetRatio),
// so a DLL that is continuously re-estimating the device clock needs this
// adapter to expose a ratio that moves every tick without rebuilding the
// filter bank every tick too — rebuilding is relatively expensive and the
// drift tracker's own settling behavior keeps ratio changes well under this
// threshold once locked.
const ratioRebuildEpsilon = 1e-4

// adaptiveResampler presents a dynamic-ratio resampling stage backed by an
// engine whose ratio is otherwise fixed at construction.
type adaptiveResampler struct {
	mu         sync.Mutex
	inner      resampler.Resampler
	builtRatio float64
}

func newAdaptiveResampler() *adaptiveResampler {
	return &adaptiveResampler{}
}

func (a *adaptiveResampler) ensure(ratio float64) error {
	if a.inner != nil && math.Abs(ratio-a.builtRatio) < ratioRebuildEpsilon {
		return nil
	}
	r, err := resampler.New(&resampler.Config{
		InputRate:  1.0,
		OutputRate: ratio,
		Channels:   channelsPerDevice,
		Quality:    resampler.QualitySpec{Preset: resampler.QualityMedium},
	})
	if err != nil {
		return err
	}
	a.inner = r
	a.builtRatio = ratio
	return nil
}

// process resamples frameBytes (interleaved float32 frames, channelsPerDevice
// samples each) to the given ratio, generating at most maxOutputFrames
// frames per channel. It returns the generated channels and the frame
// count actually produced, which may be less than maxOutputFrames.
func (a *adaptiveResampler) process(frameBytes []byte, ratio float64, maxOutputFrames uint32) ([][]float64, uint32, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.ensure(ratio); err != nil {
		return nil, 0, err
	}

	channels, err := a.inner.ProcessMulti(deinterleave(frameBytes))
	if err != nil {
		return nil, 0, err
	}
	if len(channels) == 0 {
		return nil, 0, nil
	}

	gen := uint32(len(channels[0]))
	if gen > maxOutputFrames {
		gen = maxOutputFrames
	}
	return channels, gen, nil
}

func (a *adaptiveResampler) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inner != nil {
		a.inner.Reset()
	}
}
