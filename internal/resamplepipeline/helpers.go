package resamplepipeline

import "unsafe"

// channelsPerDevice matches shared-memory frame layout: kChannelsPerDevice
// in the original engine, 4 bytes per float32 sample.
const channelsPerDevice = 2

const bytesPerSample = 4

// deinterleave reinterprets frameBytes — channelsPerDevice interleaved
// float32 samples per frame, the format every shared-memory ring carries —
// as per-channel float64 slices for the resampler engine.
func deinterleave(frameBytes []byte) [][]float64 {
	frames := len(frameBytes) / (channelsPerDevice * bytesPerSample)
	channels := make([][]float64, channelsPerDevice)
	for c := range channels {
		channels[c] = make([]float64, frames)
	}
	if frames == 0 {
		return channels
	}
	samples := unsafe.Slice((*float32)(unsafe.Pointer(&frameBytes[0])), frames*channelsPerDevice)
	for i := 0; i < frames; i++ {
		for c := 0; c < channelsPerDevice; c++ {
			channels[c][i] = float64(samples[i*channelsPerDevice+c])
		}
	}
	return channels
}

// interleave packs up to n frames from each channel back into the
// shared-memory float32 frame format.
func interleave(channels [][]float64, n uint32) []byte {
	if n == 0 {
		return nil
	}
	out := make([]byte, int(n)*channelsPerDevice*bytesPerSample)
	samples := unsafe.Slice((*float32)(unsafe.Pointer(&out[0])), int(n)*channelsPerDevice)
	for i := 0; i < int(n); i++ {
		for c := 0; c < channelsPerDevice && c < len(channels); c++ {
			if i < len(channels[c]) {
				samples[i*channelsPerDevice+c] = float32(channels[c][i])
			}
		}
	}
	return out
}
