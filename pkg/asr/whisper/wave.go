package whisper

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// LoadWAV decodes a PCM WAV file into mono float32 samples at the given
// target sample rate. Multi-channel audio is down-mixed by averaging all
// channels per frame; a sample-rate mismatch is bridged with linear
// interpolation, which is adequate for speech recognition input.
func LoadWAV(path string, targetRate int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("whisper: open audio %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("whisper: decode audio %q: %w", path, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("whisper: decode audio %q: empty PCM buffer", path)
	}

	samples := toMonoFloat32(buf.Data, buf.Format.NumChannels, int(dec.BitDepth))
	if buf.Format.SampleRate != targetRate {
		samples = resampleLinear(samples, buf.Format.SampleRate, targetRate)
	}
	return samples, nil
}

// toMonoFloat32 converts interleaved integer PCM to mono float32 in
// [-1.0, 1.0], averaging channels per frame.
func toMonoFloat32(data []int, channels, bitDepth int) []float32 {
	if channels < 1 {
		channels = 1
	}
	scale := float32(32768)
	if bitDepth > 0 {
		scale = float32(int64(1) << (bitDepth - 1))
	}

	frames := len(data) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += float32(data[i*channels+ch]) / scale
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// resampleLinear converts samples from one rate to another with linear
// interpolation.
func resampleLinear(in []float32, from, to int) []float32 {
	if from == to || from <= 0 || to <= 0 || len(in) == 0 {
		return in
	}
	outLen := int(float64(len(in)) * float64(to) / float64(from))
	if outLen <= 0 {
		return nil
	}
	out := make([]float32, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}
