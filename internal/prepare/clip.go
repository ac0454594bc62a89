package prepare

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// sourceAudio is one decoded recording, down-mixed to mono float64 samples
// in [-1, 1] so segment cuts are cheap slices.
type sourceAudio struct {
	samples []float64
	rate    int
}

// loadMono decodes a PCM WAV file and averages all channels per frame.
func loadMono(path string) (*sourceAudio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("prepare: open audio %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("prepare: decode audio %q: %w", path, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("prepare: decode audio %q: empty PCM buffer", path)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := float64(32768)
	if dec.BitDepth > 0 {
		scale = float64(int64(1) << (dec.BitDepth - 1))
	}

	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) / scale
		}
		mono[i] = sum / float64(channels)
	}
	return &sourceAudio{samples: mono, rate: buf.Format.SampleRate}, nil
}

// duration returns the recording length in seconds.
func (a *sourceAudio) duration() float64 {
	if a.rate <= 0 {
		return 0
	}
	return float64(len(a.samples)) / float64(a.rate)
}

// cut returns the [start, end) span resampled to targetRate. The span is
// clamped to the recording; an inverted or out-of-range span yields nil.
func (a *sourceAudio) cut(start, end float64, targetRate int) []float64 {
	lo := int(math.Round(start * float64(a.rate)))
	hi := int(math.Round(end * float64(a.rate)))
	if lo < 0 {
		lo = 0
	}
	if hi > len(a.samples) {
		hi = len(a.samples)
	}
	if hi <= lo {
		return nil
	}
	span := a.samples[lo:hi]
	if a.rate == targetRate {
		out := make([]float64, len(span))
		copy(out, span)
		return out
	}
	return resample(span, a.rate, targetRate)
}

// resample converts samples between rates with linear interpolation.
func resample(in []float64, from, to int) []float64 {
	if from <= 0 || to <= 0 || len(in) == 0 {
		return nil
	}
	outLen := int(float64(len(in)) * float64(to) / float64(from))
	if outLen <= 0 {
		return nil
	}
	out := make([]float64, outLen)
	ratio := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

// writeClip encodes samples as a mono 16-bit PCM WAV at rate.
func writeClip(path string, samples []float64, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("prepare: create clip %q: %w", path, err)
	}

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, v := range samples {
		s := math.Round(v * 32767)
		if s > 32767 {
			s = 32767
		}
		if s < -32768 {
			s = -32768
		}
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("prepare: encode clip %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("prepare: finalize clip %q: %w", path, err)
	}
	return f.Close()
}
