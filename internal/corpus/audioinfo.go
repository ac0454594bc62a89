package corpus

import (
	"os"

	"github.com/go-audio/wav"
)

// AudioInfo describes one referenced audio file as probed from its header.
// When Err is non-empty the remaining fields are unset; Err carries the
// issue kind used directly in quality findings ("missing_wav",
// "invalid_audio").
type AudioInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64 // seconds
	Err        string
}

// ProbeAudio inspects a WAV file without decoding its full payload. Probing
// never returns a Go error: a missing or unreadable file is a data-quality
// finding, not a pipeline failure.
func ProbeAudio(path string) AudioInfo {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AudioInfo{Err: "missing_wav"}
		}
		return AudioInfo{Err: "invalid_audio"}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() || dec.SampleRate == 0 {
		return AudioInfo{Err: "invalid_audio"}
	}

	info := AudioInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if d, err := dec.Duration(); err == nil {
		info.Duration = d.Seconds()
	} else {
		return AudioInfo{Err: "invalid_audio"}
	}
	return info
}
