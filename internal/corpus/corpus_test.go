package corpus

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV synthesizes a PCM sine WAV for fixtures.
func writeTestWAV(t *testing.T, path string, sampleRate, channels, bitDepth int, seconds float64) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	frames := int(float64(sampleRate) * seconds)
	data := make([]int, frames*channels)
	amp := float64(int(1)<<(bitDepth-1)) / 4
	for i := 0; i < frames; i++ {
		v := int(amp * math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = v
		}
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

// newTestDataset lays out a minimal dataset directory.
func newTestDataset(t *testing.T, metadata string, withConfig bool) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, WavsDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), []byte(metadata), 0o644); err != nil {
		t.Fatal(err)
	}
	if withConfig {
		cfg := `{"audio":{"sample_rate":22050},"model":{"hidden":123}}`
		if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(cfg), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("with config", func(t *testing.T) {
		t.Parallel()
		dir := newTestDataset(t, "a.wav|привет\n", true)
		ds, err := Open(dir)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if ds.SampleRate != 22050 {
			t.Errorf("sample rate = %d, want 22050", ds.SampleRate)
		}
	})

	t.Run("config missing is tolerated", func(t *testing.T) {
		t.Parallel()
		dir := newTestDataset(t, "a.wav|привет\n", false)
		ds, err := Open(dir)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if ds.Config != nil || ds.SampleRate != 0 {
			t.Errorf("missing config must leave Config nil, got %+v", ds)
		}
	})

	t.Run("metadata missing is fatal", func(t *testing.T) {
		t.Parallel()
		if _, err := Open(t.TempDir()); err == nil {
			t.Fatal("expected error for directory without metadata")
		}
	})
}

func TestLoadConfigRequiresSampleRate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ConfigFile)
	if err := os.WriteFile(path, []byte(`{"audio":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("config without audio.sample_rate must be rejected")
	}
}

func TestReadMetadata(t *testing.T) {
	t.Parallel()

	dir := newTestDataset(t, "a.wav|Привет, мир!\n\nb.wav\nc.wav|с | трубой\n", false)
	rows, err := ReadMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want one per input line", len(rows))
	}

	if rows[0].WAV != "a.wav" || rows[0].Text != "Привет, мир!" || rows[0].Issue != "" {
		t.Errorf("row 1 = %+v", rows[0])
	}
	if rows[1].Issue != "empty_row" {
		t.Errorf("row 2 issue = %q, want empty_row", rows[1].Issue)
	}
	if rows[2].Issue != "missing_text" || rows[2].WAV != "b.wav" {
		t.Errorf("row 3 = %+v", rows[2])
	}
	if rows[3].Text != "с | трубой" {
		t.Errorf("row 4 text = %q; text after the first pipe is kept whole", rows[3].Text)
	}
	for i, r := range rows {
		if r.Num != i+1 {
			t.Errorf("row %d has Num %d; numbering must match the file", i, r.Num)
		}
	}
}

func TestListWavs(t *testing.T) {
	t.Parallel()

	dir := newTestDataset(t, "a.wav|x\n", false)
	for _, name := range []string{"b.wav", "a.WAV", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, WavsDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ds, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	got := ds.ListWavs()
	if len(got) != 2 {
		t.Fatalf("got %v, want the two wav files", got)
	}
	if got[0] != "a.WAV" || got[1] != "b.wav" {
		t.Errorf("got %v, want sorted [a.WAV b.wav]", got)
	}
}

func TestProbeAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	t.Run("valid mono pcm16", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "ok.wav")
		writeTestWAV(t, path, 22050, 1, 16, 1.0)
		info := ProbeAudio(path)
		if info.Err != "" {
			t.Fatalf("unexpected probe issue %q", info.Err)
		}
		if info.SampleRate != 22050 || info.Channels != 1 || info.BitDepth != 16 {
			t.Errorf("info = %+v", info)
		}
		if math.Abs(info.Duration-1.0) > 0.01 {
			t.Errorf("duration = %v, want ~1.0s", info.Duration)
		}
	})

	t.Run("stereo is reported", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "stereo.wav")
		writeTestWAV(t, path, 22050, 2, 16, 0.5)
		info := ProbeAudio(path)
		if info.Err != "" || info.Channels != 2 {
			t.Errorf("info = %+v, want 2 channels", info)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if info := ProbeAudio(filepath.Join(dir, "nope.wav")); info.Err != "missing_wav" {
			t.Errorf("Err = %q, want missing_wav", info.Err)
		}
	})

	t.Run("garbage file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(dir, "garbage.wav")
		if err := os.WriteFile(path, []byte("definitely not RIFF"), 0o644); err != nil {
			t.Fatal(err)
		}
		if info := ProbeAudio(path); info.Err != "invalid_audio" {
			t.Errorf("Err = %q, want invalid_audio", info.Err)
		}
	})
}
