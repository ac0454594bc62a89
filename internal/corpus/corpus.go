// Package corpus models the on-disk layout of a prepared training corpus:
// a dataset directory holding config.json, a pipe-delimited two-column
// metadata file, and a wavs/ subdirectory with one audio file per
// referenced filename.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Well-known file names inside a dataset directory.
const (
	ConfigFile   = "config.json"
	MetadataFile = "metadata_2col.csv"
	WavsDir      = "wavs"
)

// Config is the subset of the training configuration the validator needs.
// The file may carry arbitrary additional keys for the trainer; only the
// audio block is interpreted here.
type Config struct {
	Audio AudioConfig `json:"audio"`
}

// AudioConfig holds the audio format the corpus was prepared for.
type AudioConfig struct {
	SampleRate int `json:"sample_rate"`
}

// Row is one parsed metadata line. Num is 1-based and is the stable identity
// for issue reporting even when the other fields are malformed. Issue is a
// parse-level marker ("empty_row", "missing_text") or empty for a
// well-formed line.
type Row struct {
	Num   int
	WAV   string
	Text  string
	Issue string
}

// Dataset is a resolved dataset directory.
type Dataset struct {
	Dir        string
	Config     *Config
	SampleRate int // from Config; 0 when the config was absent or malformed
}

// Open resolves dir as a dataset root. The metadata file must exist; a
// missing or malformed config.json is tolerated here and surfaces as a
// structural finding during validation instead, matching the report tools'
// behaviour of always producing an artifact.
func Open(dir string) (*Dataset, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("corpus: resolve %q: %w", dir, err)
	}
	if _, err := os.Stat(filepath.Join(abs, MetadataFile)); err != nil {
		return nil, fmt.Errorf("corpus: missing %s in %q: %w", MetadataFile, abs, err)
	}

	ds := &Dataset{Dir: abs}
	if cfg, err := LoadConfig(filepath.Join(abs, ConfigFile)); err == nil {
		ds.Config = cfg
		ds.SampleRate = cfg.Audio.SampleRate
	}
	return ds, nil
}

// LoadConfig reads a dataset config.json. The audio.sample_rate integer is
// required.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: read config %q: %w", path, err)
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("corpus: parse config %q: %w", path, err)
	}
	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("corpus: config %q: audio.sample_rate is required", path)
	}
	return cfg, nil
}

// MetadataPath returns the dataset's metadata file path.
func (d *Dataset) MetadataPath() string { return filepath.Join(d.Dir, MetadataFile) }

// WavPath returns the on-disk path of a referenced audio file.
func (d *Dataset) WavPath(name string) string { return filepath.Join(d.Dir, WavsDir, name) }

// ListWavs returns the sorted set of *.wav base names present in the audio
// subdirectory. A missing directory yields an empty set, not an error; the
// validator reports that as a structural finding.
func (d *Dataset) ListWavs() []string {
	entries, err := os.ReadDir(filepath.Join(d.Dir, WavsDir))
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// ReadMetadata parses the pipe-delimited metadata file. Every input line
// produces exactly one Row so row numbers stay aligned with the file:
// a blank line is an "empty_row", a line without the pipe separator is
// "missing_text". Text containing further pipes is kept whole — the format
// is two-column by contract.
func ReadMetadata(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open metadata %q: %w", path, err)
	}
	defer f.Close()

	var rows []Row
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	num := 0
	for sc.Scan() {
		num++
		line := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			rows = append(rows, Row{Num: num, Issue: "empty_row"})
			continue
		}
		wavPart, textPart, found := strings.Cut(line, "|")
		if !found {
			rows = append(rows, Row{Num: num, WAV: strings.TrimSpace(wavPart), Issue: "missing_text"})
			continue
		}
		rows = append(rows, Row{
			Num:  num,
			WAV:  strings.TrimSpace(wavPart),
			Text: strings.TrimSpace(textPart),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("corpus: read metadata %q: %w", path, err)
	}
	return rows, nil
}

// WriteMetadata writes metadata lines (already in "wav|text" form) to path.
func WriteMetadata(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("corpus: write metadata %q: %w", path, err)
	}
	return nil
}
