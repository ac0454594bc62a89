// Package manifest handles the interchange files between pipeline stages:
// the source manifest (one JSON object per line, audio_path + text) and the
// chunk-list file consumed by the aligner (an ordered JSON array of items,
// each carrying the chunk sequence for one audio file).
package manifest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one source-manifest line. Unknown fields are retained in Meta so
// they survive into the chunk list's source metadata.
type Entry struct {
	AudioPath string
	Text      string
	Meta      map[string]any
}

// Item is one element of the chunk-list file: the ordered chunk sequence for
// one audio file, plus provenance.
type Item struct {
	AudioPath        string         `json:"audio_path"`
	Sentences        []string       `json:"sentences"`
	OriginalFullText string         `json:"original_full_text"`
	SourceMeta       map[string]any `json:"source_metadata"`
}

// ReadManifest parses a line-delimited JSON manifest from r. Blank and
// malformed lines are skipped, not errored: the manifest comes from external
// recording tooling and partial damage must not block the batch. limit > 0
// stops after that many non-blank lines.
func ReadManifest(r io.Reader, limit int) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	nonBlank := 0
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		nonBlank++
		if limit > 0 && nonBlank > limit {
			break
		}

		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		audio, _ := raw["audio_path"].(string)
		txt, _ := raw["text"].(string)
		out = append(out, Entry{AudioPath: audio, Text: txt, Meta: raw})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}
	return out, nil
}

// ReadItems loads a chunk-list file. The file must contain a JSON array.
func ReadItems(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read chunk list %q: %w", path, err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("manifest: chunk list %q must be a JSON array: %w", path, err)
	}
	return items, nil
}

// WriteItems writes a chunk-list file atomically enough for this pipeline:
// parent directories are created, the array is indented for reviewability.
func WriteItems(path string, items []Item) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("manifest: mkdir for %q: %w", path, err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encode chunk list: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("manifest: write %q: %w", path, err)
	}
	return nil
}
