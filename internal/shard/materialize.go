package shard

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dkrasnelis/voxprep/internal/corpus"
)

// Shard is one materialized shard dataset on disk.
type Shard struct {
	Index int
	Dir   string
	Rows  []corpus.Row
}

// OutDir is where the shard's worker writes its report artifacts.
func (s Shard) OutDir() string { return filepath.Join(s.Dir, "report") }

// shardMeta is written into each shard directory so a shard run can be
// traced back to its source corpus.
type shardMeta struct {
	Index     int    `json:"index"`
	Source    string `json:"source"`
	Rows      int    `json:"rows"`
	CreatedAt string `json:"created_at"`
}

// Materialize lays out one dataset directory per partition under workDir.
// Audio is symlinked rather than copied, so shards are cheap regardless of
// corpus size; config.json is copied verbatim when the source has one.
// A partition row referencing a missing source file aborts materialization:
// sharding a broken corpus would only smear the breakage across workers.
func Materialize(ds *corpus.Dataset, parts [][]corpus.Row, workDir string) ([]Shard, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("shard: create work dir: %w", err)
	}

	shards := make([]Shard, 0, len(parts))
	for i, part := range parts {
		dir := filepath.Join(workDir, fmt.Sprintf("shard_%02d", i))
		if err := materializeOne(ds, part, i, dir); err != nil {
			return nil, err
		}
		shards = append(shards, Shard{Index: i, Dir: dir, Rows: part})
	}
	return shards, nil
}

func materializeOne(ds *corpus.Dataset, rows []corpus.Row, index int, dir string) error {
	wavsDir := filepath.Join(dir, corpus.WavsDir)
	if err := os.MkdirAll(wavsDir, 0o755); err != nil {
		return fmt.Errorf("shard %d: create dirs: %w", index, err)
	}

	srcConfig := filepath.Join(ds.Dir, corpus.ConfigFile)
	if _, err := os.Stat(srcConfig); err == nil {
		if err := copyFile(srcConfig, filepath.Join(dir, corpus.ConfigFile)); err != nil {
			return fmt.Errorf("shard %d: copy config: %w", index, err)
		}
	}

	lines := make([]string, 0, len(rows))
	linked := make(map[string]bool, len(rows))
	for _, row := range rows {
		lines = append(lines, row.WAV+"|"+row.Text)
		if row.WAV == "" || linked[row.WAV] {
			continue
		}
		src := ds.WavPath(row.WAV)
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("shard %d: source audio %q: %w", index, row.WAV, err)
		}
		if err := os.Symlink(src, filepath.Join(wavsDir, row.WAV)); err != nil {
			return fmt.Errorf("shard %d: link %q: %w", index, row.WAV, err)
		}
		linked[row.WAV] = true
	}

	if err := corpus.WriteMetadata(filepath.Join(dir, corpus.MetadataFile), lines); err != nil {
		return fmt.Errorf("shard %d: %w", index, err)
	}

	meta := shardMeta{
		Index:     index,
		Source:    ds.Dir,
		Rows:      len(rows),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("shard %d: marshal meta: %w", index, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "shard.json"), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("shard %d: write meta: %w", index, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
