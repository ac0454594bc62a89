// Package shard splits a corpus into N disjoint shard datasets, runs one
// validation worker process per shard with GPU pinning, and merges the
// per-shard artifacts into a single corpus-level report and verdict.
package shard

import "github.com/dkrasnelis/voxprep/internal/corpus"

// RoundRobin partitions rows into n parts by dealing rows in order. Part
// sizes differ by at most one and every part preserves the relative row
// order of its members. n must be positive; rows may be empty.
func RoundRobin(rows []corpus.Row, n int) [][]corpus.Row {
	parts := make([][]corpus.Row, n)
	for i, row := range rows {
		k := i % n
		parts[k] = append(parts[k], row)
	}
	return parts
}
