package slicer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// ErrSliceIO marks failures storing or reading encoded slices, and
// reassembly failures that are not capacity rejections.
var ErrSliceIO = errors.New("slice storage failure")

// ArenaStats summarises what an arena holds.
type ArenaStats struct {
	Parts        int   `json:"parts"`
	MemoryBytes  int64 `json:"memory_bytes"`
	SpilledParts int   `json:"spilled_parts"`
	SpilledBytes int64 `json:"spilled_bytes"`
}

// Arena holds one request's encoded slices keyed by index. Slices are kept
// in memory until the threshold would be exceeded; later slices are written
// to a temporary directory owned by the arena. Safe for concurrent Put.
type Arena struct {
	mu        sync.Mutex
	scratch   string
	threshold int64
	dir       string
	memory    map[int][]byte
	spilled   map[int]string
	stats     ArenaStats
	closed    bool
}

// NewArena creates an empty arena.
//
// Arguments:
//   - scratchDir: Parent of the spill directory; empty uses os.TempDir().
//   - threshold: In-memory byte budget; zero or less never spills.
//
// Returns:
//   - *Arena: The arena. Callers must Close it.
func NewArena(scratchDir string, threshold int64) *Arena {
	return &Arena{
		scratch:   scratchDir,
		threshold: threshold,
		memory:    make(map[int][]byte),
		spilled:   make(map[int]string),
	}
}

// Put stores data under index. Storing an index twice is an error.
func (a *Arena) Put(index int, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errors.Wrapf(ErrSliceIO, "put slice %d: arena closed", index)
	}
	if _, ok := a.memory[index]; ok {
		return errors.Wrapf(ErrSliceIO, "put slice %d: already stored", index)
	}
	if _, ok := a.spilled[index]; ok {
		return errors.Wrapf(ErrSliceIO, "put slice %d: already stored", index)
	}

	size := int64(len(data))
	if a.threshold <= 0 || a.stats.MemoryBytes+size <= a.threshold {
		a.memory[index] = data
		a.stats.Parts++
		a.stats.MemoryBytes += size
		return nil
	}

	if a.dir == "" {
		dir, err := os.MkdirTemp(a.scratch, "transcode-slices-*")
		if err != nil {
			return errors.Wrapf(ErrSliceIO, "create spill directory: %v", err)
		}
		a.dir = dir
	}

	path := filepath.Join(a.dir, fmt.Sprintf("slice-%05d", index))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(ErrSliceIO, "spill slice %d: %v", index, err)
	}

	a.spilled[index] = path
	a.stats.Parts++
	a.stats.SpilledParts++
	a.stats.SpilledBytes += size
	return nil
}

// Parts returns slices 0..n-1 in index order.
func (a *Arena) Parts(n int) ([][]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, errors.Wrap(ErrSliceIO, "read slices: arena closed")
	}

	parts := make([][]byte, n)
	for i := 0; i < n; i++ {
		if data, ok := a.memory[i]; ok {
			parts[i] = data
			continue
		}
		path, ok := a.spilled[i]
		if !ok {
			return nil, errors.Wrapf(ErrSliceIO, "read slice %d: missing", i)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(ErrSliceIO, "read slice %d: %v", i, err)
		}
		parts[i] = data
	}
	return parts, nil
}

// Stats returns a snapshot of the arena's contents.
func (a *Arena) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Dir returns the spill directory, or "" if nothing has spilled.
func (a *Arena) Dir() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dir
}

// Close drops every slice and removes the spill directory. It is safe to call
// more than once.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.memory = nil
	a.spilled = nil

	if a.dir == "" {
		return nil
	}
	if err := os.RemoveAll(a.dir); err != nil {
		return errors.Wrapf(ErrSliceIO, "remove spill directory: %v", err)
	}
	return nil
}
