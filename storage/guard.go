// Package storage bounds the bytes resident in the upload area.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultCapacity is the default upload area ceiling (4 TiB).
const DefaultCapacity int64 = 4 << 40

// Guard admits or rejects uploads against a capacity ceiling.
//
// Usage is recomputed by a full scan of the upload area on every call; there
// is no running total. Admission is a point-in-time check: two concurrent
// uploads can both be admitted and jointly exceed the ceiling.
type Guard struct {
	dir      string
	capacity int64
}

// NewGuard creates a guard over dir with the given ceiling in bytes.
func NewGuard(dir string, capacity int64) (*Guard, error) {
	if dir == "" {
		return nil, errors.New("storage guard requires an upload directory")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("storage capacity must be positive, got %d", capacity)
	}
	return &Guard{dir: dir, capacity: capacity}, nil
}

// Dir returns the guarded directory.
func (g *Guard) Dir() string {
	return g.dir
}

// Capacity returns the ceiling in bytes.
func (g *Guard) Capacity() int64 {
	return g.capacity
}

// UsedBytes sums the sizes of all regular files under the upload area.
// A missing upload area counts as empty. Files removed during the scan are
// skipped.
func (g *Guard) UsedBytes() (int64, error) {
	var total int64
	err := filepath.WalkDir(g.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("failed to scan %s: %w", g.dir, err)
	}
	return total, nil
}

// Admission is the outcome of one admission check.
type Admission struct {
	Used     int64
	Incoming int64
	Capacity int64
	Admitted bool
}

// Admit reports whether incoming more bytes fit under the ceiling given the
// current usage. It must be called before any byte of the upload is written.
func (g *Guard) Admit(incoming int64) (Admission, error) {
	used, err := g.UsedBytes()
	if err != nil {
		return Admission{}, err
	}
	return Admission{
		Used:     used,
		Incoming: incoming,
		Capacity: g.capacity,
		Admitted: Fits(used, incoming, g.capacity),
	}, nil
}

// Fits reports whether used+incoming <= capacity without overflowing.
// Negative inputs never fit.
func Fits(used, incoming, capacity int64) bool {
	if used < 0 || incoming < 0 || capacity < 0 {
		return false
	}
	return used <= capacity && incoming <= capacity-used
}
