// Package ledger persists one record per finished session to a Lode dataset.
//
// Records are partitioned with Hive layout day/operation/outcome and encoded
// as JSONL. Each Record call produces one snapshot.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "reel"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"day", "operation", "outcome"}

// Recorder accepts finished session records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Ledger is a Lode-backed Recorder.
type Ledger struct {
	mu      sync.Mutex // serializes writes to the dataset
	dataset lode.Dataset
	id      string
}

// New creates a ledger over the store built by factory.
// Use lode.NewMemoryFactory() for testing.
func New(dataset string, factory lode.StoreFactory) (*Ledger, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &Ledger{dataset: ds, id: dataset}, nil
}

// NewFS creates a ledger with filesystem storage rooted at root.
func NewFS(dataset, root string) (*Ledger, error) {
	return New(dataset, lode.NewFSFactory(root))
}

// Dataset returns the dataset ID.
func (l *Ledger) Dataset() string {
	return l.id
}

// Record appends rec as a new snapshot.
func (l *Ledger) Record(ctx context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.dataset.Write(ctx, []any{toRecordMap(rec)}, lode.Metadata{})
	return WrapWriteError(err, l.id)
}

// Records reads every stored record, oldest snapshot first.
// A record seen in more than one snapshot is returned once.
func (l *Ledger) Records(ctx context.Context) ([]Record, error) {
	snapshots, err := l.dataset.Snapshots(ctx)
	if err != nil {
		wrapped := WrapReadError(err, l.id+"/snapshots")
		if errors.Is(wrapped, ErrNotFound) {
			return nil, nil
		}
		return nil, wrapped
	}

	seen := make(map[string]struct{})
	var out []Record
	for _, snap := range snapshots {
		items, err := l.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", l.id, snap.ID))
		}
		for _, item := range items {
			rec, err := fromRecordItem(item)
			if err != nil {
				return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", l.id, snap.ID))
			}
			if rec.SessionID != "" {
				if _, dup := seen[rec.SessionID]; dup {
					continue
				}
				seen[rec.SessionID] = struct{}{}
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close releases the ledger. Lode datasets hold no open handles.
func (l *Ledger) Close() error {
	return nil
}

// Nop is a Recorder that discards records.
type Nop struct{}

// Record discards rec.
func (Nop) Record(context.Context, Record) error { return nil }
