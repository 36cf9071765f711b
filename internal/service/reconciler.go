package service

import (
	"context"
)

// bulkWriter is the slice of a repository the reconciler flushes through.
type bulkWriter[T any] interface {
	BulkUpsert(ctx context.Context, rows []T) error
	BulkUpdate(ctx context.Context, rows []T) error
}

// reconciler classifies fetched records against a snapshot of stored IDs and
// flushes inserts and updates in fixed-size batches, one transaction per
// flush. Within a pending batch the last occurrence of an ID wins; a record
// whose insert batch has already been flushed reclassifies as an update.
type reconciler[T any] struct {
	writer    bulkWriter[T]
	key       func(T) string
	batchSize int

	snapshot  map[string]struct{}
	inserts   []T
	updates   []T
	insertIdx map[string]int
	updateIdx map[string]int

	inserted int
	updated  int
}

func newReconciler[T any](writer bulkWriter[T], snapshot map[string]struct{}, batchSize int, key func(T) string) *reconciler[T] {
	return &reconciler[T]{
		writer:    writer,
		key:       key,
		batchSize: batchSize,
		snapshot:  snapshot,
		insertIdx: make(map[string]int),
		updateIdx: make(map[string]int),
	}
}

func (r *reconciler[T]) add(ctx context.Context, row T) error {
	id := r.key(row)

	if i, ok := r.insertIdx[id]; ok {
		r.inserts[i] = row
		return nil
	}
	if i, ok := r.updateIdx[id]; ok {
		r.updates[i] = row
		return nil
	}

	if _, exists := r.snapshot[id]; exists {
		r.updates = append(r.updates, row)
		r.updateIdx[id] = len(r.updates) - 1
		if len(r.updates) >= r.batchSize {
			return r.flushUpdates(ctx)
		}
		return nil
	}

	r.inserts = append(r.inserts, row)
	r.insertIdx[id] = len(r.inserts) - 1
	if len(r.inserts) >= r.batchSize {
		return r.flushInserts(ctx)
	}
	return nil
}

// flush writes out all pending rows. Call once after the last page.
func (r *reconciler[T]) flush(ctx context.Context) error {
	if err := r.flushInserts(ctx); err != nil {
		return err
	}
	return r.flushUpdates(ctx)
}

func (r *reconciler[T]) flushInserts(ctx context.Context) error {
	if len(r.inserts) == 0 {
		return nil
	}
	if err := r.writer.BulkUpsert(ctx, r.inserts); err != nil {
		return err
	}
	r.inserted += len(r.inserts)

	// Flushed rows now exist in the store, so a later occurrence within the
	// same run must be classified as an update.
	for id := range r.insertIdx {
		r.snapshot[id] = struct{}{}
	}
	r.inserts = nil
	clear(r.insertIdx)
	return nil
}

func (r *reconciler[T]) flushUpdates(ctx context.Context) error {
	if len(r.updates) == 0 {
		return nil
	}
	if err := r.writer.BulkUpdate(ctx, r.updates); err != nil {
		return err
	}
	r.updated += len(r.updates)
	r.updates = nil
	clear(r.updateIdx)
	return nil
}
