// Package dedupe maps chart requests to the job that already rates them.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper remembers which job answers a request key.
type Deduper interface {
	// LookupOrRecord returns the job recorded for key, or records id and
	// returns it with seen=false. Check and insert are atomic.
	LookupOrRecord(ctx context.Context, key, id string) (existing string, seen bool)

	// Forget removes key so that it can be submitted again, e.g. after the
	// job could not be enqueued or failed.
	Forget(ctx context.Context, key string)

	Size() int64
}

type entry struct {
	key string
	id  string
}

// inMemoryDeduper keeps at most maxSize keys and evicts the oldest.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List // front is newest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50_000,
		index:   make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) LookupOrRecord(_ context.Context, key, id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.index[key]; ok {
		return el.Value.(*entry).id, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Back()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(*entry).key)
		d.size.Add(-1)
	}
	d.index[key] = d.order.PushFront(&entry{key: key, id: id})
	d.size.Add(1)
	return id, false
}

func (d *inMemoryDeduper) Forget(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.index[key]; ok {
		d.order.Remove(el)
		delete(d.index, key)
		d.size.Add(-1)
	}
}

// Size returns the number of remembered keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
