package discipline

import (
	"sort"
	"sync"
)

// observers is a set of callbacks notified with snapshots of type T.
//
// Callbacks are always invoked without the owner's lock held, so they may call
// back into the owner.
type observers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

// subscribe adds fn, the returned function removes it.
func (o *observers[T]) subscribe(fn func(T)) (cancel func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func(T))
	}
	id := o.next
	o.next++
	o.fns[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

// notify calls every callback with v, in subscription order.
func (o *observers[T]) notify(v T) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.fns))
	for id := range o.fns {
		ids = append(ids, id)
	}
	fns := make([]func(T), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, o.fns[id])
	}
	o.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}
