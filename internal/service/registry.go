package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type regKey[K comparable] struct {
	session uuid.UUID
	id      K
}

type regEntry[T any] struct {
	value   T
	touched time.Time
}

// registry holds per-session objects with a last-touched timestamp.
type registry[K comparable, T any] struct {
	mu    sync.Mutex
	items map[regKey[K]]*regEntry[T]
	now   func() time.Time
}

func newRegistry[K comparable, T any](now func() time.Time) *registry[K, T] {
	return &registry[K, T]{items: map[regKey[K]]*regEntry[T]{}, now: now}
}

func (r *registry[K, T]) put(session uuid.UUID, id K, value T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[regKey[K]{session, id}] = &regEntry[T]{value: value, touched: r.now()}
}

// get returns the value owned by session and refreshes its timestamp.
func (r *registry[K, T]) get(session uuid.UUID, id K) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[regKey[K]{session, id}]
	if !ok {
		var zero T
		return zero, false
	}
	e.touched = r.now()
	return e.value, true
}

// getOrPut returns the existing value or stores the one built by create.
func (r *registry[K, T]) getOrPut(session uuid.UUID, id K, create func() T) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := regKey[K]{session, id}
	if e, ok := r.items[key]; ok {
		e.touched = r.now()
		return e.value, false
	}
	v := create()
	r.items[key] = &regEntry[T]{value: v, touched: r.now()}
	return v, true
}

func (r *registry[K, T]) remove(session uuid.UUID, id K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := regKey[K]{session, id}
	_, ok := r.items[key]
	delete(r.items, key)
	return ok
}

func (r *registry[K, T]) dropSession(session uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.items {
		if k.session == session {
			delete(r.items, k)
			n++
		}
	}
	return n
}

// sweep drops entries untouched since before.
func (r *registry[K, T]) sweep(before time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.items {
		if e.touched.Before(before) {
			delete(r.items, k)
			n++
		}
	}
	return n
}

// each calls fn for every entry whose id matches.
func (r *registry[K, T]) each(id K, fn func(T)) {
	r.mu.Lock()
	var matched []T
	for k, e := range r.items {
		if k.id == id {
			matched = append(matched, e.value)
		}
	}
	r.mu.Unlock()
	for _, v := range matched {
		fn(v)
	}
}

func (r *registry[K, T]) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
