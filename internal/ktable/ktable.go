// Package ktable implements the sharded, bucket-locked resource table used
// to back the task, semaphore, and pipe tables (§3, §4.4, §4.7, §4.8):
// lock-free reads via atomic pointer loads down a bucket's singly linked
// chain, a per-bucket RWMutex held only across Set/Del. Adapted from
// biscuit's hashtable.go, specialized from interface{}-keyed/valued buckets
// to Go generics over an integer key, since every table this spec needs
// (pid, semaphore id, pipe id) is keyed by a small dense integer rather than
// an arbitrary Go value.
package ktable

import (
	"sync"
	"sync/atomic"
)

type elem[K comparable, V any] struct {
	key  K
	val  V
	next atomic.Pointer[elem[K, V]]
}

type bucket[K comparable, V any] struct {
	mu    sync.RWMutex
	first atomic.Pointer[elem[K, V]]
}

// Table is a fixed-bucket-count concurrent map. Zero value is not usable;
// construct with New.
type Table[K comparable, V any] struct {
	buckets []*bucket[K, V]
	hash    func(K) uint64
	count   atomic.Int64
}

// New creates a table with nbuckets shards, hashing keys with hash.
func New[K comparable, V any](nbuckets int, hash func(K) uint64) *Table[K, V] {
	t := &Table[K, V]{
		buckets: make([]*bucket[K, V], nbuckets),
		hash:    hash,
	}
	for i := range t.buckets {
		t.buckets[i] = &bucket[K, V]{}
	}
	return t
}

// NewIntTable builds a Table keyed by any integer type, using the identity
// as its hash — dense small ids (pids, semaphore/pipe ids) don't benefit
// from mixing the way arbitrary interface{} keys did in biscuit's generic
// table.
func NewIntTable[K ~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64, V any](nbuckets int) *Table[K, V] {
	return New[K, V](nbuckets, func(k K) uint64 { return uint64(k) })
}

func (t *Table[K, V]) bucketFor(k K) *bucket[K, V] {
	return t.buckets[t.hash(k)%uint64(len(t.buckets))]
}

// Get performs a lock-free lookup, walking the bucket chain via atomic
// pointer loads the way biscuit's Get does.
func (t *Table[K, V]) Get(k K) (V, bool) {
	b := t.bucketFor(k)
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.key == k {
			return e.val, true
		}
	}
	var zero V
	return zero, false
}

// Set inserts k/v if absent and reports whether the insert happened; an
// existing key is left untouched (callers that want replace-on-exists
// should Del then Set).
func (t *Table[K, V]) Set(k K, v V) bool {
	b := t.bucketFor(k)
	b.mu.Lock()
	defer b.mu.Unlock()

	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.key == k {
			return false
		}
	}
	n := &elem[K, V]{key: k, val: v}
	n.next.Store(b.first.Load())
	b.first.Store(n)
	t.count.Add(1)
	return true
}

// Del removes k, reporting whether it was present.
func (t *Table[K, V]) Del(k K) bool {
	b := t.bucketFor(k)
	b.mu.Lock()
	defer b.mu.Unlock()

	var prev *elem[K, V]
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.key == k {
			if prev == nil {
				b.first.Store(e.next.Load())
			} else {
				prev.next.Store(e.next.Load())
			}
			t.count.Add(-1)
			return true
		}
		prev = e
	}
	return false
}

// Len returns the number of live entries.
func (t *Table[K, V]) Len() int {
	return int(t.count.Load())
}

// Each calls f for every entry; f returning false stops iteration early.
// It does not lock buckets against concurrent mutation — callers needing a
// consistent point-in-time view should coordinate externally.
func (t *Table[K, V]) Each(f func(K, V) bool) {
	for _, b := range t.buckets {
		for e := b.first.Load(); e != nil; e = e.next.Load() {
			if !f(e.key, e.val) {
				return
			}
		}
	}
}
