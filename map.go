// Copyright 2025 The Probemap Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package probemap is a Go implementation of a classic open-addressing hash
// table: a single contiguous array of slots, linear probing for collision
// resolution, and tombstone deletion. If you're not familiar with
// open-addressing see https://en.wikipedia.org/wiki/Open_addressing.
//
// # Layout
//
// A Map owns two parallel arrays of length capacity (always a power of two):
// a control array with one tag per slot (empty, full, or deleted) and a slot
// array holding the keys and values. Keeping the tags out of the slot array
// means a probe walks a dense byte array and only touches slot memory when
// it needs to compare an actual key.
//
// Probing starts at hash(key)&(capacity-1) and advances one slot at a time,
// wrapping at the end of the array. A full slot with a different key and a
// deleted slot both continue the walk; an empty slot terminates it, because
// an insert always claims the first reusable slot of its sequence and
// therefore no key can ever live beyond the first empty slot it would have
// probed.
//
// # Deletion
//
// Deleting a key converts its slot to a tombstone (deleted) rather than
// empty. Keys that collided with it earlier may have been pushed further
// along the shared probe sequence; marking the slot empty would cut those
// sequences short and make the keys unreachable. Tombstones are reclaimed by
// inserts that land on them and are dropped wholesale whenever the table is
// rebuilt.
//
// # Growth
//
// Before placing a brand-new entry the table checks its load factor, where
// load counts both live entries and tombstones (a table clogged with
// tombstones probes just as slowly as a full one). At or above 70% the
// backing arrays are rebuilt: fresh arrays are fully populated before they
// replace the old ones, so the table is never observable in a half-migrated
// state. Ordinarily the capacity doubles; when tombstones alone account for
// a third or more of the table it is rebuilt at the same size.
//
// # Hashing
//
// The default hash is SDBM (see Sum64), which is deliberately seedless:
// identical key bytes yield identical hash values within and across
// processes. This trades the DoS resistance of a randomized seed for
// reproducibility. Callers that want a different trade-off can supply their
// own hash function via WithHash.
//
// A Map is NOT goroutine-safe. Callers that share a Map across goroutines
// must provide their own synchronization.
package probemap

import (
	"fmt"
	"strings"
)

const (
	debug = false

	// minCapacity is the smallest backing array New will allocate.
	minCapacity = 4

	// maxLoadNum/maxLoadDen define the maximum load factor, 7/10. Load
	// counts tombstones as well as live entries.
	maxLoadNum = 7
	maxLoadDen = 10
)

// Each slot in the hash table has a control tag with one of three states:
//
//	  empty: never used
//	   full: holds a live entry
//	deleted: previously full, now a tombstone
//
// ctrlEmpty is the zero value so freshly allocated control arrays need no
// initialization pass with the default allocator.
type ctrl uint8

const (
	ctrlEmpty ctrl = iota
	ctrlFull
	ctrlDeleted
)

// Slot holds a key and value.
type Slot[K ~string, V any] struct {
	key   K
	value V
}

// Map is an unordered map from string-like keys to values with Put, Get,
// Delete, and All operations, built on open addressing with linear probing.
// By default a Map hashes keys with SDBM; a different hash function can be
// specified using the WithHash option.
//
// A Map is NOT goroutine-safe.
type Map[K ~string, V any] struct {
	// The hash function applied to keys of type K. Must be deterministic
	// for the lifetime of the table.
	hash HashFunc[K]
	// The allocator to use for the ctrls and slots arrays.
	allocator Allocator[K, V]
	// ctrls is capacity in length: one control tag per slot.
	ctrls []ctrl
	// slots is capacity in length.
	slots []Slot[K, V]
	// The total number of slots. Always a power of two so that
	// hash%capacity reduces to a bitwise AND with capacity-1.
	capacity int
	// The number of full slots (i.e. the number of elements in the map).
	used int
	// The number of deleted slots.
	tombstones int
}

// New constructs a new Map with the specified initial capacity, rounded up
// to the next power of two (and at least minCapacity). The zero value for a
// Map is not usable.
func New[K ~string, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	m.Init(initialCapacity, options...)
	return m
}

// FromMap constructs a Map containing every entry of the builtin map src.
func FromMap[K ~string, V any](src map[K]V, options ...option[K, V]) *Map[K, V] {
	m := New[K, V](len(src)*maxLoadDen/maxLoadNum, options...)
	for k, v := range src {
		m.Put(k, v)
	}
	return m
}

// Init initializes a Map, discarding any entries it may have held. Init
// allows reuse of a Map value without reallocating it.
func (m *Map[K, V]) Init(initialCapacity int, options ...option[K, V]) {
	*m = Map[K, V]{
		hash:      defaultHash[K](),
		allocator: defaultAllocator[K, V]{},
	}
	for _, op := range options {
		op.apply(m)
	}
	if initialCapacity < minCapacity {
		initialCapacity = minCapacity
	}
	m.resize(nextPowerOfTwo(initialCapacity))
}

// Close closes the map, releasing its backing arrays to the configured
// allocator. It is unnecessary to close a map using the default allocator.
// It is invalid to use a Map after it has been closed, though Close itself
// is idempotent.
func (m *Map[K, V]) Close() {
	if m.capacity > 0 {
		m.allocator.FreeSlots(m.slots)
		m.allocator.FreeControls(unsafeConvertSlice[uint8](m.ctrls))
		m.ctrls, m.slots = nil, nil
		m.capacity, m.used, m.tombstones = 0, 0, 0
	}
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting the value in place if an
// entry with the same key already exists. It returns the previous value and
// true if an entry was overwritten.
func (m *Map[K, V]) Put(key K, value V) (prev V, replaced bool) {
	// Put is find composed with uncheckedPut: probe for an existing entry
	// to overwrite, and if the key is absent insert an entry known not to
	// be in the table.
	h := m.hash(key)
	seq := makeProbeSeq(h, m.capacity-1)
	if debug {
		fmt.Printf("put(%v): %s\n", key, seq)
	}

	for n := 0; n < m.capacity; n++ {
		switch m.ctrls[seq.offset] {
		case ctrlFull:
			if s := &m.slots[seq.offset]; s.key == key {
				if debug {
					fmt.Printf("put(updating): index=%d key=%v\n", seq.offset, key)
				}
				prev, s.value = s.value, value
				m.checkInvariants()
				return prev, true
			}
		case ctrlDeleted:
			// A tombstone cannot end the scan: the key may have been pushed
			// past it by an earlier collision, and stopping here could
			// insert a duplicate.
		case ctrlEmpty:
			// The key is not present. Grow first if placing it would reach
			// the maximum load factor, then place it at the first reusable
			// slot of a fresh probe.
			if (m.used+m.tombstones+1)*maxLoadDen >= m.capacity*maxLoadNum {
				m.rehash()
			}
			m.uncheckedPut(h, key, value)
			m.used++
			m.checkInvariants()
			return prev, false
		}
		seq = seq.next()
	}

	// A full cycle of the probe sequence found neither the key nor an empty
	// slot. The load factor bound keeps the table strictly below capacity,
	// so this is unreachable unless the resize logic is broken.
	panic(fmt.Sprintf("probemap: table full during put\n%s", m.debugString()))
}

// uncheckedPut inserts an entry known not to be in the table, placing it at
// the first empty or deleted slot of the key's probe sequence.
func (m *Map[K, V]) uncheckedPut(h uint64, key K, value V) {
	seq := makeProbeSeq(h, m.capacity-1)
	for n := 0; n < m.capacity; n++ {
		if c := m.ctrls[seq.offset]; c != ctrlFull {
			if c == ctrlDeleted {
				m.tombstones--
			}
			m.ctrls[seq.offset] = ctrlFull
			m.slots[seq.offset] = Slot[K, V]{key: key, value: value}
			if debug {
				fmt.Printf("put(inserting): index=%d key=%v used=%d\n", seq.offset, key, m.used+1)
			}
			return
		}
		seq = seq.next()
	}
	panic(fmt.Sprintf("probemap: table full during uncheckedPut\n%s", m.debugString()))
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present. Absence is a normal outcome, not an
// error.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	h := m.hash(key)
	seq := makeProbeSeq(h, m.capacity-1)
	if debug {
		fmt.Printf("get(%v): %s\n", key, seq)
	}

	for n := 0; n < m.capacity; n++ {
		switch m.ctrls[seq.offset] {
		case ctrlFull:
			if s := &m.slots[seq.offset]; s.key == key {
				return s.value, true
			}
		case ctrlEmpty:
			// An empty slot terminates the search: an insert always claims
			// the first reusable slot of its sequence, so no key can live
			// beyond this point. Tombstones do not terminate.
			return value, false
		}
		seq = seq.next()
	}
	return value, false
}

// Delete removes the entry corresponding to the specified key from the map,
// returning the removed value and true if the key was present. Deleting a
// non-existent key returns ok=false and leaves the map unchanged.
func (m *Map[K, V]) Delete(key K) (value V, ok bool) {
	h := m.hash(key)
	seq := makeProbeSeq(h, m.capacity-1)
	if debug {
		fmt.Printf("delete(%v): %s\n", key, seq)
	}

	for n := 0; n < m.capacity; n++ {
		switch m.ctrls[seq.offset] {
		case ctrlFull:
			if s := &m.slots[seq.offset]; s.key == key {
				value = s.value
				// Convert the slot to a tombstone rather than empty: keys
				// that collided here earlier were pushed further along the
				// sequence and must remain reachable. Zero the slot so the
				// table no longer references the key or value.
				*s = Slot[K, V]{}
				m.ctrls[seq.offset] = ctrlDeleted
				m.used--
				m.tombstones++
				m.checkInvariants()
				return value, true
			}
		case ctrlEmpty:
			return value, false
		}
		seq = seq.next()
	}
	return value, false
}

// All calls yield sequentially for each key and value present in the map,
// in unspecified order. If yield returns false, iteration stops.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the arrays so that iteration remains valid if the map is
	// resized during iteration. There is no guarantee mutations made during
	// iteration will be visible.
	ctrls, slots := m.ctrls, m.slots
	for i := range ctrls {
		if ctrls[i] == ctrlFull {
			if !yield(slots[i].key, slots[i].value) {
				return
			}
		}
	}
}

// Clear removes all entries from the map, retaining the current capacity.
func (m *Map[K, V]) Clear() {
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
	}
	var zero Slot[K, V]
	for i := range m.slots {
		m.slots[i] = zero
	}
	m.used, m.tombstones = 0, 0
	m.checkInvariants()
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Cap returns the number of slots in the map's backing array.
func (m *Map[K, V]) Cap() int {
	return m.capacity
}

// IsEmpty reports whether the map contains no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.used == 0
}

// rehash grows the table in response to the load factor check in Put. If
// dropping tombstones alone recovers at least a third of the capacity while
// keeping the pending insert under the maximum load factor, the table is
// rebuilt at its current size; otherwise the capacity doubles.
func (m *Map[K, V]) rehash() {
	newCapacity := 2 * m.capacity
	if m.tombstones >= m.capacity/3 && (m.used+1)*maxLoadDen < m.capacity*maxLoadNum {
		newCapacity = m.capacity
	}
	m.resize(newCapacity)
}

// resize replaces the backing arrays with fresh ones of newCapacity slots,
// re-inserting every live entry under the new modulus and dropping all
// tombstones. The new arrays are fully built before the old ones are
// released, so a failed allocation aborts the process without corrupting
// the table.
func (m *Map[K, V]) resize(newCapacity int) {
	oldCtrls, oldSlots := m.ctrls, m.slots
	oldCapacity := m.capacity

	m.slots = m.allocator.AllocSlots(newCapacity)
	m.ctrls = unsafeConvertSlice[ctrl](m.allocator.AllocControls(newCapacity))
	for i := range m.ctrls {
		m.ctrls[i] = ctrlEmpty
	}
	m.capacity = newCapacity
	m.tombstones = 0

	if debug {
		fmt.Printf("resize: capacity=%d->%d used=%d\n", oldCapacity, newCapacity, m.used)
	}

	for i := range oldCtrls {
		if oldCtrls[i] != ctrlFull {
			continue
		}
		s := &oldSlots[i]
		m.uncheckedPut(m.hash(s.key), s.key, s.value)
	}

	if oldCapacity > 0 {
		m.allocator.FreeSlots(oldSlots)
		m.allocator.FreeControls(unsafeConvertSlice[uint8](oldCtrls))
	}

	m.checkInvariants()
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if m.capacity != len(m.ctrls) || m.capacity != len(m.slots) {
			panic(fmt.Sprintf("invariant failed: capacity %d disagrees with arrays %d/%d",
				m.capacity, len(m.ctrls), len(m.slots)))
		}

		// For every full slot, verify we can retrieve the key using Get.
		// Count the full and deleted slots.
		var used, tombstones int
		for i := range m.ctrls {
			switch m.ctrls[i] {
			case ctrlFull:
				used++
				s := &m.slots[i]
				if _, ok := m.Get(s.key); !ok {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v not found [hash=%016x]\n%s",
						i, s.key, m.hash(s.key), m.debugString()))
				}
			case ctrlDeleted:
				tombstones++
			}
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
		if tombstones != m.tombstones {
			panic(fmt.Sprintf("invariant failed: found %d tombstones, but tombstone count is %d\n%s",
				tombstones, m.tombstones, m.debugString()))
		}
		if (m.used+m.tombstones)*maxLoadDen > m.capacity*maxLoadNum {
			panic(fmt.Sprintf("invariant failed: load %d+%d/%d exceeds maximum\n%s",
				m.used, m.tombstones, m.capacity, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombstones=%d\n", m.capacity, m.used, m.tombstones)
	for i := range m.ctrls {
		switch m.ctrls[i] {
		case ctrlEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case ctrlDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		default:
			s := &m.slots[i]
			fmt.Fprintf(&buf, "  %4d: %v [hash=%016x]\n", i, s.key, m.hash(s.key))
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a probe sequence. The sequence is a
// linear progression of the form
//
//	p(i) := (hash + i) & mask
//
// wrapping around the end of the array back to index 0. The sequence visits
// every slot exactly once after mask+1 steps, which bounds every find loop
// by the capacity of the table.
type probeSeq struct {
	mask   int
	offset int
}

func makeProbeSeq(hash uint64, mask int) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: int(hash) & mask,
	}
}

func (s probeSeq) next() probeSeq {
	s.offset = (s.offset + 1) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d", s.mask, s.offset)
}
