// Package pmap provides a small persistent ordered map. Every write returns
// a new Map and leaves the receiver untouched; values are shared by
// reference between versions, so only the entry table of the written map is
// copied.
package pmap

import (
	"sort"
	"strconv"
	"strings"
)

type entry[V any] struct {
	key   string
	value V
}

// Map is an immutable string-keyed map iterated in natural key order
// (numeric-aware, so "2" sorts before "10" and "3-5" sorts with 3).
// The zero value is an empty map.
type Map[V any] struct {
	entries []entry[V]
}

// New returns an empty map.
func New[V any]() Map[V] {
	return Map[V]{}
}

// Len returns the number of entries.
func (m Map[V]) Len() int {
	return len(m.entries)
}

func (m Map[V]) search(key string) (int, bool) {
	i := sort.Search(len(m.entries), func(i int) bool {
		return !Less(m.entries[i].key, key)
	})
	return i, i < len(m.entries) && m.entries[i].key == key
}

// Get returns the value stored under key.
func (m Map[V]) Get(key string) (V, bool) {
	if i, ok := m.search(key); ok {
		return m.entries[i].value, true
	}
	var zero V
	return zero, false
}

// Has reports whether key is present.
func (m Map[V]) Has(key string) bool {
	_, ok := m.search(key)
	return ok
}

// Set returns a map with key bound to value.
func (m Map[V]) Set(key string, value V) Map[V] {
	i, ok := m.search(key)
	if ok {
		entries := make([]entry[V], len(m.entries))
		copy(entries, m.entries)
		entries[i].value = value
		return Map[V]{entries: entries}
	}
	entries := make([]entry[V], 0, len(m.entries)+1)
	entries = append(entries, m.entries[:i]...)
	entries = append(entries, entry[V]{key: key, value: value})
	entries = append(entries, m.entries[i:]...)
	return Map[V]{entries: entries}
}

// Delete returns a map without key. The receiver is returned unchanged when
// key is absent.
func (m Map[V]) Delete(key string) Map[V] {
	i, ok := m.search(key)
	if !ok {
		return m
	}
	entries := make([]entry[V], 0, len(m.entries)-1)
	entries = append(entries, m.entries[:i]...)
	entries = append(entries, m.entries[i+1:]...)
	return Map[V]{entries: entries}
}

// Keys returns the keys in order.
func (m Map[V]) Keys() []string {
	keys := make([]string, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

// Range calls fn for each entry in order until fn returns false.
func (m Map[V]) Range(fn func(key string, value V) bool) {
	for _, e := range m.entries {
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Less orders keys naturally: keys with a leading integer compare by that
// integer, then by the remainder; other keys compare lexically after all
// numeric keys.
func Less(a, b string) bool {
	an, arest, aok := leadingInt(a)
	bn, brest, bok := leadingInt(b)
	switch {
	case aok && bok:
		if an != bn {
			return an < bn
		}
		return arest < brest
	case aok:
		return true
	case bok:
		return false
	default:
		return a < b
	}
}

func leadingInt(s string) (int, string, bool) {
	end := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if end == 0 {
		return 0, s, false
	}
	if end < 0 {
		end = len(s)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, s, false
	}
	return n, s[end:], true
}
