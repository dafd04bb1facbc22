package entities

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Key returns a hash over the five identity fields of the entry.
// Equal entries always share a key; the converse needs Equal to confirm.
func (r RouteEntry) Key() uint64 {
	var buf [20]byte
	binary.BigEndian.PutUint32(buf[0:4], AddrToUint32(r.Destination))
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.Mask))
	binary.BigEndian.PutUint32(buf[8:12], AddrToUint32(r.Gateway))
	binary.BigEndian.PutUint32(buf[12:16], r.Interface)
	binary.BigEndian.PutUint32(buf[16:20], r.Metric)

	return xxhash.Sum64(buf[:])
}

// KeySet counts entries per hash so duplicate checks can skip the linear scan
type KeySet struct {
	counts map[uint64]int
}

// NewKeySet creates an empty KeySet
func NewKeySet() *KeySet {
	return &KeySet{
		counts: make(map[uint64]int),
	}
}

// Add records one entry with the given key
func (ks *KeySet) Add(key uint64) {
	ks.counts[key]++
}

// Remove drops one entry with the given key
func (ks *KeySet) Remove(key uint64) {
	if n := ks.counts[key]; n > 1 {
		ks.counts[key] = n - 1
		return
	}
	delete(ks.counts, key)
}

// MayContain is false when no entry with the key was recorded
func (ks *KeySet) MayContain(key uint64) bool {
	return ks.counts[key] > 0
}

// Size returns the number of distinct keys
func (ks *KeySet) Size() int {
	return len(ks.counts)
}

// Clear forgets every key
func (ks *KeySet) Clear() {
	ks.counts = make(map[uint64]int)
}
