package container

import (
	"encoding/binary"
	"hash/fnv"
	"hash/maphash"
	"io"
)

// Integer is the set of key types IntegerHasher accepts.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// StringHasher is the 32-bit FNV-1a hash of s.
func StringHasher(s string) uint32 {
	h := fnv.New32a()
	_, _ = io.WriteString(h, s)
	return h.Sum32()
}

// IntegerHasher is the 32-bit FNV-1a hash of the little-endian bytes of v.
func IntegerHasher[I Integer](v I) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	h := fnv.New32a()
	_, _ = h.Write(b[:])
	return h.Sum32()
}

var comparableSeed = maphash.MakeSeed()

// comparableHasher covers key types without a dedicated hasher.
func comparableHasher[K comparable](k K) uint32 {
	return uint32(maphash.Comparable(comparableSeed, k))
}
