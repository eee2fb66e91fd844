package core

import (
	"hash/fnv"
	"strconv"
)

// StableHash returns the 32-bit FNV-1a hash of s encoded in base 36.
// The same input always yields the same output across processes and releases,
// which is what group ids and row ids rely on.
func StableHash(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}
