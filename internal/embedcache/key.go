package embedcache

import "hash/fnv"

// CompositeKey computes the stable 32-bit hash the composite cache is
// keyed by.
func CompositeKey(title, description, diff string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(description))
	h.Write([]byte{0})
	h.Write([]byte(diff))
	return h.Sum32()
}
