package asyncdb

// UpperBound returns the first key that does not start with prefix, for use
// as an exclusive iterator upper bound.
//
// It increments the last byte of the prefix that is not 0xFF and drops
// everything after it. For example [0x01, 0x02, 0xFF] becomes [0x01, 0x03].
// If every byte is 0xFF, or the prefix is empty, there is no such key and the
// result is nil, meaning unbounded.
func UpperBound(prefix []byte) (limit []byte) {
	for i := len(prefix) - 1; i >= 0; i-- {
		c := prefix[i]
		if c == 0xFF {
			continue
		}
		limit = make([]byte, i+1)
		copy(limit, prefix)
		limit[i] = c + 1
		break
	}
	return limit
}
