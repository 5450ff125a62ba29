package entity

import "bytes"

// Reconstruct replays entity bodies in order to reproduce source text.
// Extract guarantees every byte of the original input is covered by
// exactly one entity, so concatenation reproduces the input byte-for-byte
// whenever no entity body has been edited.
func Reconstruct(el *EntityList) []byte {
	if el == nil || len(el.Entities) == 0 {
		return nil
	}

	var buf bytes.Buffer
	size := 0
	for i := range el.Entities {
		size += len(el.Entities[i].Body)
	}
	buf.Grow(size)

	for i := range el.Entities {
		buf.Write(el.Entities[i].Body)
	}
	return buf.Bytes()
}
