// Package idpack bit-packs small id unions into a single NonZero integer.
//
// Several hot arrays in the planner (resolver choices, providable fields,
// requirement edges) need to store one of several id kinds in a single slot.
// Rather than carry a discriminated union struct (16 bytes with padding),
// we pack the variant tag into the low bits and the id into the high bits,
// following the bit-packed id union design called out for this engine.
package idpack

import "fmt"

// Packed is a tagged id: a small variant tag in the low bits, the id value
// in the high bits. The zero value is invalid (tag 0, id 0 is reserved).
type Packed uint32

// Width returns the number of low bits needed to distinguish numVariants
// distinct tags (0 and numVariants-1 inclusive).
func Width(numVariants int) uint {
	w := uint(0)
	for (1 << w) < numVariants {
		w++
	}
	if w == 0 {
		w = 1
	}
	return w
}

// Pack encodes tag (< 1<<width) and id (< 1<<(32-width)) into a Packed value.
func Pack(width uint, tag uint32, id uint32) Packed {
	mask := uint32(1)<<width - 1
	if tag > mask {
		panic(fmt.Sprintf("idpack: tag %d does not fit in %d bits", tag, width))
	}
	if id > (^uint32(0) >> width) {
		panic(fmt.Sprintf("idpack: id %d does not fit in %d bits", id, 32-width))
	}
	return Packed(tag | (id << width))
}

// Unpack recovers the (tag, id) pair from a Packed value given the same
// width used to pack it.
func Unpack(width uint, p Packed) (tag uint32, id uint32) {
	mask := uint32(1)<<width - 1
	v := uint32(p)
	return v & mask, v >> width
}

// IsZero reports whether p is the reserved zero value.
func (p Packed) IsZero() bool { return p == 0 }
