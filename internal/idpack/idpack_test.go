package idpack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graphfed/engine/internal/idpack"
)

func TestWidth(t *testing.T) {
	cases := []struct {
		numVariants int
		want        uint
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{8, 3},
		{9, 4},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, idpack.Width(c.numVariants))
	}
}

func TestPackUnpack_RoundTrips(t *testing.T) {
	width := idpack.Width(4)
	cases := []struct {
		tag uint32
		id  uint32
	}{
		{0, 0},
		{3, 1},
		{1, 1 << 20},
		{2, (1 << 30) - 1},
	}
	for _, c := range cases {
		p := idpack.Pack(width, c.tag, c.id)
		gotTag, gotID := idpack.Unpack(width, p)
		assert.Equal(t, c.tag, gotTag)
		assert.Equal(t, c.id, gotID)
	}
}

func TestPack_TagOverflowPanics(t *testing.T) {
	width := idpack.Width(4)
	assert.Panics(t, func() { idpack.Pack(width, 4, 0) })
}

func TestPack_IDOverflowPanics(t *testing.T) {
	width := idpack.Width(4)
	assert.Panics(t, func() { idpack.Pack(width, 0, 1<<31) })
}

func TestPacked_IsZero(t *testing.T) {
	var zero idpack.Packed
	assert.True(t, zero.IsZero())
	assert.False(t, idpack.Pack(idpack.Width(4), 1, 0).IsZero())
}
