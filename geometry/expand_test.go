package geometry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensions(t *testing.T) {
	assert.Equal(t, 1024, NX)
	assert.Equal(t, 512, NY)
	assert.Equal(t, 1030, ExpandedX)
	assert.Equal(t, 514, ExpandedY)
}

func TestNewExpanded(t *testing.T) {
	m := NewExpanded()
	assert.True(t, m.IsExpanded())
	for _, v := range m.Pix {
		if v != Sentinel {
			t.Fatal("expected every pixel to be masked")
		}
	}
}

func TestExpandWrongSize(t *testing.T) {
	_, err := Expand(&Image{Width: 10, Height: 10, Pix: make([]uint32, 100)})
	assert.Equal(t, ErrSize, err)

	err = ExpandInto(NewCompact(), NewCompact())
	assert.Equal(t, ErrSize, err)
}

func TestExpandTestPattern(t *testing.T) {
	out, err := Expand(TestPattern())
	require.Nil(t, err)

	for y := 0; y < ExpandedY; y++ {
		for x := 0; x < ExpandedX; x++ {
			if v := out.At(x, y); v != 1 {
				t.Fatalf("pixel (%d, %d) is %d, expected 1", x, y, v)
			}
		}
	}
}

func TestExpandInterior(t *testing.T) {
	in := NewCompact()
	for i := range in.Pix {
		in.Pix[i] = uint32(i)
	}

	out, err := Expand(in)
	require.Nil(t, err)

	for tr := 0; tr < tileY; tr++ {
		for tc := 0; tc < tileX; tc++ {
			for r := 1; r < tileHeight-1; r++ {
				for c := 1; c < tileWidth-1; c++ {
					want := in.At(tc*tileWidth+c, tr*tileHeight+r)
					if got := out.At(tc*258+c, tr*258+r); got != want {
						t.Fatalf("tile (%d, %d) pixel (%d, %d): got %d, want %d", tr, tc, r, c, got, want)
					}
				}
			}
		}
	}
}

func TestExpandEdge(t *testing.T) {
	in := NewCompact()
	in.Fill(8)
	in.Set(0, 100, 7)
	in.Set(NX-1, 100, 9)
	in.Set(600, 0, 5)
	in.Set(600, NY-1, 3)

	out, err := Expand(in)
	require.Nil(t, err)

	// Outer edges have no gap so are copied as-is
	assert.Equal(t, uint32(7), out.At(0, 100))
	assert.Equal(t, uint32(9), out.At(ExpandedX-1, 100))
	assert.Equal(t, uint32(5), out.At(600+2*2, 0))
	assert.Equal(t, uint32(3), out.At(600+2*2, ExpandedY-1))
}

func TestExpandSplit(t *testing.T) {
	in := NewCompact()
	in.Fill(0)
	in.Set(255, 10, 7) // right edge of first ASIC
	in.Set(256, 10, 6) // left edge of second ASIC
	in.Set(40, 256, 9) // top edge of bottom row of ASICs

	out, err := Expand(in)
	require.Nil(t, err)

	assert.Equal(t, uint32(4), out.At(255, 10))
	assert.Equal(t, uint32(3), out.At(256, 10))
	assert.Equal(t, uint32(3), out.At(257, 10))
	assert.Equal(t, uint32(3), out.At(258, 10))

	assert.Equal(t, uint32(5), out.At(40, 258))
	assert.Equal(t, uint32(4), out.At(40, 257))
}

func TestExpandCorner(t *testing.T) {
	in := NewCompact()
	in.Fill(0)
	in.Set(511, 255, 103)

	out, err := Expand(in)
	require.Nil(t, err)

	// Column split first, 52 stays and 51 moves into the gap, then each
	// half is split between rows
	assert.Equal(t, uint32(26), out.At(513, 255))
	assert.Equal(t, uint32(26), out.At(513, 256))
	assert.Equal(t, uint32(26), out.At(514, 255))
	assert.Equal(t, uint32(25), out.At(514, 256))
}

func TestExpandMaskedBoundary(t *testing.T) {
	in := NewCompact()
	in.Fill(2)
	in.Set(767, 255, Sentinel)
	in.Set(768, 300, Sentinel)

	out, err := Expand(in)
	require.Nil(t, err)

	for _, p := range [][2]int{{771, 255}, {771, 256}, {772, 255}, {772, 256}, {774, 302}, {773, 302}} {
		assert.Equal(t, Sentinel, out.At(p[0], p[1]), "pixel %v", p)
	}
}

func TestExpandConservesCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	in := NewCompact()
	for i := range in.Pix {
		in.Pix[i] = uint32(rng.Intn(1 << 20))
	}

	out, err := Expand(in)
	require.Nil(t, err)

	var before, after uint64
	for _, v := range in.Pix {
		before += uint64(v)
	}
	for _, v := range out.Pix {
		require.NotEqual(t, Sentinel, v)
		after += uint64(v)
	}
	assert.Equal(t, before, after)

	// Check each double-sized pixel's fragments individually too
	for y := 0; y < NY; y++ {
		for x := 0; x < NX; x++ {
			row, col := rows[y], columns[x]
			if row.outer < 0 && col.outer < 0 {
				continue
			}
			var sum uint32
			for _, oy := range []int{row.inner, row.outer} {
				for _, ox := range []int{col.inner, col.outer} {
					if oy >= 0 && ox >= 0 {
						sum += out.At(ox, oy)
					}
				}
			}
			require.Equal(t, in.At(x, y), sum, "pixel (%d, %d)", x, y)
		}
	}
}

func TestGapsMaskedWithoutBoundaryData(t *testing.T) {
	// Masking every boundary pixel leaves the gaps masked
	in := NewCompact()
	in.Fill(1)
	for y := 0; y < NY; y++ {
		for x := 0; x < NX; x++ {
			if rows[y].outer >= 0 || columns[x].outer >= 0 {
				in.Set(x, y, Sentinel)
			}
		}
	}

	out, err := Expand(in)
	require.Nil(t, err)

	for y := 0; y < ExpandedY; y++ {
		for _, x := range []int{256, 257, 514, 515, 772, 773} {
			require.Equal(t, Sentinel, out.At(x, y))
		}
	}
	for x := 0; x < ExpandedX; x++ {
		for _, y := range []int{256, 257} {
			require.Equal(t, Sentinel, out.At(x, y))
		}
	}
}
