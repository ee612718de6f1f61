package geometry

// target maps a compact row or column index to the physical one. Pixels either
// side of an inner ASIC boundary also own the gap pixel beside them.
type target struct {
	inner int
	outer int // -1 unless the pixel is double-sized
}

func makeTargets(size, tiles int) []target {
	t := make([]target, size*tiles)
	for i := range t {
		n, l := i/size, i%size
		inner := n*(size+gap) + l
		outer := -1
		switch {
		case l == size-1 && n < tiles-1:
			outer = inner + 1
		case l == 0 && n > 0:
			outer = inner - 1
		}
		t[i] = target{inner, outer}
	}
	return t
}

var (
	columns = makeTargets(tileWidth, tileX)
	rows    = makeTargets(tileHeight, tileY)
)

// split halves v between the pixel itself and the gap pixel, the pixel keeps
// any odd count so the two always sum to v. Masked pixels stay masked.
func split(v uint32) (uint32, uint32) {
	if v == Sentinel {
		return v, v
	}
	return v - v>>1, v >> 1
}

func put(dst *Image, row target, x int, v uint32) {
	if row.outer < 0 {
		dst.Pix[row.inner*ExpandedX+x] = v
		return
	}
	inner, outer := split(v)
	dst.Pix[row.inner*ExpandedX+x] = inner
	dst.Pix[row.outer*ExpandedX+x] = outer
}

// ExpandInto expands the compact image src into dst, which must be the size of
// the physical grid. Corner pixels are split between columns first and each
// half then split between rows, so they end up spread over four pixels.
func ExpandInto(dst, src *Image) error {
	if !src.IsCompact() || !dst.IsExpanded() {
		return ErrSize
	}

	dst.Fill(Sentinel)

	for y := 0; y < NY; y++ {
		row := rows[y]
		for x := 0; x < NX; x++ {
			col := columns[x]
			v := src.Pix[y*NX+x]
			if col.outer < 0 {
				put(dst, row, col.inner, v)
				continue
			}
			inner, outer := split(v)
			put(dst, row, col.inner, inner)
			put(dst, row, col.outer, outer)
		}
	}

	return nil
}

// Expand returns a new physical image built from the compact image src.
func Expand(src *Image) (*Image, error) {
	dst := NewExpanded()
	if err := ExpandInto(dst, src); err != nil {
		return nil, err
	}
	return dst, nil
}

// TestPattern returns a compact image of ones where the double-sized pixels
// along each inner ASIC boundary hold two, or four where two boundaries meet.
// Expanded, it should be ones everywhere.
func TestPattern() *Image {
	m := NewCompact()
	m.Fill(1)

	for x := 0; x < NX; x++ {
		for _, y := range []int{tileHeight - 1, tileHeight} {
			m.Pix[y*NX+x] *= 2
		}
	}

	for y := 0; y < NY; y++ {
		for n := 1; n < tileX; n++ {
			for _, x := range []int{n*tileWidth - 1, n * tileWidth} {
				m.Pix[y*NX+x] *= 2
			}
		}
	}

	return m
}
