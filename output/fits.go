package output

import (
	"io"

	"github.com/astrogo/fitsio"
	"github.com/bodgit/morgul/geometry"
)

const bzero = 1 << 31

// Cards returns the header cards describing frame index
func Cards(index int, energy float64) []fitsio.Card {
	cards := []fitsio.Card{
		{Name: "FRAME", Value: index, Comment: "frame index"},
		{Name: "MASKVAL", Value: int64(geometry.Sentinel), Comment: "masked or gap pixel value"},
	}
	if energy > 0 {
		cards = append(cards, fitsio.Card{Name: "ENERGY", Value: energy, Comment: "photon energy [keV]"})
	}
	return cards
}

// EncodeFITS streams m to w as a 32-bit FITS image. FITS has no unsigned
// 32-bit type so values are offset with BZERO.
func EncodeFITS(w io.Writer, m *geometry.Image, metadata ...fitsio.Card) error {
	metadata = append(metadata, fitsio.Card{Name: "BZERO", Value: int64(bzero)}, fitsio.Card{Name: "BSCALE", Value: 1.0})

	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	im := fitsio.NewImage(32, []int{m.Width, m.Height})
	defer im.Close()
	if err := im.Header().Append(metadata...); err != nil {
		return err
	}

	ints := make([]int32, len(m.Pix))
	for i, v := range m.Pix {
		ints[i] = int32(v - bzero)
	}
	if err := im.Write(ints); err != nil {
		return err
	}

	return fits.Write(im)
}
