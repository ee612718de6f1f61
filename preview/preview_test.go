package preview

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/bodgit/morgul/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func testImage() *geometry.Image {
	m := geometry.NewExpanded()
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			m.Set(x, y, 1000)
		}
	}
	m.Set(500, 300, 1<<31+5) // wrapped negative
	return m
}

func TestRender(t *testing.T) {
	pm := Render(testImage(), 0)

	assert.Equal(t, geometry.ExpandedX, pm.Bounds().Dx())
	assert.Equal(t, geometry.ExpandedY, pm.Bounds().Dy())
	assert.True(t, len(pm.Palette) <= maxColors)

	bright := color.Gray16Model.Convert(pm.At(10, 10)).(color.Gray16)
	dark := color.Gray16Model.Convert(pm.At(200, 200)).(color.Gray16)
	wrapped := color.Gray16Model.Convert(pm.At(500, 300)).(color.Gray16)

	assert.True(t, bright.Y > dark.Y)
	assert.Equal(t, dark, wrapped)
}

func TestRenderEmpty(t *testing.T) {
	pm := Render(geometry.NewExpanded(), 0)
	assert.Equal(t, geometry.ExpandedX, pm.Bounds().Dx())
}

func TestEncode(t *testing.T) {
	b := new(bytes.Buffer)
	require.Nil(t, Encode(b, testImage(), PNG))
	m, err := png.Decode(b)
	require.Nil(t, err)
	assert.Equal(t, geometry.ExpandedX, m.Bounds().Dx())

	b.Reset()
	require.Nil(t, Encode(b, testImage(), TIFF))
	m, err = tiff.Decode(bytes.NewReader(b.Bytes()))
	require.Nil(t, err)
	assert.Equal(t, geometry.ExpandedY, m.Bounds().Dy())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("tif")
	require.Nil(t, err)
	assert.Equal(t, TIFF, f)

	_, err = ParseFormat("jpeg")
	assert.NotNil(t, err)
}
