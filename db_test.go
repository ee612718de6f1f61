package morgul

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodgit/morgul/calibration"
	"github.com/bodgit/morgul/geometry"
	"github.com/bodgit/morgul/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	db, err := NewDB(filepath.Join(t.TempDir(), "morgul.db"))
	require.Nil(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func testPedestals(offset float64) *calibration.Pedestals {
	p := &calibration.Pedestals{
		Frames: calibration.DefaultFrames,
		Mask:   make([]bool, geometry.Pixels),
	}
	for _, m := range calibration.Modes {
		p.Maps[m] = make([]float64, geometry.Pixels)
		for i := range p.Maps[m] {
			p.Maps[m][i] = offset + float64(int(m)*100+i%77)
		}
	}
	for i := range p.Mask {
		p.Mask[i] = i%1000 != 0
	}
	return p
}

func TestPedestalStore(t *testing.T) {
	db := testDB(t)

	id, err := db.SavePedestal("run1", testPedestals(0))
	require.Nil(t, err)

	got, p, err := db.LoadPedestal("run1")
	require.Nil(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, testPedestals(0), p)

	// Saving under the same name replaces the contents but keeps the id
	again, err := db.SavePedestal("run1", testPedestals(0.5))
	require.Nil(t, err)
	assert.Equal(t, id, again)

	_, p, err = db.LoadPedestal("run1")
	require.Nil(t, err)
	assert.Equal(t, testPedestals(0.5), p)

	_, err = db.SavePedestal("run0", testPedestals(0))
	require.Nil(t, err)

	list, err := db.Pedestals()
	require.Nil(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run0", list[0].Name)
	assert.Equal(t, "run1", list[1].Name)
	assert.Equal(t, calibration.DefaultFrames, list[1].Frames)
	assert.Equal(t, testPedestals(0).Masked(), list[1].Masked)
	assert.Equal(t, 0, list[1].Written)
}

func TestPedestalNotFound(t *testing.T) {
	_, _, err := testDB(t).LoadPedestal("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCatalog(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()

	id, err := db.SavePedestal("run1", testPedestals(0))
	require.Nil(t, err)

	file := filepath.Join(dir, "data.raw")
	appendFrames(t, file, 3, counting(1))

	w := db.Catalog(&output.Directory{Root: filepath.Join(dir, "out"), Prefix: "frame_"}, id)
	n, err := New(testCorrector(t), w, discard, WithWorkers(2)).Process(context.Background(), []Input{{Path: file}})
	require.Nil(t, err)
	assert.Equal(t, 3, n)

	frames, err := db.Frames(id)
	require.Nil(t, err)
	require.Len(t, frames, 3)
	for i, r := range frames {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, filepath.Join(dir, "out", fmt.Sprintf("frame_%05d.raw", i)), r.Path)
		assert.Len(t, r.CRC, 8)
	}

	list, err := db.Pedestals()
	require.Nil(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Written)

	bad, err := db.Verify(id)
	require.Nil(t, err)
	assert.Empty(t, bad)

	require.Nil(t, ioutil.WriteFile(frames[1].Path, []byte("corrupt"), 0666))
	require.Nil(t, os.Remove(frames[2].Path))

	bad, err = db.Verify(id)
	require.Nil(t, err)
	assert.Equal(t, []string{frames[1].Path, frames[2].Path}, bad)
}

func TestRecordFrameWithoutPedestal(t *testing.T) {
	db := testDB(t)

	require.Nil(t, db.RecordFrame(0, 4, "frame_00004.raw", "DEADBEEF"))
	require.Nil(t, db.RecordFrame(0, 4, "frame_00004.raw", "CAFEF00D"))

	frames, err := db.Frames(0)
	require.Nil(t, err)
	assert.Equal(t, []FrameRecord{{Index: 4, Path: "frame_00004.raw", CRC: "CAFEF00D"}}, frames)
}
