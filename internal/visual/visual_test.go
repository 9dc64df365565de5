package visual

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// canvas is a w x h white PNG with the first n pixels of the top rows
// painted c.
func canvas(t *testing.T, w, h, n int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	for i := 0; i < n; i++ {
		img.Set(i%w, i/w, c)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newComparator(t *testing.T, update bool) (*Comparator, string, string) {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	snaps, out := t.TempDir(), t.TempDir()
	return NewComparator(snaps, out, "chromium", update, log), snaps, out
}

func TestPath(t *testing.T) {
	c, snaps, _ := newComparator(t, false)
	assert.Equal(t, filepath.Join(snaps, "visual_test.go", "chromium", "homepage-full.png"), c.Path("visual_test.go", "homepage-full"))
	assert.Equal(t, filepath.Join(snaps, "visual_test.go", "chromium", "todo-list.png"), c.Path("visual_test.go", "todo-list.png"))
}

func TestMatchCreatesMissingBaseline(t *testing.T) {
	c, _, _ := newComparator(t, false)
	shot := canvas(t, 10, 10, 0, color.Black)

	res, err := c.Match("visual_test.go", "todo-list", shot, Options{MaxDiffPixelRatio: 0.01})
	require.NoError(t, err)
	assert.True(t, res.Created)

	stored, err := os.ReadFile(res.Baseline)
	require.NoError(t, err)
	assert.Equal(t, shot, stored)

	res, err = c.Match("visual_test.go", "todo-list", shot, Options{MaxDiffPixelRatio: 0.01})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Zero(t, res.DiffPixels)
	assert.Equal(t, 100, res.TotalPixels)
}

func TestMatchRatio(t *testing.T) {
	c, _, out := newComparator(t, false)
	base := canvas(t, 10, 10, 0, color.Black)
	_, err := c.Match("v", "item", base, Options{})
	require.NoError(t, err)

	t.Run("small difference within ratio", func(t *testing.T) {
		res, err := c.Match("v", "item", canvas(t, 10, 10, 2, color.Black), Options{MaxDiffPixelRatio: 0.02})
		require.NoError(t, err)
		assert.Equal(t, 2, res.DiffPixels)
		assert.InDelta(t, 0.02, res.Ratio, 1e-9)
	})

	t.Run("zero limits reject any difference", func(t *testing.T) {
		_, err := c.Match("v", "item", canvas(t, 10, 10, 1, color.Black), Options{})
		assert.ErrorIs(t, err, ErrMismatch)
	})

	t.Run("pixel cap", func(t *testing.T) {
		_, err := c.Match("v", "item", canvas(t, 10, 10, 4, color.Black), Options{MaxDiffPixels: 3, MaxDiffPixelRatio: 0.5})
		assert.ErrorIs(t, err, ErrMismatch)
	})

	t.Run("large difference writes evidence", func(t *testing.T) {
		res, err := c.Match("v", "item", canvas(t, 10, 10, 30, color.Black), Options{MaxDiffPixelRatio: 0.02})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMismatch)
		assert.Equal(t, 30, res.DiffPixels)
		assert.FileExists(t, res.Actual)
		assert.FileExists(t, res.DiffImage)
		assert.Equal(t, filepath.Join(out, "visual", "v", "chromium", "item-diff.png"), res.DiffImage)
	})

	t.Run("colors under the threshold are equal", func(t *testing.T) {
		nearWhite := color.RGBA{R: 250, G: 250, B: 250, A: 255}
		res, err := c.Match("v", "item", canvas(t, 10, 10, 50, nearWhite), Options{})
		require.NoError(t, err)
		assert.Zero(t, res.DiffPixels)
	})
}

func TestMatchSizeMismatch(t *testing.T) {
	c, _, _ := newComparator(t, false)
	_, err := c.Match("v", "page", canvas(t, 10, 10, 0, color.Black), Options{})
	require.NoError(t, err)

	res, err := c.Match("v", "page", canvas(t, 12, 10, 0, color.Black), Options{MaxDiffPixelRatio: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.ErrorIs(t, err, ErrMismatch)
	assert.FileExists(t, res.Actual)
}

func TestMatchUpdateMode(t *testing.T) {
	c, snaps, out := newComparator(t, false)
	_, err := c.Match("v", "form", canvas(t, 10, 10, 0, color.Black), Options{})
	require.NoError(t, err)

	log, _ := logtest.NewNullLogger()
	updater := NewComparator(snaps, out, "chromium", true, log)
	changed := canvas(t, 10, 10, 60, color.Black)
	res, err := updater.Match("v", "form", changed, Options{})
	require.NoError(t, err)
	assert.True(t, res.Updated)

	_, err = c.Match("v", "form", changed, Options{})
	assert.NoError(t, err)
}

func TestMatchRejectsGarbage(t *testing.T) {
	c, _, _ := newComparator(t, false)
	_, err := c.Match("v", "x", canvas(t, 2, 2, 0, color.Black), Options{})
	require.NoError(t, err)
	_, err = c.Match("v", "x", []byte("not a png"), Options{})
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	decode := func(data []byte) image.Image {
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		return img
	}
	base := decode(canvas(t, 8, 8, 0, color.Black))

	n, _, err := Diff(base, base, DefaultThreshold)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, out, err := Diff(base, decode(canvas(t, 8, 8, 3, color.Black)), DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NotNil(t, out)
	assert.Equal(t, base.Bounds().Size(), out.Bounds().Size())

	_, _, err = Diff(base, decode(canvas(t, 4, 8, 0, color.Black)), DefaultThreshold)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestStable(t *testing.T) {
	shots := [][]byte{{1}, {2}, {2}}
	i := 0
	got, err := Stable(func() ([]byte, error) {
		s := shots[i]
		i++
		return s, nil
	}, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, got)
	assert.Equal(t, 3, i)

	n := 0
	_, err = Stable(func() ([]byte, error) {
		n++
		return []byte{byte(n)}, nil
	}, 3)
	assert.ErrorIs(t, err, ErrUnstable)
	assert.Equal(t, 3, n)
}
