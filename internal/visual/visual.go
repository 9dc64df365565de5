// Package visual compares screenshots against stored baselines. A missing
// baseline is written from the first screenshot; update mode rewrites all of
// them.
package visual

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/orisano/pixelmatch"
	"github.com/sirupsen/logrus"

	"github.com/todoqa/todo-e2e/internal/logging"
)

var (
	ErrMismatch     = errors.New("visual: screenshot differs from baseline")
	ErrSizeMismatch = fmt.Errorf("%w: image sizes differ", ErrMismatch)
	ErrUnstable     = errors.New("visual: screenshot did not stabilise")
)

// DefaultThreshold is the per-pixel color distance tolerance in [0, 1].
const DefaultThreshold = 0.2

// Options tunes one comparison. When both limits are zero any differing
// pixel fails the match.
type Options struct {
	MaxDiffPixelRatio float64
	MaxDiffPixels     int
	Threshold         float64
}

type Result struct {
	Baseline    string
	Actual      string
	DiffImage   string
	Created     bool
	Updated     bool
	DiffPixels  int
	TotalPixels int
	Ratio       float64
}

// Comparator resolves baselines as dir/testFile/project/name.png and
// writes failure evidence under outputDir.
type Comparator struct {
	dir       string
	outputDir string
	project   string
	update    bool
	log       *logrus.Entry
}

func NewComparator(dir, outputDir, project string, update bool, log logrus.FieldLogger) *Comparator {
	return &Comparator{
		dir:       dir,
		outputDir: outputDir,
		project:   project,
		update:    update,
		log:       logging.Component(log, "visual"),
	}
}

// Path is the baseline location of name for testFile.
func (c *Comparator) Path(testFile, name string) string {
	return filepath.Join(c.dir, testFile, c.project, withExt(name))
}

func withExt(name string) string {
	if filepath.Ext(name) == "" {
		return name + ".png"
	}
	return name
}

// Match compares a PNG screenshot with its baseline.
func (c *Comparator) Match(testFile, name string, actual []byte, opts Options) (*Result, error) {
	res := &Result{Baseline: c.Path(testFile, name)}

	_, statErr := os.Stat(res.Baseline)
	if c.update || errors.Is(statErr, os.ErrNotExist) {
		if err := writeFile(res.Baseline, actual); err != nil {
			return nil, err
		}
		res.Created = statErr != nil
		res.Updated = statErr == nil
		c.log.WithFields(logrus.Fields{"baseline": res.Baseline, "created": res.Created}).Info("baseline written")
		return res, nil
	}

	want, err := readPNG(res.Baseline)
	if err != nil {
		return nil, err
	}
	got, err := png.Decode(bytes.NewReader(actual))
	if err != nil {
		return nil, fmt.Errorf("visual: decode screenshot %s: %w", name, err)
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	count, diff, err := Diff(want, got, threshold)
	if err != nil {
		res.Actual, _ = c.evidence(testFile, name, "actual", actual)
		return res, fmt.Errorf("%s: %w", name, err)
	}

	bounds := want.Bounds()
	res.DiffPixels = count
	res.TotalPixels = bounds.Dx() * bounds.Dy()
	if res.TotalPixels > 0 {
		res.Ratio = float64(count) / float64(res.TotalPixels)
	}

	if withinLimits(res, opts) {
		return res, nil
	}

	res.Actual, _ = c.evidence(testFile, name, "actual", actual)
	var buf bytes.Buffer
	if diff != nil && png.Encode(&buf, diff) == nil {
		res.DiffImage, _ = c.evidence(testFile, name, "diff", buf.Bytes())
	}
	return res, fmt.Errorf("%w: %s has %d differing pixels (ratio %.4f, allowed %.4f)",
		ErrMismatch, name, res.DiffPixels, res.Ratio, opts.MaxDiffPixelRatio)
}

func withinLimits(res *Result, opts Options) bool {
	if opts.MaxDiffPixels == 0 && opts.MaxDiffPixelRatio == 0 {
		return res.DiffPixels == 0
	}
	if opts.MaxDiffPixels > 0 && res.DiffPixels > opts.MaxDiffPixels {
		return false
	}
	if opts.MaxDiffPixelRatio > 0 && res.Ratio > opts.MaxDiffPixelRatio {
		return false
	}
	return true
}

// evidence writes outputDir/testFile/project/name-kind.png.
func (c *Comparator) evidence(testFile, name, kind string, data []byte) (string, error) {
	base := strings.TrimSuffix(withExt(name), ".png")
	path := filepath.Join(c.outputDir, "visual", testFile, c.project, base+"-"+kind+".png")
	if err := writeFile(path, data); err != nil {
		c.log.WithError(err).Warn("could not write visual evidence")
		return "", err
	}
	return path, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("visual: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("visual: write %s: %w", path, err)
	}
	return nil
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("visual: open baseline: %w", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("visual: decode baseline %s: %w", path, err)
	}
	return img, nil
}

// Diff counts pixels whose perceptual color distance exceeds threshold,
// ignoring anti-aliasing, and returns a diff image marking them over a faded
// copy of a.
func Diff(a, b image.Image, threshold float64) (int, image.Image, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, nil, fmt.Errorf("%w: baseline %dx%d, actual %dx%d", ErrSizeMismatch, ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}

	var out image.Image
	count, err := pixelmatch.MatchPixel(a, b, pixelmatch.Threshold(threshold), pixelmatch.WriteTo(&out))
	if err != nil {
		return 0, nil, fmt.Errorf("visual: compare: %w", err)
	}
	return count, out, nil
}

// Stable takes screenshots until two consecutive ones are identical, up to
// attempts shots, and returns the last one.
func Stable(shoot func() ([]byte, error), attempts int) ([]byte, error) {
	if attempts < 2 {
		attempts = 2
	}
	prev, err := shoot()
	if err != nil {
		return nil, err
	}
	for i := 1; i < attempts; i++ {
		cur, err := shoot()
		if err != nil {
			return nil, err
		}
		if bytes.Equal(prev, cur) {
			return cur, nil
		}
		prev = cur
	}
	return prev, ErrUnstable
}
