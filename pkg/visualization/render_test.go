package visualization

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestAutoBounds verifies the range covers every pixel, including on views
func TestAutoBounds(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		5, -2, 7,
		1, 0, 3,
		100, 100, 100,
	})
	lo, hi := AutoBounds(m)
	if lo != -2 || hi != 100 {
		t.Errorf("Expected bounds [-2, 100], got [%v, %v]", lo, hi)
	}

	view := m.Slice(0, 2, 0, 3).(*mat.Dense)
	lo, hi = AutoBounds(view)
	if lo != -2 || hi != 7 {
		t.Errorf("Expected view bounds [-2, 7], got [%v, %v]", lo, hi)
	}
}

func TestToGray16(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		0, 50, 100,
		-10, 200, 25,
	})
	img, err := ToGray16(m, 0, 100)
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 3 || bounds.Dy() != 2 {
		t.Errorf("Expected 3x2 image, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	cases := []struct {
		x, y int
		want uint16
	}{
		{0, 0, 0},
		{1, 0, 32767},
		{2, 0, 65535},
		{0, 1, 0},     // clamped below
		{1, 1, 65535}, // clamped above
	}
	for _, c := range cases {
		if got := img.Gray16At(c.x, c.y).Y; got != c.want {
			t.Errorf("Pixel (%d,%d): expected %d, got %d", c.x, c.y, c.want, got)
		}
	}

	flat, err := ToGray16(m, 5, 5)
	if err != nil {
		t.Fatalf("Failed to render degenerate range: %v", err)
	}
	if flat.Gray16At(2, 0).Y != 0 {
		t.Errorf("Expected black for a degenerate range, got %d", flat.Gray16At(2, 0).Y)
	}

	if _, err := ToGray16(m, 10, 0); err == nil {
		t.Error("Expected error for inverted range")
	}
	if _, err := ToGray16(&mat.Dense{}, 0, 1); err == nil {
		t.Error("Expected error for empty image")
	}
}

// TestSaveSnapshot verifies that snapshots can be saved to disk
func TestSaveSnapshot(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir, err := os.MkdirTemp("", "snapshot-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	data := make([]float64, 8*6)
	for i := range data {
		data[i] = float64(i)
	}
	m := mat.NewDense(6, 8, data)

	outputDir := filepath.Join(tempDir, "snapshots")
	filename, err := SaveSnapshot(m, outputDir, "/data/frame_007.tif")
	if err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	if filename != filepath.Join(outputDir, "frame_007.jpg") {
		t.Errorf("Unexpected snapshot path %s", filename)
	}

	file, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Saved file does not exist: %v", err)
	}
	defer file.Close()

	cfg, err := jpeg.DecodeConfig(file)
	if err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 6 {
		t.Errorf("Expected 8x6 snapshot, got %dx%d", cfg.Width, cfg.Height)
	}
}

// failingCloser accepts writes but fails to close, like a full disk on flush
type failingCloser struct {
	bytes.Buffer
	err error
}

func (f *failingCloser) Close() error {
	return f.err
}

// TestWriteJPEGReportsCloseError verifies a failed close is not reported as success
func TestWriteJPEGReportsCloseError(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 4, 4))

	closeErr := errors.New("no space left on device")
	w := &failingCloser{err: closeErr}
	if err := writeJPEG(w, img); !errors.Is(err, closeErr) {
		t.Errorf("Expected close error, got %v", err)
	}
	if w.Len() == 0 {
		t.Error("Expected encoded data before close")
	}

	ok := &failingCloser{}
	if err := writeJPEG(ok, img); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}
