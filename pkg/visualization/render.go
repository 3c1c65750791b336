// Package visualization turns decoded pixel buffers back into images that
// can be written to disk.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// AutoBounds returns the minimum and maximum pixel values of m.
func AutoBounds(m *mat.Dense) (lo, hi float64) {
	if m == nil || m.IsEmpty() {
		return 0, 0
	}
	rows, _ := m.Dims()
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		lo = math.Min(lo, floats.Min(row))
		hi = math.Max(hi, floats.Max(row))
	}
	return lo, hi
}

// ToGray16 maps pixel values in [lo, hi] linearly onto the 16-bit range.
// Values outside the range are clamped. A degenerate range renders black.
func ToGray16(m *mat.Dense, lo, hi float64) (*image.Gray16, error) {
	if m == nil || m.IsEmpty() {
		return nil, fmt.Errorf("cannot render an empty image")
	}
	if hi < lo {
		return nil, fmt.Errorf("invalid display range [%g, %g]", lo, hi)
	}

	rows, cols := m.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	span := hi - lo
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			var value uint16
			if span > 0 {
				scaled := (m.At(y, x) - lo) / span
				value = uint16(math.Max(0, math.Min(65535, scaled*65535)))
			}
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// SaveJPEG saves img as a JPEG image
func SaveJPEG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	return writeJPEG(file, img)
}

// writeJPEG encodes img to w and closes it. A failed close is reported
// since the data may not have reached storage.
func writeJPEG(w io.WriteCloser, img image.Image) error {
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: 90}); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// SaveSnapshot renders m with its own value range and writes it to dir as
// <name>.jpg, returning the file path.
func SaveSnapshot(m *mat.Dense, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %v", err)
	}

	lo, hi := AutoBounds(m)
	img, err := ToGray16(m, lo, hi)
	if err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	filename := filepath.Join(dir, base+".jpg")
	if err := SaveJPEG(img, filename); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %v", err)
	}
	return filename, nil
}
