// Package imageio reads detector frames and their sidecar metadata from disk.
// Frames are decoded into gonum matrices holding raw 16-bit intensities.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	_ "golang.org/x/image/tiff"
	"gonum.org/v1/gonum/mat"
)

// MetadataSuffix is appended to an image path to locate its sidecar file.
const MetadataSuffix = ".metadata"

// FileSource implements models.Source on top of the local filesystem.
type FileSource struct{}

// NewFileSource returns a filesystem-backed source.
func NewFileSource() *FileSource {
	return &FileSource{}
}

// Decode loads the image at path and converts it to a rows x cols matrix
// of raw intensity values.
func (s *FileSource) Decode(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}

	return ImageToDense(img)
}

// Metadata reads the sidecar file of path. A missing sidecar yields an
// empty map and no error.
func (s *FileSource) Metadata(path string) (map[string]string, error) {
	file, err := os.Open(path + MetadataSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("error reading metadata for %s: %w", path, err)
	}
	defer file.Close()

	return ParseMetadata(file)
}

// ParseMetadata parses key=value lines. Blank lines, section headers
// ("[...]") and comment lines starting with '#' or ';' are skipped, as are
// lines without '='. Only the first '=' separates key from value.
func ParseMetadata(r io.Reader) (map[string]string, error) {
	md := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '[' || line[0] == '#' || line[0] == ';' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		md[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error parsing metadata: %w", err)
	}

	return md, nil
}

// ImageToDense converts an image to a matrix of 16-bit gray intensities.
// Gray and Gray16 images are copied without color conversion.
func ImageToDense(img image.Image) (*mat.Dense, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty image %dx%d", width, height)
	}
	data := make([]float64, width*height)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				data[y*width+x] = float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				data[y*width+x] = float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				data[y*width+x] = float64(g.Y)
			}
		}
	}

	return mat.NewDense(height, width, data), nil
}
