package models

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// Source provides the storage primitives behind an Image.
type Source interface {
	// Decode reads the pixel array stored at path.
	Decode(path string) (*mat.Dense, error)

	// Metadata reads the sidecar key=value file belonging to path.
	// A missing sidecar is not an error and yields an empty map.
	Metadata(path string) (map[string]string, error)
}

// LoadError reports that the pixel data of an image could not be read
// or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Image represents one detector frame of the catalog
type Image struct {
	// Index is the position of this image in the catalog sequence
	Index int

	// Path is the location of the image file
	Path string

	// Name is the base filename, used for display
	Name string

	// Metadata holds the parsed sidecar entries, empty if there is none
	Metadata map[string]string

	// data is the pixel buffer, nil until loaded
	data *mat.Dense

	source Source
}

// NewImage creates an unloaded image record at the given catalog index.
func NewImage(index int, path string, metadata map[string]string, source Source) *Image {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &Image{
		Index:    index,
		Path:     path,
		Name:     filepath.Base(path),
		Metadata: metadata,
		source:   source,
	}
}

// Load reads the pixel data into memory. It is a no-op when the image is
// already loaded. On failure the buffer stays empty and a *LoadError is
// returned.
func (img *Image) Load() error {
	if img.data != nil {
		return nil
	}
	if img.source == nil {
		return &LoadError{Path: img.Path, Err: fmt.Errorf("no source configured")}
	}

	data, err := img.source.Decode(img.Path)
	if err != nil {
		return &LoadError{Path: img.Path, Err: err}
	}
	img.data = data
	return nil
}

// Unload releases the pixel buffer.
func (img *Image) Unload() {
	img.data = nil
}

// Loaded reports whether the pixel buffer is resident.
func (img *Image) Loaded() bool {
	return img.data != nil
}

// Data returns the pixel buffer, or nil when the image is not loaded.
// Callers must treat the returned matrix as read-only.
func (img *Image) Data() *mat.Dense {
	return img.data
}

func (img *Image) String() string {
	return fmt.Sprintf("%d:%s", img.Index, img.Name)
}
