// Package catalog holds the append-only, index-stable sequence of image
// records discovered during a session.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"log"

	"rawviewer/internal/models"
)

// ErrIndexOutOfRange is returned when an index is outside [0, Len()).
var ErrIndexOutOfRange = errors.New("index out of range")

// Catalog is the single source of truth for how many images exist and
// which image sits at each position. It is not safe for concurrent use;
// the viewer confines it to the executor goroutine.
type Catalog struct {
	images []*models.Image
	source models.Source
	logger *log.Logger
}

// New creates an empty catalog reading images through source.
func New(source models.Source, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Catalog{
		source: source,
		logger: logger,
	}
}

// Append registers path as the next image and returns its index. Metadata
// is parsed immediately; pixel data is not loaded.
func (c *Catalog) Append(path string) int {
	index := len(c.images)

	md, err := c.source.Metadata(path)
	if err != nil {
		c.logger.Printf("Warning: %v", err)
		md = nil
	}

	c.images = append(c.images, models.NewImage(index, path, md, c.source))
	return index
}

// Get returns the image at index.
func (c *Catalog) Get(index int) (*models.Image, error) {
	if index < 0 || index >= len(c.images) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(c.images))
	}
	return c.images[index], nil
}

// Len returns the number of images in the catalog.
func (c *Catalog) Len() int {
	return len(c.images)
}

// Images returns the catalog contents in index order. The slice is a copy;
// the records are shared.
func (c *Catalog) Images() []*models.Image {
	out := make([]*models.Image, len(c.images))
	copy(out, c.images)
	return out
}

// Clear empties the catalog. It does not unload pixel buffers: callers
// must clear the window cache first.
func (c *Catalog) Clear() {
	for i := range c.images {
		c.images[i] = nil
	}
	c.images = c.images[:0]
}
