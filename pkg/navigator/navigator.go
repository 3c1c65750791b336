// Package navigator moves the current catalog position and keeps the window
// cache centred on it.
//
// The window always describes the neighbourhood [n-1, n, n+1] of the current
// position n, with empty slots where a neighbour does not exist. A request for
// an adjacent position shifts the window by one slot; any other valid request
// rebuilds it from scratch. Stepping right is performed by reversing the
// window, applying the left-step primitive and reversing back, which is only
// sound while the window has three slots.
package navigator

import (
	"errors"
	"fmt"
	"io"
	"log"

	"rawviewer/internal/models"
	"rawviewer/pkg/cache"
	"rawviewer/pkg/catalog"
)

// NoPosition is the current position before initialisation and after a reset.
const NoPosition = -1

var (
	// ErrNoImage is returned when navigating before the window was initialised.
	ErrNoImage = errors.New("no image selected")

	// ErrEmptyCatalog is returned when initialising with no images.
	ErrEmptyCatalog = errors.New("catalog is empty")
)

// Direction is a single step along the catalog.
type Direction int

const (
	Left  Direction = -1
	Right Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Navigator owns the current position. Like the catalog and window it
// drives, it must only be used from a single goroutine.
type Navigator struct {
	catalog *catalog.Catalog
	window  *cache.Window
	current int
	logger  *log.Logger
}

// New creates a navigator with no current position.
func New(cat *catalog.Catalog, window *cache.Window, logger *log.Logger) *Navigator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Navigator{
		catalog: cat,
		window:  window,
		current: NoPosition,
		logger:  logger,
	}
}

// Current returns the current position, or NoPosition.
func (n *Navigator) Current() int {
	return n.current
}

// CurrentImage returns the record at the current position.
func (n *Navigator) CurrentImage() (*models.Image, bool) {
	if n.current == NoPosition {
		return nil, false
	}
	img, err := n.catalog.Get(n.current)
	if err != nil {
		return nil, false
	}
	return img, true
}

// Init establishes the first window at position 0: an empty slot, image 0
// and image 1 when it exists. If image 0 cannot be loaded nothing changes.
func (n *Navigator) Init() error {
	first, err := n.catalog.Get(0)
	if err != nil {
		return ErrEmptyCatalog
	}
	if err := first.Load(); err != nil {
		return err
	}

	n.clearKeeping(first)
	if err := n.window.PushRight(first); err != nil {
		return err
	}
	if next, err := n.catalog.Get(1); err == nil {
		n.fill(n.window.PushRight, next)
	} else {
		n.window.PopLeft()
	}

	n.current = 0
	n.logger.Printf("init: current=0 window=%s", n.window)
	return nil
}

// Step moves one position in direction d. Stepping past either end of the
// catalog is a no-op.
func (n *Navigator) Step(d Direction) error {
	if n.current == NoPosition {
		return ErrNoImage
	}
	return n.Navigate(n.current + int(d))
}

// Navigate makes target the current position. Adjacent targets shift the
// window; any other target inside the catalog rebuilds it. Targets outside
// the catalog are rejected unless adjacent, in which case they are no-ops.
func (n *Navigator) Navigate(target int) error {
	if n.current == NoPosition {
		return ErrNoImage
	}

	switch delta := target - n.current; {
	case delta == 0:
		return nil
	case delta == int(Left):
		return n.step(Left)
	case delta == int(Right):
		return n.step(Right)
	case target >= 0 && target < n.catalog.Len():
		return n.jump(target)
	default:
		return fmt.Errorf("%w: cannot navigate to %d, catalog has %d images",
			catalog.ErrIndexOutOfRange, target, n.catalog.Len())
	}
}

// Reset unloads the window and forgets the current position.
func (n *Navigator) Reset() {
	n.window.Clear()
	n.current = NoPosition
}

// step shifts the window one slot in direction d.
func (n *Navigator) step(d Direction) error {
	pos := n.current
	target := pos + int(d)
	if target < 0 || target >= n.catalog.Len() {
		return nil
	}

	// The slot on the leading edge must already hold the target. It may not
	// when the catalog grew after the window was padded at its end.
	edge := 0
	if d == Right {
		edge = cache.Capacity - 1
	}
	lead, ok := n.window.Slot(edge).Image()
	if !ok || lead.Index != target {
		n.logger.Printf("step %s: window %s does not lead with %d, rebuilding", d, n.window, target)
		return n.jump(target)
	}
	if err := lead.Load(); err != nil {
		return err
	}

	if d == Right {
		n.window.Reverse()
	}
	n.shiftLeft(pos, d)
	if d == Right {
		n.window.Reverse()
	}

	n.current = target
	n.logger.Printf("step %s: %d -> %d window=%s", d, pos, target, n.window)
	return nil
}

// shiftLeft is the single step primitive. The window is oriented so that
// travel is towards slot 0 and looks like [target, pos, trailing].
func (n *Navigator) shiftLeft(pos int, d Direction) {
	far := pos + 2*int(d)
	if next, err := n.catalog.Get(far); err == nil {
		// Extends the leading edge; the trailing occupant is evicted.
		n.fill(n.window.PushLeft, next)
		return
	}

	// The target is the first or last image: nothing to extend with, so
	// the trailing neighbour falls out of the window.
	if dropped, ok := n.window.PopRight().Image(); ok && !n.window.Contains(dropped) {
		dropped.Unload()
	}
}

// jump rebuilds the window around target. If target cannot be loaded the
// previous window and position are kept.
func (n *Navigator) jump(target int) error {
	img, err := n.catalog.Get(target)
	if err != nil {
		return err
	}
	if target == 0 {
		return n.Init()
	}
	if err := img.Load(); err != nil {
		return err
	}

	from := n.current
	n.clearKeeping(img)

	prev, _ := n.catalog.Get(target - 1)
	n.fill(n.window.PushRight, prev)
	if err := n.window.PushRight(img); err != nil {
		return err
	}
	if next, err := n.catalog.Get(target + 1); err == nil {
		n.fill(n.window.PushRight, next)
	} else {
		n.window.PopLeft()
	}

	n.current = target
	n.logger.Printf("jump: %d -> %d window=%s", from, target, n.window)
	return nil
}

// clearKeeping empties the window, unloading every occupant except keep,
// which the caller has already loaded and is about to re-insert.
func (n *Navigator) clearKeeping(keep *models.Image) {
	for i := 0; i < cache.Capacity; i++ {
		if old, ok := n.window.PopLeft().Image(); ok && old != keep {
			old.Unload()
		}
	}
}

// fill inserts a neighbour. A neighbour that fails to load leaves its slot
// empty; only the target's load result decides whether navigation succeeds.
func (n *Navigator) fill(push func(*models.Image) error, img *models.Image) {
	if err := push(img); err != nil {
		n.logger.Printf("Warning: neighbour not cached: %v", err)
	}
}
