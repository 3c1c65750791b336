// Package cache implements the fixed three-slot window of resident images
// that surrounds the currently displayed catalog position.
//
// The window is a double-ended buffer of exactly Capacity slots. Pushing a
// record onto one end evicts the occupant of the other end and unloads its
// pixel buffer; popping an end hands the occupant to the caller without
// unloading it and pads that end with an empty slot. The window never holds
// references it does not load, so the set of loaded records attributable to
// it is always the set of occupied slots.
package cache

import (
	"fmt"
	"strings"

	"rawviewer/internal/models"
)

// Capacity is the fixed number of slots in a Window.
const Capacity = 3

// Slot is either Occupied by an image record or Empty.
type Slot struct {
	img *models.Image
}

// Empty returns an unoccupied slot.
func Empty() Slot {
	return Slot{}
}

// Occupied returns a slot holding img. A nil img yields an empty slot.
func Occupied(img *models.Image) Slot {
	return Slot{img: img}
}

// IsEmpty reports whether the slot holds no record.
func (s Slot) IsEmpty() bool {
	return s.img == nil
}

// Image returns the occupant and whether there is one.
func (s Slot) Image() (*models.Image, bool) {
	return s.img, s.img != nil
}

// Index returns the catalog index of the occupant, or -1 for an empty slot.
func (s Slot) Index() int {
	if s.img == nil {
		return -1
	}
	return s.img.Index
}

// Window is the sliding cache. The zero value is an empty window.
type Window struct {
	slots [Capacity]Slot
}

// NewWindow returns a window of empty slots.
func NewWindow() *Window {
	return &Window{}
}

// PushRight evicts the leftmost occupant, shifts the remaining slots left
// and inserts img at the right end, loading it. If loading fails the new
// right slot is left empty and the load error is returned.
func (w *Window) PushRight(img *models.Image) error {
	evicted := w.slots[0]
	copy(w.slots[:], w.slots[1:])
	w.slots[Capacity-1] = Empty()
	w.release(evicted, img)

	return w.insert(Capacity-1, img)
}

// PushLeft evicts the rightmost occupant, shifts the remaining slots right
// and inserts img at the left end, loading it.
func (w *Window) PushLeft(img *models.Image) error {
	evicted := w.slots[Capacity-1]
	copy(w.slots[1:], w.slots[:Capacity-1])
	w.slots[0] = Empty()
	w.release(evicted, img)

	return w.insert(0, img)
}

// PopRight removes the rightmost slot and pads the left end with an empty
// slot. The returned occupant is not unloaded.
func (w *Window) PopRight() Slot {
	popped := w.slots[Capacity-1]
	copy(w.slots[1:], w.slots[:Capacity-1])
	w.slots[0] = Empty()
	return popped
}

// PopLeft removes the leftmost slot and pads the right end with an empty
// slot. The returned occupant is not unloaded.
func (w *Window) PopLeft() Slot {
	popped := w.slots[0]
	copy(w.slots[:], w.slots[1:])
	w.slots[Capacity-1] = Empty()
	return popped
}

// Reverse reverses slot order in place.
func (w *Window) Reverse() {
	for i, j := 0, Capacity-1; i < j; i, j = i+1, j-1 {
		w.slots[i], w.slots[j] = w.slots[j], w.slots[i]
	}
}

// Clear unloads every occupant and empties all slots.
func (w *Window) Clear() {
	for i, s := range w.slots {
		w.slots[i] = Empty()
		if img, ok := s.Image(); ok {
			img.Unload()
		}
	}
}

// Slot returns the slot at position i, counted from the left.
func (w *Window) Slot(i int) Slot {
	return w.slots[i]
}

// Slots returns a copy of all slots, left to right.
func (w *Window) Slots() [Capacity]Slot {
	return w.slots
}

// Len is always Capacity.
func (w *Window) Len() int {
	return len(w.slots)
}

// Indices returns the catalog index of each slot, -1 for empty slots.
func (w *Window) Indices() [Capacity]int {
	var out [Capacity]int
	for i, s := range w.slots {
		out[i] = s.Index()
	}
	return out
}

// Contains reports whether img occupies any slot.
func (w *Window) Contains(img *models.Image) bool {
	for _, s := range w.slots {
		if s.img == img && img != nil {
			return true
		}
	}
	return false
}

func (w *Window) String() string {
	parts := make([]string, Capacity)
	for i, idx := range w.Indices() {
		parts[i] = fmt.Sprint(idx)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (w *Window) insert(pos int, img *models.Image) error {
	if img == nil {
		return nil
	}
	if err := img.Load(); err != nil {
		return err
	}
	w.slots[pos] = Occupied(img)
	return nil
}

// release unloads an evicted occupant unless it still occupies another slot
// or is the record about to be inserted.
func (w *Window) release(s Slot, incoming *models.Image) {
	img, ok := s.Image()
	if !ok || img == incoming || w.Contains(img) {
		return
	}
	img.Unload()
}
