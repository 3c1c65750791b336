package cache

import (
	"errors"
	"testing"

	"pgregory.net/rapid"

	"rawviewer/internal/models"
	"rawviewer/internal/testutil"
)

func newImages(t *testing.T, src *testutil.Source, n int) []*models.Image {
	t.Helper()
	images := make([]*models.Image, n)
	for i, p := range testutil.Paths("/data", n) {
		images[i] = models.NewImage(i, p, nil, src)
	}
	return images
}

func expectIndices(t *testing.T, w *Window, want [Capacity]int) {
	t.Helper()
	if got := w.Indices(); got != want {
		t.Errorf("Expected window %v, got %v", want, got)
	}
}

func expectLoaded(t *testing.T, images []*models.Image, want ...int) {
	t.Helper()
	wantSet := make(map[int]bool)
	for _, i := range want {
		wantSet[i] = true
	}
	for _, img := range images {
		if img.Loaded() != wantSet[img.Index] {
			t.Errorf("Expected image %d loaded=%v, got %v", img.Index, wantSet[img.Index], img.Loaded())
		}
	}
}

func TestNewWindowIsEmpty(t *testing.T) {
	w := NewWindow()
	if w.Len() != Capacity {
		t.Fatalf("Expected length %d, got %d", Capacity, w.Len())
	}
	expectIndices(t, w, [Capacity]int{-1, -1, -1})
	if w.String() != "[-1 -1 -1]" {
		t.Errorf("Expected [-1 -1 -1], got %s", w.String())
	}
}

// TestPushRightEvictsLeft verifies that pushing right unloads the leftmost occupant
func TestPushRightEvictsLeft(t *testing.T) {
	src := testutil.NewSource()
	images := newImages(t, src, 4)
	w := NewWindow()

	for _, img := range images[:3] {
		if err := w.PushRight(img); err != nil {
			t.Fatalf("Failed to push image %d: %v", img.Index, err)
		}
	}
	expectIndices(t, w, [Capacity]int{0, 1, 2})
	expectLoaded(t, images, 0, 1, 2)

	if err := w.PushRight(images[3]); err != nil {
		t.Fatalf("Failed to push image 3: %v", err)
	}
	expectIndices(t, w, [Capacity]int{1, 2, 3})
	expectLoaded(t, images, 1, 2, 3)
}

func TestPushLeftEvictsRight(t *testing.T) {
	src := testutil.NewSource()
	images := newImages(t, src, 4)
	w := NewWindow()

	for i := 3; i >= 0; i-- {
		if err := w.PushLeft(images[i]); err != nil {
			t.Fatalf("Failed to push image %d: %v", i, err)
		}
	}
	expectIndices(t, w, [Capacity]int{0, 1, 2})
	expectLoaded(t, images, 0, 1, 2)
}

// TestPopDoesNotUnload verifies that popping hands the occupant over without unloading it
func TestPopDoesNotUnload(t *testing.T) {
	src := testutil.NewSource()
	images := newImages(t, src, 3)
	w := NewWindow()
	for _, img := range images {
		w.PushRight(img)
	}

	right := w.PopRight()
	if right.Index() != 2 {
		t.Errorf("Expected popped index 2, got %d", right.Index())
	}
	expectIndices(t, w, [Capacity]int{-1, 0, 1})

	left := w.PopLeft()
	if left.Index() != -1 {
		t.Errorf("Expected popped empty slot, got %d", left.Index())
	}
	expectIndices(t, w, [Capacity]int{0, 1, -1})

	expectLoaded(t, images, 0, 1, 2)
}

func TestReverse(t *testing.T) {
	src := testutil.NewSource()
	images := newImages(t, src, 2)
	w := NewWindow()
	w.PushRight(images[0])
	w.PushRight(images[1])

	w.Reverse()
	expectIndices(t, w, [Capacity]int{1, 0, -1})
	w.Reverse()
	expectIndices(t, w, [Capacity]int{-1, 0, 1})
}

func TestClearUnloadsOccupants(t *testing.T) {
	src := testutil.NewSource()
	images := newImages(t, src, 3)
	w := NewWindow()
	for _, img := range images {
		w.PushRight(img)
	}

	w.Clear()
	expectIndices(t, w, [Capacity]int{-1, -1, -1})
	expectLoaded(t, images)
}

// TestPushLoadFailureLeavesEmptySlot verifies that an unreadable record never occupies a slot
func TestPushLoadFailureLeavesEmptySlot(t *testing.T) {
	src := testutil.NewSource()
	images := newImages(t, src, 4)
	w := NewWindow()
	for _, img := range images[:3] {
		w.PushRight(img)
	}

	cause := errors.New("bad strip offset")
	src.Fail(images[3].Path, cause)

	err := w.PushRight(images[3])
	var loadErr *models.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected *LoadError, got %v", err)
	}
	expectIndices(t, w, [Capacity]int{1, 2, -1})
	expectLoaded(t, images, 1, 2)
}

// TestReinsertKeepsBuffer verifies that re-pushing an evicted occupant does not re-read storage
func TestReinsertKeepsBuffer(t *testing.T) {
	src := testutil.NewSource()
	images := newImages(t, src, 3)
	w := NewWindow()
	for _, img := range images {
		w.PushRight(img)
	}

	if err := w.PushRight(images[0]); err != nil {
		t.Fatalf("Failed to re-push image 0: %v", err)
	}
	expectIndices(t, w, [Capacity]int{1, 2, 0})
	expectLoaded(t, images, 0, 1, 2)
	if got := src.Decodes(images[0].Path); got != 1 {
		t.Errorf("Expected 1 decode of image 0, got %d", got)
	}
}

// TestWindowInvariants drives random operation sequences and checks that the
// loaded records are exactly the occupied slots.
func TestWindowInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		src := testutil.NewSource()
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		images := make([]*models.Image, n)
		for i, p := range testutil.Paths("/data", n) {
			images[i] = models.NewImage(i, p, nil, src)
		}
		w := NewWindow()

		// Popped records leave the window; the owner of a popped record
		// unloads it, mirroring how the navigator drops a trailing slot.
		ops := rapid.SliceOfN(rapid.IntRange(0, 5), 1, 40).Draw(rt, "ops")
		for _, op := range ops {
			img := images[rapid.IntRange(0, n-1).Draw(rt, "img")]
			switch op {
			case 0:
				w.PushRight(img)
			case 1:
				w.PushLeft(img)
			case 2:
				if p, ok := w.PopRight().Image(); ok && !w.Contains(p) {
					p.Unload()
				}
			case 3:
				if p, ok := w.PopLeft().Image(); ok && !w.Contains(p) {
					p.Unload()
				}
			case 4:
				w.Reverse()
			case 5:
				w.Clear()
			}

			if w.Len() != Capacity {
				rt.Fatalf("window length %d", w.Len())
			}
			loaded := 0
			for _, im := range images {
				if im.Loaded() {
					loaded++
				}
				if im.Loaded() != w.Contains(im) {
					rt.Fatalf("image %d loaded=%v but in window=%v (%s)", im.Index, im.Loaded(), w.Contains(im), w)
				}
			}
			if loaded > Capacity {
				rt.Fatalf("%d buffers loaded", loaded)
			}
		}
	})
}
