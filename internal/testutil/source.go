// Package testutil provides in-memory storage fakes shared by package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Source is an in-memory models.Source. Every decoded frame is a small
// matrix filled with the frame number parsed from the path, so tests can
// tell frames apart by their pixel values.
type Source struct {
	mu       sync.Mutex
	decodes  map[string]int
	failures map[string]error
	metadata map[string]map[string]string

	// Rows and Cols size the decoded matrices; zero means 4x4.
	Rows, Cols int
}

// NewSource returns an empty fake source.
func NewSource() *Source {
	return &Source{
		decodes:  make(map[string]int),
		failures: make(map[string]error),
		metadata: make(map[string]map[string]string),
	}
}

// Paths builds n synthetic frame paths frame_000.tif ... under dir.
func Paths(dir string, n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("frame_%03d.tif", i))
	}
	return paths
}

// Fail makes every subsequent decode of path return err.
func (s *Source) Fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = err
}

// Heal removes an injected failure.
func (s *Source) Heal(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
}

// SetMetadata registers sidecar entries for path.
func (s *Source) SetMetadata(path string, md map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[path] = md
}

// Decodes returns how many times path was read from "storage".
func (s *Source) Decodes(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decodes[path]
}

// TotalDecodes returns the number of reads across all paths.
func (s *Source) TotalDecodes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.decodes {
		total += n
	}
	return total
}

func (s *Source) Decode(path string) (*mat.Dense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decodes[path]++
	if err, ok := s.failures[path]; ok {
		return nil, err
	}

	rows, cols := s.Rows, s.Cols
	if rows == 0 || cols == 0 {
		rows, cols = 4, 4
	}
	value := float64(FrameNumber(path))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = value
	}
	return mat.NewDense(rows, cols, data), nil
}

func (s *Source) Metadata(path string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	md := make(map[string]string)
	for k, v := range s.metadata[path] {
		md[k] = v
	}
	return md, nil
}

// FrameNumber extracts the trailing number of a frame_NNN.tif path, or -1.
func FrameNumber(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(base, "_")
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return -1
	}
	return n
}
