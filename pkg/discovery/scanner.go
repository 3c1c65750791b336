// Package discovery finds image files in a directory and turns them into
// jobs for the viewer. It never touches viewer state directly.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"rawviewer/pkg/jobs"
)

// DefaultInitBatch is how many discoveries precede the InitCache job.
const DefaultInitBatch = 3

var (
	ErrInvalidDirectory = errors.New("invalid directory")
	ErrNoImagesFound    = errors.New("no images found")
)

// Enqueuer accepts jobs from a producer.
type Enqueuer interface {
	Push(jobs.Job) error
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithExtensions sets the accepted file suffixes. Matching ignores case.
func WithExtensions(exts ...string) Option {
	return func(s *Scanner) {
		s.extensions = normalizeExtensions(exts)
	}
}

// WithInitBatch sets how many images are enqueued before InitCache.
func WithInitBatch(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.initBatch = n
		}
	}
}

// WithLive keeps watching the directory for new images after the scan.
func WithLive(live bool) Option {
	return func(s *Scanner) {
		s.live = live
	}
}

// WithLogger sets the logger used for progress output.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithOnStatus sets the callback receiving human-readable status messages.
func WithOnStatus(fn func(string)) Option {
	return func(s *Scanner) {
		if fn != nil {
			s.onStatus = fn
		}
	}
}

// Scanner discovers images in a directory.
type Scanner struct {
	extensions []string
	initBatch  int
	live       bool
	logger     *log.Logger
	onStatus   func(string)
}

// NewScanner creates a scanner accepting TIFF files by default.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		extensions: []string{".tif", ".tiff"},
		initBatch:  DefaultInitBatch,
		logger:     log.New(io.Discard, "", 0),
		onStatus:   func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan lists the images in dir in natural order.
func (s *Scanner) Scan(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDirectory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDirectory, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !s.Matches(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImagesFound, dir)
	}

	SortNatural(files)
	return files, nil
}

// Matches reports whether name carries an accepted extension.
func (s *Scanner) Matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, accepted := range s.extensions {
		if ext == accepted {
			return true
		}
	}
	return false
}

// Run enqueues a DiscoverImage job per image in dir, followed by one
// InitCache job once the initial batch is known. In live mode it then keeps
// enqueuing new images until ctx is done. Failures are reported through the
// status callback as well as returned.
func (s *Scanner) Run(ctx context.Context, dir string, q Enqueuer) error {
	var watcher *fsnotify.Watcher
	if s.live {
		// Watch before listing so files created during the scan are not lost
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return s.fail(fmt.Errorf("failed to create watcher: %w", err))
		}
		defer w.Close()
		if err := w.Add(dir); err != nil {
			return s.fail(fmt.Errorf("%w: %v", ErrInvalidDirectory, err))
		}
		watcher = w
	}

	files, err := s.Scan(dir)
	if err != nil && !(s.live && errors.Is(err, ErrNoImagesFound)) {
		return s.fail(err)
	}
	if len(files) == 0 {
		s.status(fmt.Sprintf("No images yet in %s, waiting for new files", dir))
	} else {
		s.status(fmt.Sprintf("Found %d images in %s", len(files), dir))
	}

	e := &emitter{queue: q, threshold: min(s.initBatch, len(files))}
	seen := make(map[string]bool, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil
		}
		seen[path] = true
		if err := e.discover(path); err != nil {
			return s.fail(err)
		}
	}
	s.logger.Printf("discovery: enqueued %d images from %s", len(files), dir)

	if watcher == nil {
		return nil
	}
	if e.threshold == 0 {
		// Nothing found yet: initialise after the first arrival
		e.threshold = 1
	}
	return s.watch(ctx, watcher, e, seen)
}

func (s *Scanner) watch(ctx context.Context, w *fsnotify.Watcher, e *emitter, seen map[string]bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if seen[event.Name] || !s.Matches(event.Name) {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			seen[event.Name] = true
			s.logger.Printf("discovery: new image %s", filepath.Base(event.Name))
			if err := e.discover(event.Name); err != nil {
				return s.fail(err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Printf("Warning: watcher error: %v", err)
		}
	}
}

func (s *Scanner) status(msg string) {
	s.logger.Print(msg)
	s.onStatus(msg)
}

func (s *Scanner) fail(err error) error {
	s.status(fmt.Sprintf("Discovery failed: %v", err))
	return err
}

// emitter pushes discoveries and the single InitCache job that follows the
// first threshold of them.
type emitter struct {
	queue     Enqueuer
	threshold int
	count     int
}

func (e *emitter) discover(path string) error {
	if err := e.queue.Push(jobs.Discover(path)); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", path, err)
	}
	e.count++
	if e.threshold > 0 && e.count == e.threshold {
		if err := e.queue.Push(jobs.Init()); err != nil {
			return fmt.Errorf("failed to enqueue init: %w", err)
		}
	}
	return nil
}

// SortNatural orders paths by the last number in their file name, then
// lexicographically, so frame_2 precedes frame_10.
func SortNatural(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		ni, okI := frameNumber(paths[i])
		nj, okJ := frameNumber(paths[j])
		if okI && okJ && ni != nj {
			return ni < nj
		}
		if okI != okJ {
			return okI
		}
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
}

// frameNumber extracts the last run of digits in the file name, ignoring
// the extension.
func frameNumber(path string) (int, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	end := -1
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] >= '0' && base[i] <= '9' {
			end = i + 1
			break
		}
	}
	if end < 0 {
		return 0, false
	}
	start := end - 1
	for start > 0 && base[start-1] >= '0' && base[start-1] <= '9' {
		start--
	}

	num, err := strconv.Atoi(base[start:end])
	if err != nil {
		return 0, false
	}
	return num, true
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
