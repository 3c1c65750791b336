// Package viewer runs the single consumer that owns the catalog, window and
// current position. Every state change arrives as a job on its queue and is
// handled on the goroutine running Run; producers only enqueue.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"

	"rawviewer/internal/models"
	"rawviewer/pkg/aggregate"
	"rawviewer/pkg/cache"
	"rawviewer/pkg/catalog"
	"rawviewer/pkg/config"
	"rawviewer/pkg/discovery"
	"rawviewer/pkg/jobs"
	"rawviewer/pkg/navigator"
)

// ErrBadStep is returned for a relative navigation other than -1 or +1.
var ErrBadStep = errors.New("step must be -1 or +1")

// Frame describes the current image as seen by observers. Index is
// navigator.NoPosition when nothing is selected.
type Frame struct {
	Index    int
	Name     string
	Path     string
	Metadata map[string]string
	Data     *mat.Dense
}

// Discoverer produces DiscoverImage and InitCache jobs for a directory.
type Discoverer interface {
	Run(ctx context.Context, dir string, q discovery.Enqueuer) error
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithLogger sets the logger shared by the viewer and its components.
func WithLogger(logger *log.Logger) Option {
	return func(v *Viewer) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithDiscoverer replaces the directory scanner built from the config.
func WithDiscoverer(d Discoverer) Option {
	return func(v *Viewer) {
		v.discoverer = d
	}
}

// OnCurrentChange is called after the current image changes.
func OnCurrentChange(fn func(Frame)) Option {
	return func(v *Viewer) {
		v.onCurrent = fn
	}
}

// OnLengthChange is called after the catalog grows or is cleared.
func OnLengthChange(fn func(int)) Option {
	return func(v *Viewer) {
		v.onLength = fn
	}
}

// OnAggregate is called with every computed or cached aggregate series.
func OnAggregate(fn func(aggregate.Series)) Option {
	return func(v *Viewer) {
		v.onAggregate = fn
	}
}

// OnError is called for every job whose handler failed.
func OnError(fn func(jobs.Job, error)) Option {
	return func(v *Viewer) {
		v.onError = fn
	}
}

// OnStatus is called with discovery status messages. It runs on the
// discovery goroutine, not the executor.
func OnStatus(fn func(string)) Option {
	return func(v *Viewer) {
		v.onStatus = fn
	}
}

// Viewer is the job executor. Callbacks, except OnStatus, run on the
// executor goroutine and must not block for long.
type Viewer struct {
	cfg    *config.Config
	queue  *jobs.Queue
	logger *log.Logger

	catalog    *catalog.Catalog
	window     *cache.Window
	nav        *navigator.Navigator
	aggregates map[aggregate.Kind]aggregate.Series

	discoverer Discoverer
	runCtx     context.Context
	scanCancel context.CancelFunc
	scanDone   chan struct{}

	onCurrent   func(Frame)
	onLength    func(int)
	onAggregate func(aggregate.Series)
	onError     func(jobs.Job, error)
	onStatus    func(string)
}

// New creates a viewer reading images through source.
func New(cfg *config.Config, source models.Source, opts ...Option) *Viewer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	v := &Viewer{
		cfg:         cfg,
		queue:       jobs.NewQueue(),
		logger:      log.New(io.Discard, "", 0),
		aggregates:  make(map[aggregate.Kind]aggregate.Series),
		onCurrent:   func(Frame) {},
		onLength:    func(int) {},
		onAggregate: func(aggregate.Series) {},
		onError:     func(jobs.Job, error) {},
		onStatus:    func(string) {},
	}
	for _, opt := range opts {
		opt(v)
	}

	v.catalog = catalog.New(source, v.logger)
	v.window = cache.NewWindow()
	v.nav = navigator.New(v.catalog, v.window, v.logger)

	if v.discoverer == nil {
		v.discoverer = discovery.NewScanner(
			discovery.WithExtensions(cfg.Discovery.Extensions...),
			discovery.WithInitBatch(cfg.Discovery.InitBatch),
			discovery.WithLive(cfg.Discovery.Live),
			discovery.WithLogger(v.logger),
			discovery.WithOnStatus(func(msg string) { v.onStatus(msg) }),
		)
	}
	return v
}

// Queue returns the job queue producers push to.
func (v *Viewer) Queue() *jobs.Queue {
	return v.queue
}

// Submit enqueues j.
func (v *Viewer) Submit(j jobs.Job) error {
	return v.queue.Push(j)
}

// Run handles jobs in FIFO order until ctx is done or the queue is closed.
// A failing job is logged and reported; it never stops the loop. On return
// any running discovery is stopped and the queue is closed.
func (v *Viewer) Run(ctx context.Context) error {
	v.runCtx = ctx
	defer func() {
		v.stopScan()
		v.queue.Close()
	}()

	for {
		j, err := v.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, jobs.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = v.handle(j)
		if err != nil {
			v.logger.Printf("Warning: %s failed: %v", j, err)
			v.onError(j, err)
		}
		j.Respond(err)
	}
}

// handle dispatches j to its handler. A panicking handler is turned into
// an error.
func (v *Viewer) handle(j jobs.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling %s: %v", j, r)
		}
	}()

	switch j.Kind {
	case jobs.DiscoverImage:
		return v.discover(j.Path)
	case jobs.InitCache:
		return v.initCache()
	case jobs.Navigate:
		return v.navigate(j.Step, j.Target)
	case jobs.Reset:
		v.reset()
		return nil
	case jobs.ComputeAggregate:
		return v.computeAggregate(j.Aggregate)
	case jobs.LoadDirectory:
		return v.loadDirectory(j.Path)
	default:
		return fmt.Errorf("unknown job kind %s", j.Kind)
	}
}

func (v *Viewer) discover(path string) error {
	v.catalog.Append(path)
	// Cached series no longer cover every image
	clear(v.aggregates)
	v.onLength(v.catalog.Len())
	return nil
}

func (v *Viewer) initCache() error {
	if v.nav.Current() != navigator.NoPosition {
		v.logger.Printf("init: already at %d, ignoring", v.nav.Current())
		return nil
	}
	if err := v.nav.Init(); err != nil {
		return fmt.Errorf("failed to initialise cache: %w", err)
	}
	v.notifyCurrent()
	return nil
}

func (v *Viewer) navigate(step, target int) error {
	before := v.nav.Current()

	var err error
	switch step {
	case 0:
		err = v.nav.Navigate(target)
	case int(navigator.Left), int(navigator.Right):
		err = v.nav.Step(navigator.Direction(step))
	default:
		return fmt.Errorf("%w, got %d", ErrBadStep, step)
	}
	if err != nil {
		return err
	}

	if v.nav.Current() != before {
		v.notifyCurrent()
	}
	return nil
}

// reset stops any running discovery, discards pending jobs and every piece
// of navigation state.
func (v *Viewer) reset() {
	// Stop the producer first so nothing it already pushed survives the drain
	v.stopScan()

	drained := v.queue.Drain()
	for _, j := range drained {
		j.Respond(jobs.ErrDrained)
	}

	hadImages := v.catalog.Len() > 0
	hadPosition := v.nav.Current() != navigator.NoPosition
	v.nav.Reset()
	v.catalog.Clear()
	clear(v.aggregates)

	v.logger.Printf("reset: discarded %d pending jobs", len(drained))
	if hadImages {
		v.onLength(0)
	}
	if hadPosition {
		v.notifyCurrent()
	}
}

// computeAggregate reduces every image to one value. Images outside the
// window are loaded one at a time and unloaded straight after.
func (v *Viewer) computeAggregate(name string) error {
	kind, err := aggregate.ParseKind(name)
	if err != nil {
		return err
	}
	if v.catalog.Len() == 0 {
		return navigator.ErrEmptyCatalog
	}
	if series, ok := v.aggregates[kind]; ok {
		v.onAggregate(series)
		return nil
	}

	bounds := aggregate.Bounds{
		Lower: v.cfg.Aggregate.LowerBound,
		Upper: v.cfg.Aggregate.UpperBound,
	}
	series := aggregate.Series{Kind: kind, Values: make([]float64, v.catalog.Len())}
	for i, img := range v.catalog.Images() {
		series.Values[i] = v.reduce(kind, img, bounds)
		if !v.window.Contains(img) {
			img.Unload()
		}
	}

	v.logger.Printf("aggregate %s: %d of %d images", kind, series.Valid(), len(series.Values))
	v.aggregates[kind] = series
	v.onAggregate(series)
	return nil
}

func (v *Viewer) reduce(kind aggregate.Kind, img *models.Image, bounds aggregate.Bounds) float64 {
	if err := img.Load(); err != nil {
		v.logger.Printf("Warning: aggregate %s skips %s: %v", kind, img.Name, err)
		return math.NaN()
	}
	value, err := aggregate.Compute(kind, img.Data(), bounds)
	if err != nil {
		v.logger.Printf("Warning: aggregate %s skips %s: %v", kind, img.Name, err)
		return math.NaN()
	}
	return value
}

// loadDirectory replaces the current scan with one of dir.
func (v *Viewer) loadDirectory(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: empty path", discovery.ErrInvalidDirectory)
	}

	// Jobs still queued from the previous scan must not reach the new catalog
	v.reset()
	v.startScan(dir)
	return nil
}

func (v *Viewer) startScan(dir string) {
	parent := v.runCtx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	v.scanCancel, v.scanDone = cancel, done

	v.logger.Printf("discovery: scanning %s", dir)
	go func() {
		defer close(done)
		if err := v.discoverer.Run(ctx, dir, v.queue); err != nil {
			v.logger.Printf("Warning: discovery of %s stopped: %v", dir, err)
		}
	}()
}

// stopScan cancels the running discovery and waits for it to return.
func (v *Viewer) stopScan() {
	if v.scanCancel == nil {
		return
	}
	v.scanCancel()
	<-v.scanDone
	v.scanCancel, v.scanDone = nil, nil
}

func (v *Viewer) notifyCurrent() {
	img, ok := v.nav.CurrentImage()
	if !ok {
		v.onCurrent(Frame{Index: navigator.NoPosition})
		return
	}
	v.onCurrent(Frame{
		Index:    img.Index,
		Name:     img.Name,
		Path:     img.Path,
		Metadata: img.Metadata,
		Data:     img.Data(),
	})
}
