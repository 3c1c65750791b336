// Package jobs defines the units of work processed by the viewer's single
// consumer and the unbounded FIFO queue that carries them.
package jobs

import "fmt"

// Kind identifies which handler processes a job.
type Kind int

const (
	// DiscoverImage appends Path to the catalog.
	DiscoverImage Kind = iota
	// InitCache establishes the first window at position 0.
	InitCache
	// Navigate moves by Step when it is non-zero, else to Target.
	Navigate
	// Reset drains the queue and clears window, catalog and position.
	Reset
	// ComputeAggregate computes one scalar per catalog image.
	ComputeAggregate
	// LoadDirectory restarts discovery on the directory in Path.
	LoadDirectory
)

var kindNames = map[Kind]string{
	DiscoverImage:    "discoverImage",
	InitCache:        "initCache",
	Navigate:         "navigate",
	Reset:            "reset",
	ComputeAggregate: "computeAggregate",
	LoadDirectory:    "loadDirectory",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Job is one requested state mutation.
type Job struct {
	Kind Kind

	// Path is the image path for DiscoverImage and the directory for
	// LoadDirectory.
	Path string

	// Step is -1 or +1 for a relative Navigate, 0 for an absolute one.
	Step int

	// Target is the absolute Navigate index.
	Target int

	// Aggregate names the aggregate kind for ComputeAggregate.
	Aggregate string

	// Reply, when set, receives the handler result. It must be buffered.
	Reply chan<- error
}

// Discover returns a DiscoverImage job.
func Discover(path string) Job {
	return Job{Kind: DiscoverImage, Path: path}
}

// Init returns an InitCache job.
func Init() Job {
	return Job{Kind: InitCache}
}

// Step returns a relative Navigate job; dir is -1 or +1.
func Step(dir int) Job {
	return Job{Kind: Navigate, Step: dir}
}

// GoTo returns an absolute Navigate job.
func GoTo(target int) Job {
	return Job{Kind: Navigate, Target: target}
}

// ResetAll returns a Reset job.
func ResetAll() Job {
	return Job{Kind: Reset}
}

// Aggregate returns a ComputeAggregate job.
func Aggregate(kind string) Job {
	return Job{Kind: ComputeAggregate, Aggregate: kind}
}

// Open returns a LoadDirectory job.
func Open(dir string) Job {
	return Job{Kind: LoadDirectory, Path: dir}
}

// WithReply attaches a fresh reply channel to j.
func WithReply(j Job) (Job, <-chan error) {
	ch := make(chan error, 1)
	j.Reply = ch
	return j, ch
}

// Respond delivers err on the job's reply channel, if any. It never blocks.
func (j Job) Respond(err error) {
	if j.Reply == nil {
		return
	}
	select {
	case j.Reply <- err:
	default:
	}
}

func (j Job) String() string {
	switch j.Kind {
	case DiscoverImage, LoadDirectory:
		return fmt.Sprintf("%s(%s)", j.Kind, j.Path)
	case Navigate:
		if j.Step != 0 {
			return fmt.Sprintf("%s(step %+d)", j.Kind, j.Step)
		}
		return fmt.Sprintf("%s(%d)", j.Kind, j.Target)
	case ComputeAggregate:
		return fmt.Sprintf("%s(%s)", j.Kind, j.Aggregate)
	default:
		return j.Kind.String()
	}
}
