package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"rawviewer/pkg/aggregate"
	"rawviewer/pkg/config"
	"rawviewer/pkg/imageio"
	"rawviewer/pkg/jobs"
	"rawviewer/pkg/navigator"
	"rawviewer/pkg/viewer"
	"rawviewer/pkg/visualization"
)

var errQuit = errors.New("quit")

// session mirrors what the executor last reported, for the command loop.
type session struct {
	mu     sync.Mutex
	frame  viewer.Frame
	length int
}

func (s *session) setFrame(fr viewer.Frame) {
	s.mu.Lock()
	s.frame = fr
	s.mu.Unlock()

	if fr.Index == navigator.NoPosition {
		fmt.Println("No image selected")
		return
	}
	fmt.Printf("[%d] %s\n", fr.Index, fr.Name)
}

func (s *session) setLength(n int) {
	s.mu.Lock()
	s.length = n
	s.mu.Unlock()
}

func (s *session) snapshot() (viewer.Frame, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.length
}

func main() {
	dir := flag.String("dir", "", "Directory containing detector images")
	configPath := flag.String("config", "rawviewer.yaml", "Path to YAML configuration file")
	live := flag.Bool("live", false, "Keep watching the directory for new images")
	verbose := flag.Bool("verbose", false, "Log cache and discovery activity to stderr")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for saved snapshots (overrides config)")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	flag.Parse()

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Explicit flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "live":
			cfg.Discovery.Live = *live
		case "verbose":
			cfg.Output.Verbose = *verbose
		case "snapshot-dir":
			cfg.Output.SnapshotDir = *snapshotDir
		}
	})

	logger := log.New(io.Discard, "", 0)
	if cfg.Output.Verbose {
		logger = log.New(os.Stderr, "rawviewer: ", log.LstdFlags)
	}

	fmt.Println("================================")
	fmt.Println("RAW DETECTOR IMAGE VIEWER")
	fmt.Println("Browses large image sequences with a three-image memory window")
	fmt.Println("================================")

	s := &session{frame: viewer.Frame{Index: navigator.NoPosition}}
	v := viewer.New(cfg, imageio.NewFileSource(),
		viewer.WithLogger(logger),
		viewer.OnCurrentChange(s.setFrame),
		viewer.OnLengthChange(s.setLength),
		viewer.OnAggregate(printSeries),
		viewer.OnError(func(j jobs.Job, err error) {
			if !errors.Is(err, jobs.ErrDrained) {
				fmt.Printf("Error: %s: %v\n", j.Kind, err)
			}
		}),
		viewer.OnStatus(func(msg string) { fmt.Println(msg) }),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return v.Run(ctx)
	})
	g.Go(func() error {
		if *dir != "" {
			if err := v.Submit(jobs.Open(*dir)); err != nil {
				return err
			}
		} else {
			fmt.Println("No directory given, use: open DIR")
		}
		return commandLoop(ctx, v, s, cfg, lines)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		log.Fatalf("Viewer stopped: %v", err)
	}
}

// readLines forwards stdin lines until EOF. It is not cancellable, so it is
// left running on shutdown.
func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func commandLoop(ctx context.Context, v *viewer.Viewer, s *session, cfg *config.Config, lines <-chan string) error {
	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return errQuit
			}
			line = l
		}

		cmd, err := parseCommand(line)
		if errors.Is(err, errEmptyCommand) {
			continue
		}
		if err != nil {
			fmt.Println(err)
			continue
		}

		if cmd.job != nil {
			// Errors are reported through the viewer's OnError callback
			j, reply := jobs.WithReply(*cmd.job)
			if err := v.Submit(j); err != nil {
				return err
			}
			select {
			case <-reply:
			case <-ctx.Done():
				return nil
			}
			continue
		}

		switch cmd.name {
		case "quit", "q":
			return errQuit
		case "help":
			fmt.Println(helpText)
		case "info":
			printInfo(s)
		case "save":
			saveSnapshot(s, cfg.Output.SnapshotDir)
		}
	}
}

func printInfo(s *session) {
	fr, n := s.snapshot()
	if fr.Index == navigator.NoPosition {
		fmt.Printf("No image selected (%d images known)\n", n)
		return
	}
	fmt.Printf("Image %d of %d: %s\n", fr.Index+1, n, fr.Path)
	if fr.Data != nil {
		rows, cols := fr.Data.Dims()
		lo, hi := visualization.AutoBounds(fr.Data)
		fmt.Printf("Size: %dx%d, range [%g, %g]\n", cols, rows, lo, hi)
	}

	keys := make([]string, 0, len(fr.Metadata))
	for k := range fr.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s = %s\n", k, fr.Metadata[k])
	}
}

func saveSnapshot(s *session, dir string) {
	fr, _ := s.snapshot()
	if fr.Index == navigator.NoPosition || fr.Data == nil {
		fmt.Println("No image to save")
		return
	}
	filename, err := visualization.SaveSnapshot(fr.Data, dir, fr.Name)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Snapshot saved to: %s\n", filename)
}

func printSeries(series aggregate.Series) {
	fmt.Printf("\n%s over %d images (%d readable)\n", series.Kind, len(series.Values), series.Valid())
	for i, value := range series.Values {
		if math.IsNaN(value) {
			fmt.Printf("  %5d  unreadable\n", i)
			continue
		}
		fmt.Printf("  %5d  %g\n", i, value)
	}
	if lo, hi, ok := series.Range(); ok {
		fmt.Printf("Range: [%g, %g]\n", lo, hi)
	}
}
