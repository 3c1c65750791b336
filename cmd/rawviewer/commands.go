package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rawviewer/pkg/aggregate"
	"rawviewer/pkg/jobs"
)

// command is one parsed line of operator input. Commands that map onto a
// viewer job carry it; the rest are handled by the CLI itself.
type command struct {
	name string
	job  *jobs.Job
}

var errEmptyCommand = errors.New("empty command")

const helpText = `Commands:
  next, n            step to the next image
  prev, p            step to the previous image
  goto N, g N        jump to image N
  agg KIND           compute an aggregate (mean, total, std, above, below)
  open DIR           browse another directory
  reset              stop discovery, clear every image and pending job
  save               save the current image as JPEG
  info               show the current image and its metadata
  help               show this text
  quit, q            exit`

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errEmptyCommand
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	withJob := func(j jobs.Job) (command, error) {
		return command{name: name, job: &j}, nil
	}

	switch name {
	case "next", "n":
		return withJob(jobs.Step(1))
	case "prev", "p":
		return withJob(jobs.Step(-1))
	case "goto", "g":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: goto N")
		}
		target, err := strconv.Atoi(args[0])
		if err != nil {
			return command{}, fmt.Errorf("invalid image index %q", args[0])
		}
		return withJob(jobs.GoTo(target))
	case "agg":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: agg KIND")
		}
		kind, err := aggregate.ParseKind(args[0])
		if err != nil {
			return command{}, err
		}
		return withJob(jobs.Aggregate(string(kind)))
	case "open":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: open DIR")
		}
		return withJob(jobs.Open(args[0]))
	case "reset":
		return withJob(jobs.ResetAll())
	case "save", "info", "help", "quit", "q":
		if len(args) != 0 {
			return command{}, fmt.Errorf("%s takes no arguments", name)
		}
		return command{name: name}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q, type help", fields[0])
	}
}
