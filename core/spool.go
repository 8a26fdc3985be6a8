// Package core wires the capture pipeline together: parse the exec specs,
// capture all of stdin, replay it verbatim to stdout, then dispatch the
// captured data to each exec entry in order.
package core

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/spool-tools/spool/core/args"
	"github.com/spool-tools/spool/core/buffer"
	"github.com/spool-tools/spool/core/capture"
	"github.com/spool-tools/spool/core/config"
	"github.com/spool-tools/spool/core/dispatch"
)

// Spool runs the whole pipeline for one process invocation. Everything is
// single-threaded and synchronous: a blocking read-then-write capture
// followed by a blocking spawn-then-wait per exec entry.
type Spool struct {
	Config *config.Configuration
	Log    *zap.Logger

	// Stdin is the capture source; when it is an *os.File its size is
	// probed to pre-size the buffer. Stdout is the replay destination.
	Stdin  io.Reader
	Stdout io.Writer

	// Dispatcher overrides the child-process dispatcher, for tests.
	Dispatcher *dispatch.Dispatcher
}

// RunResult aggregates the capture byte counts and per-child outcomes.
type RunResult struct {
	Capture  *capture.Result
	Children []dispatch.Outcome
}

// ChildFailures counts entries whose spawn or wait failed. Children that
// ran and exited, with whatever code, do not count.
func (r *RunResult) ChildFailures() int {
	n := 0
	for _, oc := range r.Children {
		if oc.Failed() {
			n++
		}
	}
	return n
}

// Run executes the pipeline. Argument parse errors are fatal before any
// capture begins; capture and replay errors are fatal; per-child failures
// are recorded in the result and left to the caller's exit policy.
func (s *Spool) Run(argv []string) (*RunResult, error) {
	opts, err := args.Parse(argv)
	if err != nil {
		return nil, err
	}
	for _, w := range opts.Warnings {
		s.Log.Warn(w.String())
	}

	engine := capture.NewEngine(
		buffer.Strategy(s.Config.Strategy),
		buffer.Options{Preallocate: s.Config.Preallocate, Seal: s.Config.Seal},
		s.Log,
	)
	store, result, err := engine.Run(s.Stdin, s.Stdout)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	out := &RunResult{Capture: result}
	if !opts.HasExec() {
		return out, nil
	}

	data, err := store.Handle()
	if err != nil {
		return out, fmt.Errorf("prepare captured data for exec: %w", err)
	}
	d := s.Dispatcher
	if d == nil {
		d = dispatch.New(s.Log)
	}
	out.Children = d.Run(data, opts)
	for _, oc := range out.Children {
		switch {
		case oc.SpawnErr != nil:
			s.Log.Error("exec entry failed to spawn",
				zap.Int("entry", oc.Index),
				zap.String("command", oc.Command),
				zap.Error(oc.SpawnErr))
		case oc.WaitErr != nil:
			s.Log.Error("exec entry failed to report its exit",
				zap.Int("entry", oc.Index),
				zap.String("command", oc.Command),
				zap.Error(oc.WaitErr))
		case !oc.Exited:
			s.Log.Info("exec entry terminated without an exit code",
				zap.Int("entry", oc.Index),
				zap.String("command", oc.Command))
		default:
			s.Log.Info("exec entry finished",
				zap.Int("entry", oc.Index),
				zap.String("command", oc.Command),
				zap.Int("exit_code", oc.ExitCode))
		}
	}
	return out, nil
}
