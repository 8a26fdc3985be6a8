// Package dispatch spawns one child process per parsed exec spec and
// collects a per-entry outcome. Entries run strictly in parse order, one at
// a time, and every spawned child is waited on before Run returns.
package dispatch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"

	"github.com/spool-tools/spool/core/args"
	"github.com/spool-tools/spool/core/handle"
)

// childFDPath is substituted for each placeholder in positional mode. The
// duplicated descriptor is passed as the child's fd 3 via ExtraFiles, so the
// path resolves in the child's own descriptor table; paths under the
// parent's /proc/<pid>/fd were not reliable for this.
const childFDPath = "/dev/fd/3"

// dataName labels the *os.File wrapped around each child's duplicate.
const dataName = "spool-data"

// Outcome records the result of one exec entry. Exactly one of SpawnErr,
// WaitErr, or a termination result is meaningful: when SpawnErr is set no
// child ran; when Exited is false the child terminated without an exit code
// (for example by signal) and ExitCode is -1.
type Outcome struct {
	Index    int
	Command  string
	SpawnErr error
	WaitErr  error
	ExitCode int
	Exited   bool
}

// Failed reports whether spawning or waiting failed. A child's own non-zero
// exit code is not a dispatch failure.
func (o Outcome) Failed() bool {
	return o.SpawnErr != nil || o.WaitErr != nil
}

// Dispatcher runs exec specs against the captured data's handle.
type Dispatcher struct {
	log *zap.Logger

	// Stdout and Stderr are inherited by every child. They default to
	// the parent's; tests override them.
	Stdout io.Writer
	Stderr io.Writer
}

func New(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		log:    log,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run dispatches every spec in order. data stays owned by the caller; each
// child gets its own duplicated descriptor, so one entry consuming or
// closing its copy never affects the parent or later entries. A failed
// entry never prevents later entries from being attempted.
func (d *Dispatcher) Run(data *handle.Handle, opts *args.Options) []Outcome {
	outcomes := make([]Outcome, 0, len(opts.Specs))
	for i, spec := range opts.Specs {
		outcomes = append(outcomes, d.runOne(data, i, spec))
	}
	return outcomes
}

func (d *Dispatcher) runOne(data *handle.Handle, index int, spec args.ExecSpec) Outcome {
	out := Outcome{Index: index, Command: spec.Command, ExitCode: -1}

	dup, err := data.Duplicate()
	if err != nil {
		out.SpawnErr = err
		return out
	}
	file := dup.File(dataName)
	defer file.Close()

	var cmd *exec.Cmd
	switch spec.Mode {
	case args.ModePositional:
		cmd = exec.Command(spec.Command, spec.Argv(childFDPath)...)
		cmd.ExtraFiles = []*os.File{file}
		// Stdin stays nil: the child reads from /dev/null.
	default:
		// The duplicate shares a seek cursor with the parent's handle,
		// so rewind before handing it over.
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			out.SpawnErr = fmt.Errorf("dispatch: rewind data for child: %w", err)
			return out
		}
		cmd = exec.Command(spec.Command, spec.Argv("")...)
		cmd.Stdin = file
	}
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr

	if err := cmd.Start(); err != nil {
		out.SpawnErr = fmt.Errorf("dispatch: spawn %s: %w", spec.Command, err)
		return out
	}
	d.log.Debug("spawned child",
		zap.Int("entry", index),
		zap.String("command", spec.Command),
		zap.Int("pid", cmd.Process.Pid))

	err = cmd.Wait()
	if err == nil {
		out.ExitCode = 0
		out.Exited = true
		return out
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.Exited = exitErr.Exited()
		if out.Exited {
			out.ExitCode = exitErr.ExitCode()
		}
		return out
	}
	out.WaitErr = fmt.Errorf("dispatch: wait for %s: %w", spec.Command, err)
	return out
}
