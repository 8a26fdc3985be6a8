// Package buffer provides the two interchangeable storage strategies the
// capture engine writes into: a growable in-process heap buffer and an
// anonymous kernel-resident memory file.
//
// Both strategies capture a stream exactly once and are immutable
// afterwards. This package is Linux-only: the memory-file strategy is built
// on memfd_create and file seals.
package buffer

import (
	"errors"
	"fmt"
	"io"

	"github.com/spool-tools/spool/core/handle"
)

// Strategy selects a Capability implementation. It is a build/run
// configuration concern, never a user-visible flag.
type Strategy string

const (
	// StrategyHeap buffers the stream in process memory.
	StrategyHeap Strategy = "heap"
	// StrategyMemFile buffers the stream in an anonymous memory file.
	StrategyMemFile Strategy = "memfile"
)

// Options are optional hardening and performance knobs a strategy may or
// may not honor.
type Options struct {
	// Preallocate sizes the storage up front, from the probed source
	// length or a default page budget when the probe failed.
	Preallocate bool
	// Seal asks the kernel to enforce immutability after capture by
	// sealing the memory file against shrink, grow, and write.
	Seal bool
}

// Capability is storage that captures a source stream once and then serves
// read-only views of the captured bytes.
type Capability interface {
	io.Closer

	// CopyFrom streams src into the storage until EOF and freezes it.
	// The returned count is the ground-truth capture length. A second
	// call fails with ErrAlreadyCaptured.
	CopyFrom(src io.Reader) (int64, error)

	// Len reports the length recorded at capture time.
	Len() int64

	// VerifyLength checks the underlying storage against the recorded
	// length, failing with a *LengthMismatch when they disagree.
	VerifyLength() error

	// Reader returns a view of the captured bytes positioned at the
	// start.
	Reader() (io.Reader, error)

	// Handle returns a descriptor-backed view of the captured bytes for
	// exec dispatch. The capability retains ownership; callers must
	// duplicate it rather than close or release it.
	Handle() (*handle.Handle, error)
}

// New builds the capability for the configured strategy. sizeHint is the
// probed source length, 0 when unknown.
func New(strategy Strategy, sizeHint int64, opts Options) (Capability, error) {
	switch strategy {
	case StrategyHeap:
		return newHeap(sizeHint), nil
	case StrategyMemFile:
		return newMemFile(sizeHint, opts)
	default:
		return nil, fmt.Errorf("buffer: unknown strategy %q", strategy)
	}
}

// ErrAlreadyCaptured is returned when CopyFrom is called on a capability
// that already holds a completed capture.
var ErrAlreadyCaptured = errors.New("buffer: capture already completed")

// ErrNotCaptured is returned when a read view is requested before any
// capture has completed.
var ErrNotCaptured = errors.New("buffer: no capture has completed")

// LengthMismatch reports storage whose length disagrees with the length
// recorded at capture time. It indicates a bug in the strategy, not an
// external I/O fault.
type LengthMismatch struct {
	Recorded int64
	Actual   int64
}

func (e *LengthMismatch) Error() string {
	return fmt.Sprintf("buffer: recorded %d captured bytes, but storage holds %d", e.Recorded, e.Actual)
}
