// Package capture implements the two-phase capture/replay engine: the whole
// source is read into a buffer capability first, and only then replayed to
// the destination. Partial-forward streaming is deliberately unsupported,
// because exec dispatch needs the complete captured data afterwards.
package capture

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/spool-tools/spool/core/buffer"
	"github.com/spool-tools/spool/core/handle"
)

// SizeMismatch reports that replay wrote a different byte count than capture
// read. It is kept distinct from I/O failure because it indicates a bug in
// the buffering strategy, not an external fault.
type SizeMismatch struct {
	Read    int64
	Written int64
}

func (e *SizeMismatch) Error() string {
	return fmt.Sprintf("capture: read %d bytes, but wrote %d", e.Read, e.Written)
}

// Result records the byte counts of a completed capture/replay run.
type Result struct {
	BytesIn  int64
	BytesOut int64
}

// Engine orchestrates capture and replay for one configured strategy.
type Engine struct {
	strategy buffer.Strategy
	opts     buffer.Options
	log      *zap.Logger

	// newBuffer builds the capability; tests substitute faulty doubles.
	newBuffer func(buffer.Strategy, int64, buffer.Options) (buffer.Capability, error)
}

func NewEngine(strategy buffer.Strategy, opts buffer.Options, log *zap.Logger) *Engine {
	return &Engine{strategy: strategy, opts: opts, log: log, newBuffer: buffer.New}
}

// fdSource is a source whose size can be probed, such as *os.File.
type fdSource interface {
	Fd() uintptr
}

// Capture fully reads src into a fresh capability sized from the source's
// probed length when one is obtainable. The caller owns the returned
// capability.
func (e *Engine) Capture(src io.Reader) (buffer.Capability, int64, error) {
	var hint int64
	if f, ok := src.(fdSource); ok {
		if size, ok := handle.ProbeSize(int(f.Fd())); ok {
			hint = size
		}
	}
	e.log.Debug("capture starting",
		zap.String("strategy", string(e.strategy)),
		zap.Int64("size_hint", hint))

	store, err := e.newBuffer(e.strategy, hint, e.opts)
	if err != nil {
		return nil, 0, err
	}
	n, err := store.CopyFrom(src)
	if err != nil {
		store.Close()
		return nil, 0, fmt.Errorf("capture: %w", err)
	}
	if err := store.VerifyLength(); err != nil {
		store.Close()
		return nil, 0, fmt.Errorf("capture: %w", err)
	}
	e.log.Debug("capture complete", zap.Int64("bytes", n))
	return store, n, nil
}

// Replay writes the captured bytes to dst from the start.
func (e *Engine) Replay(store buffer.Capability, dst io.Writer) (int64, error) {
	r, err := store.Reader()
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, r)
	if err != nil {
		return n, fmt.Errorf("replay: %w", err)
	}
	e.log.Debug("replay complete", zap.Int64("bytes", n))
	return n, nil
}

// Run captures src, replays it to dst, and verifies byte-count symmetry.
// On success the returned capability is still live so the captured data can
// feed exec dispatch; the caller must close it.
func (e *Engine) Run(src io.Reader, dst io.Writer) (buffer.Capability, *Result, error) {
	store, in, err := e.Capture(src)
	if err != nil {
		return nil, nil, err
	}
	out, err := e.Replay(store, dst)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	if in != out {
		store.Close()
		return nil, nil, &SizeMismatch{Read: in, Written: out}
	}
	return store, &Result{BytesIn: in, BytesOut: out}, nil
}
