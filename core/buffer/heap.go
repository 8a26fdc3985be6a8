package buffer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spool-tools/spool/core/handle"
)

// heapBuffer is the in-process strategy: a growable byte buffer pre-sized
// from the probed source length, frozen into a fixed-length view once the
// capture completes.
type heapBuffer struct {
	buf      bytes.Buffer
	frozen   []byte
	length   int64
	captured bool

	// materialized is the anonymous memory file lazily created when exec
	// dispatch asks for a descriptor-backed view of heap-captured data.
	materialized *handle.Handle
}

// maxGrowHint bounds the pre-size. A probed length above it would overflow
// int on 32-bit platforms or demand an enormous up-front allocation; past
// the bound the buffer grows on demand instead.
const maxGrowHint = 1 << 30

// clampGrowHint converts a probed source length into a safe Grow argument.
func clampGrowHint(hint int64) int {
	if hint > maxGrowHint {
		return maxGrowHint
	}
	if hint < 0 {
		return 0
	}
	return int(hint)
}

func newHeap(sizeHint int64) *heapBuffer {
	h := &heapBuffer{}
	if n := clampGrowHint(sizeHint); n > 0 {
		h.buf.Grow(n)
	}
	return h
}

func (h *heapBuffer) CopyFrom(src io.Reader) (int64, error) {
	if h.captured {
		return 0, ErrAlreadyCaptured
	}
	n, err := io.Copy(&h.buf, src)
	if err != nil {
		return n, fmt.Errorf("buffer: read into heap buffer: %w", err)
	}
	h.frozen = h.buf.Bytes()
	h.length = n
	h.captured = true
	return n, nil
}

func (h *heapBuffer) Len() int64 {
	return h.length
}

func (h *heapBuffer) VerifyLength() error {
	if !h.captured {
		return ErrNotCaptured
	}
	if actual := int64(len(h.frozen)); actual != h.length {
		return &LengthMismatch{Recorded: h.length, Actual: actual}
	}
	return nil
}

func (h *heapBuffer) Reader() (io.Reader, error) {
	if !h.captured {
		return nil, ErrNotCaptured
	}
	return bytes.NewReader(h.frozen), nil
}

func (h *heapBuffer) Handle() (*handle.Handle, error) {
	if !h.captured {
		return nil, ErrNotCaptured
	}
	if h.materialized != nil {
		return h.materialized, nil
	}
	mh, err := materialize(h.frozen)
	if err != nil {
		return nil, err
	}
	h.materialized = mh
	return mh, nil
}

func (h *heapBuffer) Close() error {
	if h.materialized == nil {
		return nil
	}
	return h.materialized.Close()
}
