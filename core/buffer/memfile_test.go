package buffer

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spool-tools/spool/core/handle"
)

func TestMemFileRoundTrip(t *testing.T) {
	for _, input := range []string{"", "a", "hello memory file", strings.Repeat("y", 1<<16)} {
		m, err := newMemFile(int64(len(input)), Options{})
		require.NoError(t, err)

		n, err := m.CopyFrom(strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, int64(len(input)), n)
		assert.Equal(t, int64(len(input)), m.Len())
		assert.NoError(t, m.VerifyLength())

		r, err := m.Reader()
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, input, string(got))

		assert.NoError(t, m.Close())
	}
}

func TestMemFileReconcilesPreallocationSlack(t *testing.T) {
	// A source that reports a size its stream does not deliver, like a
	// pipe probing as 0: preallocation leaves slack that the capture
	// must truncate away.
	const input = "short actual data"
	m, err := newMemFile(0, Options{Preallocate: true})
	require.NoError(t, err)
	defer m.Close()

	// Preallocation without a hint uses the default page budget, so the
	// file starts out much larger than the data.
	preSize, ok := handle.ProbeSize(m.h.FD())
	require.True(t, ok)
	assert.Equal(t, int64(os.Getpagesize())*defaultPreallocPages, preSize)

	n, err := m.CopyFrom(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, int64(len(input)), n)

	// The file ends truncated to exactly the bytes read, cursor at 0.
	size, ok := handle.ProbeSize(m.h.FD())
	require.True(t, ok)
	assert.Equal(t, int64(len(input)), size)
	assert.NoError(t, m.VerifyLength())

	got, err := io.ReadAll(m.h)
	require.NoError(t, err)
	assert.Equal(t, input, string(got))
}

func TestMemFilePreallocateWithHint(t *testing.T) {
	const input = "sized input"
	m, err := newMemFile(int64(len(input)), Options{Preallocate: true})
	require.NoError(t, err)
	defer m.Close()

	n, err := m.CopyFrom(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, int64(len(input)), n)
	assert.NoError(t, m.VerifyLength())
}

func TestMemFileSeal(t *testing.T) {
	m, err := newMemFile(0, Options{Seal: true})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.CopyFrom(strings.NewReader("sealed data"))
	require.NoError(t, err)

	// The kernel now enforces immutability through any descriptor.
	_, err = m.h.Write([]byte("nope"))
	assert.Error(t, err)

	dup, err := m.h.Duplicate()
	require.NoError(t, err)
	defer dup.Close()
	_, err = dup.Write([]byte("nope"))
	assert.Error(t, err)

	// Reads still work.
	r, err := m.Reader()
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "sealed data", string(got))
}

func TestMemFileCaptureOnlyOnce(t *testing.T) {
	m, err := newMemFile(0, Options{})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.CopyFrom(strings.NewReader("once"))
	require.NoError(t, err)
	_, err = m.CopyFrom(strings.NewReader("twice"))
	assert.ErrorIs(t, err, ErrAlreadyCaptured)
}

func TestMemFileViewsRequireCapture(t *testing.T) {
	m, err := newMemFile(0, Options{})
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Reader()
	assert.ErrorIs(t, err, ErrNotCaptured)
	_, err = m.Handle()
	assert.ErrorIs(t, err, ErrNotCaptured)
	assert.ErrorIs(t, m.VerifyLength(), ErrNotCaptured)
}

func TestMemFileHandleIsOwned(t *testing.T) {
	m, err := newMemFile(0, Options{})
	require.NoError(t, err)

	_, err = m.CopyFrom(strings.NewReader("owned"))
	require.NoError(t, err)

	h, err := m.Handle()
	require.NoError(t, err)
	assert.Equal(t, m.h, h)

	// Closing the capability closes its handle exactly once.
	assert.NoError(t, m.Close())
	assert.Equal(t, -1, h.FD())
	assert.NoError(t, m.Close())
}

func TestNewSelectsStrategy(t *testing.T) {
	heap, err := New(StrategyHeap, 0, Options{})
	require.NoError(t, err)
	assert.IsType(t, &heapBuffer{}, heap)
	assert.NoError(t, heap.Close())

	mem, err := New(StrategyMemFile, 0, Options{})
	require.NoError(t, err)
	assert.IsType(t, &memFile{}, mem)
	assert.NoError(t, mem.Close())

	_, err = New(Strategy("bogus"), 0, Options{})
	assert.Error(t, err)
}

func TestLengthMismatchError(t *testing.T) {
	err := &LengthMismatch{Recorded: 10, Actual: 7}
	assert.Contains(t, err.Error(), "10")
	assert.Contains(t, err.Error(), "7")
}
