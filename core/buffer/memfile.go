package buffer

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/spool-tools/spool/core/handle"
)

// memFileName labels the anonymous file in /proc listings; it never appears
// in the filesystem.
const memFileName = "spool-buffer"

// defaultPreallocPages is the fallocate budget used when preallocation is
// requested but the source size could not be probed.
const defaultPreallocPages = 8

// sealFlags make the captured file immutable: no shrink, no grow, no write
// through any descriptor.
const sealFlags = unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE

// MemFileError tags which syscall step failed while building or finishing
// the memory file.
type MemFileError struct {
	Step string // "create", "allocate", "truncate", "seek", or "seal"
	Err  error
}

func (e *MemFileError) Error() string {
	return fmt.Sprintf("buffer: memfile %s: %v", e.Step, e.Err)
}

func (e *MemFileError) Unwrap() error {
	return e.Err
}

// memFile is the kernel-resident strategy: an anonymous memory file filled
// by copying the source stream, truncated to the bytes actually read, and
// reseeked to the start for replay.
type memFile struct {
	h        *handle.Handle
	opts     Options
	length   int64
	captured bool
	sealed   bool
}

func newMemFile(sizeHint int64, opts Options) (*memFile, error) {
	h, err := createMemFD(opts.Seal)
	if err != nil {
		return nil, err
	}
	m := &memFile{h: h, opts: opts}
	if opts.Preallocate {
		size := sizeHint
		if size == 0 {
			size = int64(os.Getpagesize()) * defaultPreallocPages
		}
		if err := unix.Fallocate(h.FD(), 0, 0, size); err != nil {
			h.Close()
			return nil, &MemFileError{Step: "allocate", Err: err}
		}
	}
	return m, nil
}

func createMemFD(allowSealing bool) (*handle.Handle, error) {
	flags := unix.MFD_CLOEXEC
	if allowSealing {
		flags |= unix.MFD_ALLOW_SEALING
	}
	fd, err := unix.MemfdCreate(memFileName, flags)
	if err != nil {
		return nil, &MemFileError{Step: "create", Err: err}
	}
	return handle.New(fd)
}

func (m *memFile) CopyFrom(src io.Reader) (int64, error) {
	if m.captured {
		return 0, ErrAlreadyCaptured
	}
	n, err := io.Copy(m.h, src)
	if err != nil {
		return n, fmt.Errorf("buffer: read into memory file: %w", err)
	}

	// Reconcile the file's reported length against the bytes actually
	// copied. Preallocation leaves slack past the end of the data, and a
	// probed size can disagree with what the stream delivered.
	if reported, ok := handle.ProbeSize(m.h.FD()); !ok || reported != n {
		if err := unix.Ftruncate(m.h.FD(), n); err != nil {
			return n, &MemFileError{Step: "truncate", Err: err}
		}
	}
	if _, err := m.h.Seek(0, io.SeekStart); err != nil {
		return n, &MemFileError{Step: "seek", Err: err}
	}
	if m.opts.Seal {
		if err := seal(m.h); err != nil {
			return n, err
		}
		m.sealed = true
	}
	m.length = n
	m.captured = true
	return n, nil
}

func seal(h *handle.Handle) error {
	if _, err := unix.FcntlInt(uintptr(h.FD()), unix.F_ADD_SEALS, sealFlags); err != nil {
		return &MemFileError{Step: "seal", Err: err}
	}
	return nil
}

func (m *memFile) Len() int64 {
	return m.length
}

func (m *memFile) VerifyLength() error {
	if !m.captured {
		return ErrNotCaptured
	}
	actual, ok := handle.ProbeSize(m.h.FD())
	if !ok {
		// A zero-length capture probes as unknown; that is consistent.
		if m.length == 0 {
			return nil
		}
		return &LengthMismatch{Recorded: m.length, Actual: 0}
	}
	if actual != m.length {
		return &LengthMismatch{Recorded: m.length, Actual: actual}
	}
	return nil
}

func (m *memFile) Reader() (io.Reader, error) {
	if !m.captured {
		return nil, ErrNotCaptured
	}
	if _, err := m.h.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return m.h, nil
}

func (m *memFile) Handle() (*handle.Handle, error) {
	if !m.captured {
		return nil, ErrNotCaptured
	}
	return m.h, nil
}

func (m *memFile) Close() error {
	return m.h.Close()
}

// materialize copies heap-captured bytes into a fresh, sealed memory file so
// exec dispatch can hand children a descriptor-backed view. The copy goes
// through io.Copy rather than one raw write: a single write(2) is capped by
// the kernel at just under 2 GiB and returns a short count for anything
// larger.
func materialize(data []byte) (*handle.Handle, error) {
	h, err := createMemFD(true)
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(h, bytes.NewReader(data))
	if err != nil {
		h.Close()
		return nil, err
	}
	if n != int64(len(data)) {
		h.Close()
		return nil, &LengthMismatch{Recorded: int64(len(data)), Actual: n}
	}
	if _, err := h.Seek(0, io.SeekStart); err != nil {
		h.Close()
		return nil, err
	}
	if err := seal(h); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}
