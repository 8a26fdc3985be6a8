// Package handle wraps raw file descriptors with exclusive ownership.
//
// Every dup/dup3/fstat/lseek call and its error-code interpretation lives
// here so the rest of the program never touches a raw descriptor directly.
package handle

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Handle is an exclusively-owned file descriptor. Exactly one Handle owns a
// descriptor at a time, and the descriptor is closed exactly once no matter
// how many times Close is called.
type Handle struct {
	fd     int
	closed bool
}

// New takes ownership of fd. Negative descriptors are rejected.
func New(fd int) (*Handle, error) {
	if fd < 0 {
		return nil, fmt.Errorf("handle: invalid file descriptor %d", fd)
	}
	return &Handle{fd: fd}, nil
}

// Open opens path and returns a Handle owning the new descriptor.
func Open(path string, flags int, perm uint32) (*Handle, error) {
	fd, err := unix.Open(path, flags, perm)
	if err != nil {
		return nil, fmt.Errorf("handle: open %s: %w", path, err)
	}
	return &Handle{fd: fd}, nil
}

// FromFile duplicates f's descriptor into a fresh Handle. f remains valid
// and still owns its own descriptor.
func FromFile(f *os.File) (*Handle, error) {
	return DuplicateFrom(int(f.Fd()))
}

// DuplicateFrom dup()s an arbitrary descriptor, such as stdin, without
// taking ownership of the original.
func DuplicateFrom(fd int) (*Handle, error) {
	nfd, err := unix.Dup(fd)
	if err != nil {
		return nil, &DuplicateError{SourceFD: fd, Target: "new descriptor", Err: err}
	}
	return &Handle{fd: nfd}, nil
}

// FD reports the owned descriptor, or -1 once released or closed.
func (h *Handle) FD() int {
	if h.closed {
		return -1
	}
	return h.fd
}

// Duplicate dup()s the descriptor into a new independently-owned Handle.
func (h *Handle) Duplicate() (*Handle, error) {
	nfd, err := unix.Dup(h.fd)
	if err != nil {
		return nil, &DuplicateError{SourceFD: h.fd, Target: "new descriptor", Err: err}
	}
	return &Handle{fd: nfd}, nil
}

// LinkTo makes other refer to the same open file description as h, via
// dup3(h, other). other keeps ownership of its descriptor number.
func (h *Handle) LinkTo(other *Handle) error {
	if err := unix.Dup3(h.fd, other.fd, 0); err != nil {
		return &DuplicateError{
			SourceFD: h.fd,
			Target:   fmt.Sprintf("descriptor %d", other.fd),
			Err:      err,
		}
	}
	return nil
}

// LinkFrom makes h refer to the same open file description as other, via
// dup3(other, h).
func (h *Handle) LinkFrom(other *Handle) error {
	return other.LinkTo(h)
}

// Release gives up ownership without closing. The caller now owns the
// returned descriptor; the Handle is dead afterwards.
func (h *Handle) Release() int {
	fd := h.fd
	h.fd = -1
	h.closed = true
	return fd
}

// File transfers ownership into an *os.File. The Handle is dead afterwards.
func (h *Handle) File(name string) *os.File {
	return os.NewFile(uintptr(h.Release()), name)
}

// Close closes the descriptor. Only the first call has any effect; later
// calls return nil.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	fd := h.fd
	h.fd = -1
	h.closed = true
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("handle: close fd %d: %w", fd, err)
	}
	return nil
}

// ignoringEINTR repeats fn until it returns anything other than EINTR.
// Signal delivery, including the runtime's own preemption signals, can
// interrupt a slow read or write on a pipe.
func ignoringEINTR(fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if err != unix.EINTR {
			return n, err
		}
	}
}

// Read reads from the descriptor, satisfying io.Reader.
func (h *Handle) Read(p []byte) (int, error) {
	n, err := ignoringEINTR(func() (int, error) {
		return unix.Read(h.fd, p)
	})
	if err != nil {
		return 0, fmt.Errorf("handle: read fd %d: %w", h.fd, err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes to the descriptor, satisfying io.Writer.
func (h *Handle) Write(p []byte) (int, error) {
	n, err := ignoringEINTR(func() (int, error) {
		return unix.Write(h.fd, p)
	})
	if err != nil {
		return 0, fmt.Errorf("handle: write fd %d: %w", h.fd, err)
	}
	return n, nil
}

// Seek repositions the descriptor's cursor, satisfying io.Seeker.
func (h *Handle) Seek(offset int64, whence int) (int64, error) {
	off, err := unix.Seek(h.fd, offset, whence)
	if err != nil {
		return 0, fmt.Errorf("handle: seek fd %d: %w", h.fd, err)
	}
	return off, nil
}

// ProbeSize reports the length of an fd-backed stream when it is cheaply
// determinable. Pipes and other unsized streams report a non-positive
// st_size, which counts as unknown.
func ProbeSize(fd int) (int64, bool) {
	if fd < 0 {
		return 0, false
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, false
	}
	if st.Size <= 0 {
		return 0, false
	}
	return st.Size, true
}
