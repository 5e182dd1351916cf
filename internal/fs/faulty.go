package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"sync"
	"syscall"
)

// Op identifies an [FS] operation that [Faulty] can fail.
type Op uint8

// Operations that can be failed.
const (
	OpRead Op = iota + 1
	OpWrite
	OpRename
	OpOpen
	OpMkdir
)

func (op Op) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpRename:
		return "rename"
	case OpOpen:
		return "open"
	case OpMkdir:
		return "mkdir"
	default:
		return "unknown"
	}
}

// InjectedError marks an error as intentionally injected by [Faulty].
//
// It wraps a real *fs.PathError carrying a [syscall.Errno], so errors.Is
// against syscall errors and os.IsPermission keep working.
type InjectedError struct {
	Err error
}

// Error returns the underlying error's message.
func (e *InjectedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by [Faulty].
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails selected operations.
//
// Unlike random fault injection, failures are switched on explicitly with
// [Faulty.Fail] and stay on until [Faulty.Heal]. Each failure is a real
// *fs.PathError so callers handle it exactly like an OS error.
//
// Faulty is safe for concurrent use.
type Faulty struct {
	fs FS

	mu      sync.Mutex
	failing map[Op]syscall.Errno
	counts  map[Op]int
}

// NewFaulty returns a Faulty that passes everything through to fs until told
// otherwise.
func NewFaulty(fs FS) *Faulty {
	return &Faulty{
		fs:      fs,
		failing: make(map[Op]syscall.Errno),
		counts:  make(map[Op]int),
	}
}

// Fail makes every subsequent op return errno.
func (f *Faulty) Fail(op Op, errno syscall.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failing[op] = errno
}

// Heal stops failing op.
func (f *Faulty) Heal(op Op) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.failing, op)
}

// Injected returns how many times op was failed.
func (f *Faulty) Injected(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.counts[op]
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	errno, ok := f.failing[op]
	if !ok {
		return nil
	}

	f.counts[op]++

	return &InjectedError{Err: &iofs.PathError{Op: op.String(), Path: path, Err: errno}}
}

// OpenFile fails with the configured errno when [OpOpen] is failing.
func (f *Faulty) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if err := f.check(OpOpen, path); err != nil {
		return nil, err
	}

	return f.fs.OpenFile(path, flag, perm)
}

// ReadFile fails with the configured errno when [OpRead] is failing.
func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpRead, path); err != nil {
		return nil, err
	}

	return f.fs.ReadFile(path)
}

// WriteFileAtomic fails with the configured errno when [OpWrite] is failing.
// A failed write leaves the existing file untouched, matching a failed
// temp-file write in [Real].
func (f *Faulty) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := f.check(OpWrite, path); err != nil {
		return err
	}

	return f.fs.WriteFileAtomic(path, data, perm)
}

// MkdirAll fails with the configured errno when [OpMkdir] is failing.
func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdir, path); err != nil {
		return err
	}

	return f.fs.MkdirAll(path, perm)
}

// Stat passes through.
func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	return f.fs.Stat(path)
}

// Exists passes through.
func (f *Faulty) Exists(path string) (bool, error) {
	return f.fs.Exists(path)
}

// Rename fails with the configured errno when [OpRename] is failing.
func (f *Faulty) Rename(oldpath, newpath string) error {
	if err := f.check(OpRename, oldpath); err != nil {
		return err
	}

	return f.fs.Rename(oldpath, newpath)
}

// Compile-time interface check.
var _ FS = (*Faulty)(nil)
