package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrWouldBlock means another holder has the lock. TryLock returns it
	// right away, LockWithTimeout once its timeout runs out.
	ErrWouldBlock = errors.New("lock would block")

	// ErrInvalidTimeout is returned by LockWithTimeout for a timeout <= 0.
	ErrInvalidTimeout = errors.New("invalid lock timeout")

	errLockReplaced = errors.New("lock file replaced while locking")
)

const (
	lockFilePerm = 0o600
	lockDirPerm  = 0o755

	lockPollMin = time.Millisecond
	lockPollMax = 25 * time.Millisecond
)

// Locker takes exclusive flock(2) locks on dedicated lock files such as
// "tasks.json.lock". The data file itself is never locked because every
// write replaces it with a new inode.
//
// Unix only.
type Locker struct {
	fs    FS
	flock func(fd int, how int) error
}

// NewLocker returns a Locker that opens lock files through fsys.
func NewLocker(fsys FS) *Locker {
	return &Locker{fs: fsys, flock: unix.Flock}
}

// Lock is a held lock. Release it with Close.
type Lock struct {
	mu    sync.Mutex
	file  File
	flock func(fd int, how int) error
}

// Close unlocks and closes the lock file. Calling it again is a no-op.
func (lk *Lock) Close() error {
	lk.mu.Lock()
	defer lk.mu.Unlock()

	if lk.file == nil {
		return nil
	}

	var errs []error

	if err := retryEINTR(lk.flock, int(lk.file.Fd()), unix.LOCK_UN); err != nil {
		errs = append(errs, fmt.Errorf("unlocking lock: %w", err))
	}

	if err := lk.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing lock fd: %w", err))
	}

	lk.file = nil

	return errors.Join(errs...)
}

// TryLock takes the lock at path or fails with [ErrWouldBlock] without
// waiting. Missing lock files and parent directories are created.
func (l *Locker) TryLock(path string) (*Lock, error) {
	lk, retry, err := l.attempt(path)
	if retry {
		return nil, ErrWouldBlock
	}

	return lk, err
}

// LockWithTimeout polls for the lock at path until timeout has passed.
func (l *Locker) LockWithTimeout(path string, timeout time.Duration) (*Lock, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, timeout)
	}

	deadline := time.Now().Add(timeout)
	wait := lockPollMin

	for {
		lk, retry, err := l.attempt(path)
		if !retry {
			return lk, err
		}

		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("%w: gave up after %s", ErrWouldBlock, timeout)
		}

		time.Sleep(min(wait, left))
		wait = min(2*wait, lockPollMax)
	}
}

// attempt makes one non-blocking try. retry is true when the lock is busy or
// the lock file was swapped out underneath us.
func (l *Locker) attempt(path string) (lk *Lock, retry bool, err error) {
	file, err := l.open(path)
	if err != nil {
		return nil, false, fmt.Errorf("opening lockfile: %w", err)
	}

	err = l.flockAndVerify(file, path)
	if err == nil {
		return &Lock{file: file, flock: l.flock}, false, nil
	}

	_ = file.Close()

	if errors.Is(err, ErrWouldBlock) || errors.Is(err, errLockReplaced) {
		return nil, true, nil
	}

	return nil, false, err
}

// flockAndVerify locks file and makes sure it is still the file at path. The
// lock is dropped again if it is not.
func (l *Locker) flockAndVerify(file File, path string) error {
	fd := int(file.Fd())

	err := retryEINTR(l.flock, fd, unix.LOCK_EX|unix.LOCK_NB)
	switch {
	case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, unix.EAGAIN):
		return ErrWouldBlock
	case err != nil:
		return fmt.Errorf("flock: %w", err)
	}

	same, err := l.sameFile(file, path)
	if err == nil && same {
		return nil
	}

	_ = retryEINTR(l.flock, fd, unix.LOCK_UN)

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking lock file: %w", err)
	}

	return errLockReplaced
}

func (l *Locker) open(path string) (File, error) {
	f, err := l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
	if !errors.Is(err, os.ErrNotExist) {
		return f, err
	}

	if err := l.fs.MkdirAll(filepath.Dir(path), lockDirPerm); err != nil {
		return nil, err
	}

	return l.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, lockFilePerm)
}

// sameFile reports whether the open file and the file at path share a
// device and inode.
func (l *Locker) sameFile(f File, path string) (bool, error) {
	held, err := f.Stat()
	if err != nil {
		return false, err
	}

	current, err := l.fs.Stat(path)
	if err != nil {
		return false, err
	}

	a, okA := held.Sys().(*syscall.Stat_t)
	b, okB := current.Sys().(*syscall.Stat_t)

	if !okA || !okB || a == nil || b == nil {
		return false, fmt.Errorf("no stat_t for lock file (got %T and %T)", held.Sys(), current.Sys())
	}

	return a.Dev == b.Dev && a.Ino == b.Ino, nil
}

// retryEINTR calls flock again while it is interrupted by a signal, up to a
// fixed number of times.
func retryEINTR(flock func(fd int, how int) error, fd int, how int) error {
	var err error

	for i := 0; i < 1000; i++ {
		if err = flock(fd, how); !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}
