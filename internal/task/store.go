package task

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/calvinalkan/td/internal/fs"
)

// Options configures [Open].
type Options struct {
	// Now returns the current time. Defaults to [time.Now].
	Now func() time.Time

	// Lock takes an exclusive, non-blocking lock on "<path>.lock" for the
	// lifetime of the store. Open fails with [ErrLocked] if another process
	// holds it. Read-only callers can leave this off.
	Lock bool

	// LockTimeout makes Open wait up to this long for the lock instead of
	// failing immediately. Ignored unless Lock is set.
	LockTimeout time.Duration
}

// Store is the authoritative collection of tasks plus its backing file.
//
// Every mutator persists the full collection before returning. Mutations are
// all-or-nothing: if the write fails the in-memory state is left as it was
// and the error wraps [ErrPersistence].
//
// Store is not safe for concurrent use.
type Store struct {
	fs   fs.FS
	path string
	now  func() time.Time
	lock *fs.Lock

	tasks  []Task
	lastID int // highest id ever issued
	seqID  int // high-water mark as last seen in the sidecar file
}

// Open loads the tasks file at path and returns a store over it. A missing
// file is an empty store; the file is created on the first mutation.
//
// If the file cannot be decoded, Open returns an error wrapping [ErrDecode]
// and no store. Callers decide whether to abort or [Quarantine] the file and
// open again.
func Open(fsys fs.FS, path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, ErrTasksFileEmpty
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{fs: fsys, path: path, now: now}

	if opts.Lock {
		lock, err := acquireLock(fsys, path, opts.LockTimeout)
		if err != nil {
			if errors.Is(err, fs.ErrWouldBlock) {
				return nil, fmt.Errorf("%w: %s", ErrLocked, path)
			}

			return nil, fmt.Errorf("lock %s: %w", path, err)
		}

		s.lock = lock
	}

	if err := s.Load(); err != nil {
		_ = s.Close()

		return nil, err
	}

	return s, nil
}

func acquireLock(fsys fs.FS, path string, timeout time.Duration) (*fs.Lock, error) {
	locker := fs.NewLocker(fsys)
	if timeout > 0 {
		return locker.LockWithTimeout(path+".lock", timeout)
	}

	return locker.TryLock(path + ".lock")
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the store lock, if one was taken. The store must not be used
// afterwards.
func (s *Store) Close() error {
	if s.lock == nil {
		return nil
	}

	err := s.lock.Close()
	s.lock = nil

	return err
}

// Load replaces the in-memory collection with the contents of the backing
// file. On error the current collection is kept.
func (s *Store) Load() error {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if !isNotExist(err) {
			return fmt.Errorf("read %s: %w", s.path, err)
		}

		data = nil
	}

	tasks, err := decodeTasks(data)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrDecode, s.path, err)
	}

	seqID := readLastID(s.fs, s.path)

	lastID := seqID
	for _, t := range tasks {
		lastID = max(lastID, t.ID)
	}

	s.tasks = tasks
	s.lastID = lastID
	s.seqID = seqID

	return nil
}

// Persist writes the full collection to the backing file.
func (s *Store) Persist() error {
	return s.commit(s.tasks, s.lastID)
}

// List returns a copy of all tasks in insertion order.
func (s *Store) List() []Task {
	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.clone()
	}

	return out
}

// Get returns a copy of the task with the given id.
func (s *Store) Get(id int) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return s.tasks[i].clone(), nil
}

// Create adds a task and returns it. text is trimmed; an empty priority means
// [DefaultPriority].
func (s *Store) Create(text string, priority Priority) (Task, error) {
	text, priority, err := normalize(text, priority)
	if err != nil {
		return Task{}, err
	}

	t := Task{
		ID:        s.lastID + 1,
		Text:      text,
		Priority:  priority,
		CreatedAt: s.timestamp(),
	}

	next := append(slices.Clip(s.tasks), t)

	if err := s.commit(next, t.ID); err != nil {
		return Task{}, err
	}

	return t.clone(), nil
}

// Toggle flips the completion state of a task. Completing sets CompletedAt to
// now; reopening clears it.
func (s *Store) Toggle(id int) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	t := s.tasks[i].clone()
	t.Completed = !t.Completed

	if t.Completed {
		at := s.timestamp()
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}

	if err := s.replace(i, t); err != nil {
		return Task{}, err
	}

	return t.clone(), nil
}

// Update replaces the text and priority of a task. Id, completion state and
// timestamps are left untouched.
func (s *Store) Update(id int, text string, priority Priority) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	t := s.tasks[i].clone()

	// A priority read from the file may be one we don't know. Keeping it
	// is fine, assigning it is not.
	if priority == t.Priority {
		text = strings.TrimSpace(text)
		if text == "" {
			return Task{}, fmt.Errorf("%w: %w", ErrValidation, errTextEmpty)
		}
	} else {
		var err error

		text, priority, err = normalize(text, priority)
		if err != nil {
			return Task{}, err
		}
	}

	t.Text = text
	t.Priority = priority

	if err := s.replace(i, t); err != nil {
		return Task{}, err
	}

	return t.clone(), nil
}

// Delete removes a task. Deleting an absent id is not an error; the returned
// bool reports whether a task was removed. The collection is persisted either
// way.
func (s *Store) Delete(id int) (bool, error) {
	next := slices.DeleteFunc(slices.Clone(s.tasks), func(t Task) bool {
		return t.ID == id
	})
	removed := len(next) < len(s.tasks)

	if err := s.commit(next, s.lastID); err != nil {
		return false, err
	}

	return removed, nil
}

func (s *Store) replace(i int, t Task) error {
	next := slices.Clone(s.tasks)
	next[i] = t

	return s.commit(next, s.lastID)
}

// commit persists next and, on success, makes it the current state.
//
// The id high-water mark is written before the tasks file. If the tasks write
// then fails, an id is skipped but never reused.
func (s *Store) commit(next []Task, lastID int) error {
	data, err := encodeTasks(next)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrPersistence, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, dirPerms); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
	}

	if lastID > s.seqID {
		if err := writeLastID(s.fs, s.path, lastID); err != nil {
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}

		s.seqID = lastID
	}

	if err := s.fs.WriteFileAtomic(s.path, data, filePerms); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.tasks = next
	s.lastID = lastID

	return nil
}

func (s *Store) index(id int) int {
	return slices.IndexFunc(s.tasks, func(t Task) bool { return t.ID == id })
}

func (s *Store) timestamp() time.Time {
	return s.now().Truncate(time.Minute)
}

func normalize(text string, priority Priority) (string, Priority, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", fmt.Errorf("%w: %w", ErrValidation, errTextEmpty)
	}

	if priority == "" {
		priority = DefaultPriority
	}

	if !priority.Valid() {
		return "", "", fmt.Errorf("%w: %w: %q", ErrValidation, errInvalidPriority, priority)
	}

	return text, priority, nil
}
