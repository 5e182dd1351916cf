package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/calvinalkan/td/internal/fs"
	"github.com/calvinalkan/td/internal/task"
)

// lockWait bounds how long a one-shot command waits for another td process
// to release the tasks file.
const lockWait = 2 * time.Second

// Session is the state shared by all commands of one invocation.
type Session struct {
	Config *task.Config
	FS     fs.FS
	Now    func() time.Time
	In     io.Reader
	Env    map[string]string

	// store is held open by the shell for its whole lifetime. One-shot
	// commands leave it nil and open the file per call.
	store *task.Store
}

// tasks returns all tasks for display.
//
// Read-only commands never lock or rewrite the file. A corrupt file is
// reported as a warning and shows as empty when recover_corrupt is on.
func (s *Session) tasks(o *IO) ([]task.Task, error) {
	if s.store != nil {
		return s.store.List(), nil
	}

	st, err := task.Open(s.FS, s.Config.TasksFileAbs, task.Options{Now: s.Now})
	if err != nil {
		if errors.Is(err, task.ErrDecode) && s.Config.RecoverCorrupt {
			o.Warn(err.Error(), "showing no tasks; the next change will move the file aside")

			return []task.Task{}, nil
		}

		return nil, err
	}

	defer func() { _ = st.Close() }()

	return st.List(), nil
}

// update runs fn against a locked store.
func (s *Session) update(o *IO, fn func(st *task.Store) error) error {
	if s.store != nil {
		return fn(s.store)
	}

	st, err := s.openLocked(o, task.Options{Now: s.Now, Lock: true, LockTimeout: lockWait})
	if err != nil {
		return err
	}

	defer func() { _ = st.Close() }()

	return fn(st)
}

// openLocked opens the tasks file for writing. A corrupt file is moved aside
// and replaced by an empty store when recover_corrupt is on.
func (s *Session) openLocked(o *IO, opts task.Options) (*task.Store, error) {
	path := s.Config.TasksFileAbs

	st, err := task.Open(s.FS, path, opts)
	if err == nil {
		return st, nil
	}

	if !errors.Is(err, task.ErrDecode) || !s.Config.RecoverCorrupt {
		return nil, err
	}

	moved, qerr := task.Quarantine(s.FS, path, s.Now())
	if qerr != nil {
		return nil, fmt.Errorf("%w (recovery failed: %w)", err, qerr)
	}

	o.Warn(err.Error(), "moved to "+moved+", starting with an empty list")

	return task.Open(s.FS, path, opts)
}

func (s *Session) defaultPriority() task.Priority {
	if s.Config.DefaultPriority == "" {
		return task.DefaultPriority
	}

	return s.Config.DefaultPriority
}
