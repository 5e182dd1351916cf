package cli

import (
	"context"

	"github.com/calvinalkan/td/internal/task"

	flag "github.com/spf13/pflag"
)

// DoneCmd returns the done command.
func DoneCmd(sess *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("done", flag.ContinueOnError),
		Usage: "done <id>",
		Short: "Toggle completion",
		Long: `Mark a pending task as completed, or reopen a completed one.
Prints the new state.`,
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execDone(io, sess, args)
		},
	}
}

func execDone(io *IO, sess *Session, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	return sess.update(io, func(st *task.Store) error {
		t, err := st.Toggle(id)
		if err != nil {
			return err
		}

		if t.Completed {
			io.Printf("Completed %d at %s\n", t.ID, t.CompletedAt.Format(task.TimeLayout))
		} else {
			io.Printf("Reopened %d\n", t.ID)
		}

		return nil
	})
}
