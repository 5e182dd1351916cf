package cli

import (
	"context"

	"github.com/calvinalkan/td/internal/task"

	flag "github.com/spf13/pflag"
)

// RmCmd returns the rm command.
func RmCmd(sess *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("rm", flag.ContinueOnError),
		Usage: "rm <id>",
		Short: "Delete a task",
		Long:  "Delete a task. Removing an id that does not exist is not an error.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execRm(io, sess, args)
		},
	}
}

func execRm(io *IO, sess *Session, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	return sess.update(io, func(st *task.Store) error {
		removed, err := st.Delete(id)
		if err != nil {
			return err
		}

		if removed {
			io.Printf("Deleted %d\n", id)
		} else {
			io.Printf("No task %d\n", id)
		}

		return nil
	})
}
