package cli

import (
	"context"
	"fmt"

	"github.com/calvinalkan/td/internal/task"

	flag "github.com/spf13/pflag"
)

// ShowCmd returns the show command.
func ShowCmd(sess *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <id>",
		Short: "Show one task",
		Long:  "Display all fields of a task.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execShow(io, sess, args)
		},
	}
}

func execShow(io *IO, sess *Session, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	tasks, err := sess.tasks(io)
	if err != nil {
		return err
	}

	for _, t := range tasks {
		if t.ID == id {
			io.Printf("%s", formatTask(t, sess.Now()))

			return nil
		}
	}

	return fmt.Errorf("%w: %d", task.ErrNotFound, id)
}
