package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/calvinalkan/td/internal/task"

	flag "github.com/spf13/pflag"
)

var errTextRequired = errors.New("task text is required")

// AddCmd returns the add command.
func AddCmd(sess *Session) *Command {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.StringP("priority", "p", "", "Priority: high|medium|low (default from config)")

	return &Command{
		Flags: fs,
		Usage: "add <text> [flags]",
		Short: "Create a task, prints its id",
		Long: `Create a new task. Prints the task id on success.

All positional arguments are joined with spaces to form the text.`,
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execAdd(io, sess, fs, args)
		},
	}
}

func execAdd(io *IO, sess *Session, fs *flag.FlagSet, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errTextRequired
	}

	value, _ := fs.GetString("priority")

	priority, err := parsePriorityFlag(value, fs.Changed("priority"), sess.defaultPriority())
	if err != nil {
		return err
	}

	return sess.update(io, func(st *task.Store) error {
		t, err := st.Create(text, priority)
		if err != nil {
			return err
		}

		io.Println(t.ID)

		return nil
	})
}
