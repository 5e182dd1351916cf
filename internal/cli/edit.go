package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/calvinalkan/td/internal/task"

	flag "github.com/spf13/pflag"
)

var errNothingToEdit = errors.New("nothing to change: give new text and/or --priority")

// EditCmd returns the edit command.
func EditCmd(sess *Session) *Command {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.StringP("priority", "p", "", "New priority: high|medium|low")

	return &Command{
		Flags: fs,
		Usage: "edit <id> [text] [flags]",
		Short: "Change text and/or priority",
		Long: `Change the text and/or priority of a task.
Completion state and timestamps are kept.`,
		Exec: func(_ context.Context, io *IO, args []string) error {
			return execEdit(io, sess, fs, args)
		},
	}
}

func execEdit(io *IO, sess *Session, fs *flag.FlagSet, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	text := strings.Join(args[1:], " ")
	if len(args) > 1 && strings.TrimSpace(text) == "" {
		return errTextRequired
	}

	if len(args) == 1 && !fs.Changed("priority") {
		return errNothingToEdit
	}

	value, _ := fs.GetString("priority")

	return sess.update(io, func(st *task.Store) error {
		current, err := st.Get(id)
		if err != nil {
			return err
		}

		priority, err := parsePriorityFlag(value, fs.Changed("priority"), current.Priority)
		if err != nil {
			return err
		}

		if text == "" {
			text = current.Text
		}

		t, err := st.Update(id, text, priority)
		if err != nil {
			return err
		}

		io.Println(formatTaskLine(t))

		return nil
	})
}
