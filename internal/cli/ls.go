package cli

import (
	"context"
	"strings"

	"github.com/calvinalkan/td/internal/task"

	flag "github.com/spf13/pflag"
)

// LsCmd returns the ls command.
func LsCmd(sess *Session) *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.StringP("filter", "F", "all", "Filter: "+filterNames())

	return &Command{
		Flags: fs,
		Usage: "ls [flags]",
		Short: "List tasks",
		Long: `List tasks. Pending tasks come first, then completed ones.
Within each group tasks are ordered High, Medium, Low, oldest first.`,
		Exec: func(_ context.Context, io *IO, args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}

			return execLs(io, sess, fs)
		},
	}
}

func execLs(io *IO, sess *Session, fs *flag.FlagSet) error {
	name, _ := fs.GetString("filter")

	filter, ok := task.ParseFilter(name)
	if !ok {
		io.Warn("unknown filter "+name, "showing all tasks (valid: "+filterNames()+")")
	}

	tasks, err := sess.tasks(io)
	if err != nil {
		return err
	}

	view := task.Project(tasks, filter)
	if len(view) == 0 {
		io.Println("No tasks found")

		return nil
	}

	for _, t := range view {
		io.Println(formatTaskLine(t))
	}

	return nil
}

func filterNames() string {
	names := make([]string, len(task.Filters))
	for i, f := range task.Filters {
		names[i] = f.String()
	}

	return strings.Join(names, "|")
}
