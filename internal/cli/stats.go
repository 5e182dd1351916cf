package cli

import (
	"context"

	"github.com/calvinalkan/td/internal/task"

	flag "github.com/spf13/pflag"
)

// StatsCmd returns the stats command.
func StatsCmd(sess *Session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("stats", flag.ContinueOnError),
		Usage: "stats",
		Short: "Progress summary",
		Long:  "Show completion progress over all tasks, regardless of any filter.",
		Exec: func(_ context.Context, io *IO, args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}

			tasks, err := sess.tasks(io)
			if err != nil {
				return err
			}

			summary := task.Summarize(tasks)
			io.Println(summary.Progress())
			io.Println(summary.Quick())

			return nil
		},
	}
}
