package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/calvinalkan/td/internal/task"

	"github.com/dustin/go-humanize"
)

var (
	errIDRequired = errors.New("task id is required")
	errInvalidID  = errors.New("invalid task id")
)

// parseID reads the task id from the first positional argument.
func parseID(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errIDRequired
	}

	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", errInvalidID, args[0])
	}

	return id, nil
}

// formatTaskLine renders one list row: "3 [x] High   Buy milk".
func formatTaskLine(t task.Task) string {
	mark := " "
	if t.Completed {
		mark = "x"
	}

	return fmt.Sprintf("%d [%s] %-6s %s", t.ID, mark, t.Priority, t.Text)
}

// formatTask renders the key=value detail view used by show. The age line is
// relative to now.
func formatTask(t task.Task, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "id=%d\n", t.ID)
	fmt.Fprintf(&b, "text=%s\n", t.Text)
	fmt.Fprintf(&b, "priority=%s\n", t.Priority)
	fmt.Fprintf(&b, "completed=%t\n", t.Completed)
	fmt.Fprintf(&b, "created_at=%s\n", t.CreatedAt.Format(task.TimeLayout))
	fmt.Fprintf(&b, "age=%s\n", humanize.RelTime(t.CreatedAt, now, "ago", "from now"))

	if t.CompletedAt != nil {
		fmt.Fprintf(&b, "completed_at=%s\n", t.CompletedAt.Format(task.TimeLayout))
	}

	return b.String()
}

// parsePriorityFlag returns fallback when the flag was not given.
func parsePriorityFlag(value string, changed bool, fallback task.Priority) (task.Priority, error) {
	if !changed {
		return fallback, nil
	}

	return task.ParsePriority(value)
}
