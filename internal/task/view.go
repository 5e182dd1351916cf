package task

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Filter selects which tasks a projection shows.
type Filter int

// Filters. The zero value is [FilterAll].
const (
	FilterAll Filter = iota
	FilterPending
	FilterCompleted
	FilterHighPriority
	FilterMediumPriority
	FilterLowPriority
)

// Filters lists every filter in display order.
var Filters = []Filter{
	FilterAll,
	FilterPending,
	FilterCompleted,
	FilterHighPriority,
	FilterMediumPriority,
	FilterLowPriority,
}

func (f Filter) String() string {
	switch f {
	case FilterAll:
		return "all"
	case FilterPending:
		return "pending"
	case FilterCompleted:
		return "completed"
	case FilterHighPriority:
		return "high"
	case FilterMediumPriority:
		return "medium"
	case FilterLowPriority:
		return "low"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// ParseFilter maps user input to a filter. Matching is case-insensitive and
// accepts an optional "-priority" suffix on priority filters ("high-priority").
//
// Unknown input returns [FilterAll] and false.
func ParseFilter(s string) (Filter, bool) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "-priority")

	switch name {
	case "all", "":
		return FilterAll, true
	case "pending", "open":
		return FilterPending, true
	case "completed", "done":
		return FilterCompleted, true
	case "high":
		return FilterHighPriority, true
	case "medium":
		return FilterMediumPriority, true
	case "low":
		return FilterLowPriority, true
	default:
		return FilterAll, false
	}
}

// Match reports whether t is selected by f. Values outside the defined
// filters select everything, like [FilterAll].
func (f Filter) Match(t Task) bool {
	switch f {
	case FilterAll:
		return true
	case FilterPending:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	case FilterHighPriority:
		return t.Priority == PriorityHigh
	case FilterMediumPriority:
		return t.Priority == PriorityMedium
	case FilterLowPriority:
		return t.Priority == PriorityLow
	default:
		return true
	}
}

// Project returns the tasks selected by f in display order: pending before
// completed, then by priority rank, ties kept in input order.
//
// The input is not modified. The result is never nil.
func Project(tasks []Task, f Filter) []Task {
	out := make([]Task, 0, len(tasks))

	for _, t := range tasks {
		if f.Match(t) {
			out = append(out, t)
		}
	}

	slices.SortStableFunc(out, compareDisplay)

	return out
}

func compareDisplay(a, b Task) int {
	if a.Completed != b.Completed {
		if a.Completed {
			return 1
		}

		return -1
	}

	return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
}

// Summary holds aggregate counts over a set of tasks.
type Summary struct {
	Total     int
	Completed int
	Pending   int
	Percent   int // floor(Completed*100/Total); 0 when Total is 0
}

// Summarize counts tasks. Pass the full store contents, not a projection.
func Summarize(tasks []Task) Summary {
	s := Summary{Total: len(tasks)}

	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}

	s.Pending = s.Total - s.Completed

	if s.Total > 0 {
		s.Percent = s.Completed * 100 / s.Total
	}

	return s
}

// Empty reports whether there are no tasks yet.
func (s Summary) Empty() bool {
	return s.Total == 0
}

// Progress is the one-line progress indicator.
func (s Summary) Progress() string {
	if s.Empty() {
		return "Ready to be productive!"
	}

	return fmt.Sprintf("Progress: %d/%d tasks completed (%d%%)", s.Completed, s.Total, s.Percent)
}

// Quick is the compact count line.
func (s Summary) Quick() string {
	return fmt.Sprintf("Total: %d • Completed: %d • Pending: %d", s.Total, s.Completed, s.Pending)
}
