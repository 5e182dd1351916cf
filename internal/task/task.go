// Package task holds the task records, the file-backed store that owns them,
// the filtered views the CLI renders, and the configuration that locates the
// tasks file.
package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Priority is the priority label of a task.
//
// Only [PriorityHigh], [PriorityMedium] and [PriorityLow] can be assigned
// through the store. Other values read from a tasks file are kept verbatim and
// sort after the known ones.
type Priority string

// Priorities, in rank order.
const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// DefaultPriority is used when no priority is given.
const DefaultPriority = PriorityMedium

// Rank orders priorities for display: High=0, Medium=1, Low=2, anything else 3.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Valid reports whether p is one of the three known priorities.
func (p Priority) Valid() bool {
	return p.Rank() < 3
}

// ParsePriority parses user input like "high", "H" or "Medium".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "h":
		return PriorityHigh, nil
	case "medium", "med", "m":
		return PriorityMedium, nil
	case "low", "l":
		return PriorityLow, nil
	default:
		return "", fmt.Errorf("%w: %w: %q", ErrValidation, errInvalidPriority, s)
	}
}

var errNullTask = errors.New("task is null")

// TimeLayout is the on-disk timestamp format. Timestamps have minute
// resolution and are written in local time.
const TimeLayout = "2006-01-02 15:04"

// Task is a single to-do record.
type Task struct {
	ID          int
	Text        string
	Priority    Priority
	Completed   bool
	CreatedAt   time.Time
	CompletedAt *time.Time // set iff Completed

	// Extra holds object fields this version does not know about. They are
	// written back unchanged after the known fields.
	Extra map[string]json.RawMessage
}

// Known field names, in the order they are written.
const (
	fieldID          = "id"
	fieldText        = "text"
	fieldPriority    = "priority"
	fieldCompleted   = "completed"
	fieldCreatedAt   = "created_at"
	fieldCompletedAt = "completed_at"
)

func isKnownField(name string) bool {
	switch name {
	case fieldID, fieldText, fieldPriority, fieldCompleted, fieldCreatedAt, fieldCompletedAt:
		return true
	}

	return false
}

// clone returns a copy that shares no mutable state with t.
func (t Task) clone() Task {
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		t.CompletedAt = &at
	}

	if t.Extra != nil {
		t.Extra = maps.Clone(t.Extra)
	}

	return t
}

type jsonField struct {
	name  string
	value any
}

// MarshalJSON writes the known fields in file order followed by Extra sorted
// by key.
func (t Task) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	first := true
	write := func(name string, value any) error {
		raw, err := marshalNoEscape(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}

		if !first {
			buf.WriteByte(',')
		}

		first = false

		key, _ := marshalNoEscape(name)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(raw)

		return nil
	}

	fields := []jsonField{
		{fieldID, t.ID},
		{fieldText, t.Text},
		{fieldPriority, string(t.Priority)},
		{fieldCompleted, t.Completed},
		{fieldCreatedAt, formatTime(t.CreatedAt)},
	}

	if t.CompletedAt != nil {
		fields = append(fields, jsonField{fieldCompletedAt, formatTime(*t.CompletedAt)})
	}

	for _, f := range fields {
		if err := write(f.name, f.value); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(t.Extra))
	for name := range t.Extra {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if err := write(name, t.Extra[name]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON reads a task object. id, text and created_at are required;
// priority defaults to Medium and completed to false.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw == nil {
		return errNullTask
	}

	var out Task

	if err := decodeField(raw, fieldID, true, &out.ID); err != nil {
		return err
	}

	if err := decodeField(raw, fieldText, true, &out.Text); err != nil {
		return err
	}

	out.Priority = DefaultPriority
	if err := decodeField(raw, fieldPriority, false, &out.Priority); err != nil {
		return err
	}

	if err := decodeField(raw, fieldCompleted, false, &out.Completed); err != nil {
		return err
	}

	var created string
	if err := decodeField(raw, fieldCreatedAt, true, &created); err != nil {
		return err
	}

	createdAt, err := parseTime(created)
	if err != nil {
		return fmt.Errorf("field %s: %w", fieldCreatedAt, err)
	}

	out.CreatedAt = createdAt

	var completed *string
	if err := decodeField(raw, fieldCompletedAt, false, &completed); err != nil {
		return err
	}

	if completed != nil {
		at, err := parseTime(*completed)
		if err != nil {
			return fmt.Errorf("field %s: %w", fieldCompletedAt, err)
		}

		out.CompletedAt = &at
	}

	for name, value := range raw {
		if isKnownField(name) {
			continue
		}

		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}

		out.Extra[name] = value
	}

	*t = out

	return nil
}

func decodeField(raw map[string]json.RawMessage, name string, required bool, dst any) error {
	value, ok := raw[name]
	if !ok {
		if required {
			return fmt.Errorf("missing field: %s", name)
		}

		return nil
	}

	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}

	return nil
}

// validate checks the record invariants of a decoded task.
func (t *Task) validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("id must be positive, got %d", t.ID)
	}

	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("task %d: %w", t.ID, errTextEmpty)
	}

	if t.Completed != (t.CompletedAt != nil) {
		return fmt.Errorf("task %d: completed=%t but completed_at present=%t", t.ID, t.Completed, t.CompletedAt != nil)
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.Local().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.Local)
}

// marshalNoEscape marshals v without HTML escaping, so text like "a & b" is
// stored as typed.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
