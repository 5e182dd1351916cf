package task

import "errors"

// Store errors. Callers match them with errors.Is; the returned errors carry
// the offending id, path or cause in their message.
var (
	ErrValidation  = errors.New("invalid task")
	ErrNotFound    = errors.New("task not found")
	ErrPersistence = errors.New("cannot save tasks")
	ErrDecode      = errors.New("cannot decode tasks file")
	ErrLocked      = errors.New("tasks file is locked by another process")
)

// Validation details, always wrapped together with [ErrValidation].
var (
	errTextEmpty       = errors.New("text cannot be empty")
	errInvalidPriority = errors.New("invalid priority (must be High, Medium or Low)")
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrTasksFileEmpty     = errors.New("tasks-file cannot be empty")
)
