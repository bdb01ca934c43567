// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// OutcomeKind is the terminal state of one source file.
type OutcomeKind string

const (
	OutcomeConverted   OutcomeKind = "converted"
	OutcomeFailed      OutcomeKind = "failed"
	OutcomeSkipped     OutcomeKind = "skipped"
	OutcomeQuarantined OutcomeKind = "quarantined"
	// OutcomeCancelled marks queued work abandoned by cancellation. It is
	// excluded from the run total.
	OutcomeCancelled OutcomeKind = "cancelled"
)

// ErrorKind is the coarse category of a per-file failure.
type ErrorKind string

const (
	ErrNotFound          ErrorKind = "not_found"
	ErrPermission        ErrorKind = "permission_denied"
	ErrNotADirectory     ErrorKind = "not_a_directory"
	ErrOutOfMemory       ErrorKind = "out_of_memory"
	ErrTimeout           ErrorKind = "timeout"
	ErrTypeMismatch      ErrorKind = "type_mismatch"
	ErrMissingDependency ErrorKind = "missing_dependency"
	ErrDecode            ErrorKind = "decode"
	ErrEncode            ErrorKind = "encode"
	ErrIO                ErrorKind = "io"
	ErrConflict          ErrorKind = "destination_conflict"
	ErrUnknown           ErrorKind = "unknown"
)

// ConversionError is returned by conversion strategies. Kind is the category
// reported to the user; Op names the step that failed.
type ConversionError struct {
	Kind ErrorKind
	Op   string
	Path string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// JobOutcome records what happened to one source file. It is produced exactly
// once per SourceFile and never mutated afterwards.
type JobOutcome struct {
	File      SourceFile  `json:"file" yaml:"file"`
	Kind      OutcomeKind `json:"kind" yaml:"kind"`
	ErrKind   ErrorKind   `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Detail    string      `json:"detail,omitempty" yaml:"detail,omitempty"`
	Artifacts []string    `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}
