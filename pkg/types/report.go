// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Failure describes one file that could not be converted.
type Failure struct {
	Name   string    `json:"name" yaml:"name"`
	Kind   ErrorKind `json:"kind" yaml:"kind"`
	Detail string    `json:"detail" yaml:"detail"`
}

// QuarantineEntry describes one password-protected file copied aside.
// Err is empty when the copy succeeded.
type QuarantineEntry struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
	Err  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the aggregated outcome of a conversion run.
type Report struct {
	Source      string       `json:"source" yaml:"source"`
	Destination string       `json:"destination" yaml:"destination"`
	Format      TargetFormat `json:"format" yaml:"format"`

	// Discovered counts every candidate file found by the walk.
	Discovered int `json:"discovered" yaml:"discovered"`

	// Converted counts source files converted successfully.
	Converted int `json:"converted" yaml:"converted"`

	// Cancelled counts files abandoned before they started.
	Cancelled int `json:"cancelled" yaml:"cancelled"`

	Failures    []Failure         `json:"failures" yaml:"failures"`
	Unsupported []string          `json:"unsupported" yaml:"unsupported"`
	Quarantined []QuarantineEntry `json:"quarantined" yaml:"quarantined"`

	// Interrupted is set when the run was cancelled.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`

	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`

	// ReportPath is the persisted report file, if one was written.
	ReportPath string `json:"report_path,omitempty" yaml:"report_path,omitempty"`
}

// FailedCount returns the number of failed files.
func (r Report) FailedCount() int { return len(r.Failures) }

// SkippedCount returns the number of unsupported files.
func (r Report) SkippedCount() int { return len(r.Unsupported) }

// QuarantinedCount returns the number of protected files diverted to quarantine.
func (r Report) QuarantinedCount() int { return len(r.Quarantined) }

// Total returns the number of files accounted for by the run. Cancelled
// files are excluded.
func (r Report) Total() int {
	return r.Converted + r.FailedCount() + r.SkippedCount() + r.QuarantinedCount()
}

// HasFailures reports whether any file failed conversion.
func (r Report) HasFailures() bool {
	return len(r.Failures) > 0
}

// HasEntries reports whether the run produced anything worth persisting in
// an itemised report.
func (r Report) HasEntries() bool {
	return len(r.Failures) > 0 || len(r.Unsupported) > 0 || len(r.Quarantined) > 0
}

// QuarantineStats returns total, copied, and failed counts for protected files.
func (r Report) QuarantineStats() (total, copied, failed int) {
	for _, q := range r.Quarantined {
		if q.Err == "" {
			copied++
		} else {
			failed++
		}
	}
	return len(r.Quarantined), copied, failed
}
