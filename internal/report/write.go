// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docbatch/pkg/types"
)

// fileStamp is the timestamp layout embedded in report file names.
const fileStamp = "20060102_150405"

// FileName returns the report file name for a run finished at now.
func FileName(now time.Time, format types.ReportFormat) string {
	ext := ".txt"
	switch format {
	case types.ReportYAML:
		ext = ".yaml"
	case types.ReportJSON:
		ext = ".json"
	}
	return "conversion_report_" + now.Format(fileStamp) + ext
}

// document is the persisted structure for YAML and JSON reports.
type document struct {
	GeneratedAt time.Time               `json:"generated_at" yaml:"generated_at"`
	Source      string                  `json:"source" yaml:"source"`
	Destination string                  `json:"destination" yaml:"destination"`
	Format      types.TargetFormat      `json:"format" yaml:"format"`
	Interrupted bool                    `json:"interrupted" yaml:"interrupted"`
	Elapsed     string                  `json:"elapsed" yaml:"elapsed"`
	Counts      counts                  `json:"counts" yaml:"counts"`
	Failures    []failureEntry          `json:"failures" yaml:"failures"`
	Unsupported []string                `json:"unsupported" yaml:"unsupported"`
	Quarantined []types.QuarantineEntry `json:"quarantined" yaml:"quarantined"`
}

type counts struct {
	Total       int `json:"total" yaml:"total"`
	Converted   int `json:"converted" yaml:"converted"`
	Failed      int `json:"failed" yaml:"failed"`
	Unsupported int `json:"unsupported" yaml:"unsupported"`
	Quarantined int `json:"quarantined" yaml:"quarantined"`
	Cancelled   int `json:"cancelled" yaml:"cancelled"`
}

type failureEntry struct {
	Name        string          `json:"name" yaml:"name"`
	Kind        types.ErrorKind `json:"kind" yaml:"kind"`
	Description string          `json:"description" yaml:"description"`
	Detail      string          `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Write persists the untruncated report into dir and returns its path.
func Write(dir string, r types.Report, format types.ReportFormat, now time.Time) (string, error) {
	r = Sorted(r)

	var data []byte
	var err error
	switch format {
	case types.ReportYAML:
		data, err = yaml.Marshal(newDocument(r, now))
	case types.ReportJSON:
		data, err = json.MarshalIndent(newDocument(r, now), "", "  ")
	case types.ReportText, "":
		data = []byte(Text(r, now))
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("marshaling %s report: %w", format, err)
	}

	path := filepath.Join(dir, FileName(now, format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

// Text renders the full plain-text report with every list untruncated.
func Text(r types.Report, now time.Time) string {
	r = Sorted(r)
	var b strings.Builder

	b.WriteString("Conversion report\n")
	fmt.Fprintf(&b, "Generated: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source: %s\n", r.Source)
	fmt.Fprintf(&b, "Destination: %s\n", r.Destination)
	fmt.Fprintf(&b, "Target format: %s\n", strings.ToUpper(string(r.Format)))
	fmt.Fprintf(&b, "Elapsed: %s\n", FormatElapsed(r.Elapsed))
	if r.Interrupted {
		b.WriteString("Status: interrupted\n")
	}
	b.WriteString("\n")
	writeCounts(&b, r)

	failures := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = FailureLine(f)
	}
	writeList(&b, "Errors", failures, 0)
	writeList(&b, "Unsupported files", r.Unsupported, 0)

	protected := make([]string, len(r.Quarantined))
	for i, q := range r.Quarantined {
		switch {
		case q.Err != "":
			protected[i] = fmt.Sprintf("%s (copy failed: %s)", q.Name, q.Err)
		case q.Path != "":
			protected[i] = fmt.Sprintf("%s -> %s", q.Name, q.Path)
		default:
			protected[i] = q.Name
		}
	}
	writeList(&b, "Password-protected files", protected, 0)
	return b.String()
}

func newDocument(r types.Report, now time.Time) document {
	failures := make([]failureEntry, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = failureEntry{Name: f.Name, Kind: f.Kind, Description: Describe(f.Kind), Detail: f.Detail}
	}
	return document{
		GeneratedAt: now,
		Source:      r.Source,
		Destination: r.Destination,
		Format:      r.Format,
		Interrupted: r.Interrupted,
		Elapsed:     FormatElapsed(r.Elapsed),
		Counts: counts{
			Total:       r.Total(),
			Converted:   r.Converted,
			Failed:      r.FailedCount(),
			Unsupported: r.SkippedCount(),
			Quarantined: r.QuarantinedCount(),
			Cancelled:   r.Cancelled,
		},
		Failures:    failures,
		Unsupported: r.Unsupported,
		Quarantined: r.Quarantined,
	}
}
