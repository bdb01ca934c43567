// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders run outcomes: the live per-file status line, the
// truncated end-of-run summary, and the persisted itemised report written
// into the destination root.
package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pdiddy/docbatch/pkg/types"
)

// Summary list limits. Longer lists end with an "N omitted" line.
const (
	MaxFailures    = 10
	MaxUnsupported = 3
	MaxProtected   = 5
)

var phrases = map[types.ErrorKind]string{
	types.ErrNotFound:          "file not found",
	types.ErrPermission:        "permission denied",
	types.ErrNotADirectory:     "a path component is not a directory",
	types.ErrOutOfMemory:       "not enough memory to process the file",
	types.ErrTimeout:           "conversion timed out",
	types.ErrTypeMismatch:      "file content does not match its extension",
	types.ErrMissingDependency: "a required conversion tool is not installed",
	types.ErrDecode:            "file could not be read",
	types.ErrEncode:            "output could not be written",
	types.ErrIO:                "input/output error",
	types.ErrConflict:          "another file already converts to the same destination",
	types.ErrUnknown:           "unexpected error",
}

// Describe returns the user-facing phrase for an error kind.
func Describe(kind types.ErrorKind) string {
	if p, ok := phrases[kind]; ok {
		return p
	}
	return phrases[types.ErrUnknown]
}

// Progress renders the live status shown after each file completes.
func Progress(file string, done, total, failed int) string {
	return fmt.Sprintf("Converting: %s\nProgress: %d/%d\nErrors: %d", file, done, total, failed)
}

// FailureLine renders one failure as "name: phrase (detail)".
func FailureLine(f types.Failure) string {
	if f.Detail == "" {
		return fmt.Sprintf("%s: %s", f.Name, Describe(f.Kind))
	}
	return fmt.Sprintf("%s: %s (%s)", f.Name, Describe(f.Kind), f.Detail)
}

// FormatElapsed renders d as "Hh Mm Ss".
func FormatElapsed(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%dh %dm %ds", s/3600, (s%3600)/60, s%60)
}

// Summary renders the end-of-run status. Counts are always printed; lists
// are truncated to the package limits.
func Summary(r types.Report) string {
	r = Sorted(r)
	var b strings.Builder

	if r.Interrupted {
		fmt.Fprintf(&b, "Conversion interrupted after %s\n", FormatElapsed(r.Elapsed))
	} else {
		fmt.Fprintf(&b, "Conversion finished in %s\n", FormatElapsed(r.Elapsed))
	}
	writeCounts(&b, r)

	failures := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = FailureLine(f)
	}
	writeList(&b, "Errors", failures, MaxFailures)
	writeList(&b, "Unsupported files", r.Unsupported, MaxUnsupported)

	protected := make([]string, len(r.Quarantined))
	for i, q := range r.Quarantined {
		protected[i] = q.Name
	}
	writeList(&b, "Password-protected files", protected, MaxProtected)

	return strings.TrimRight(b.String(), "\n")
}

func writeCounts(b *strings.Builder, r types.Report) {
	total, copied, failedCopies := r.QuarantineStats()
	fmt.Fprintf(b, "Total files: %d\n", r.Total())
	fmt.Fprintf(b, "Converted: %d\n", r.Converted)
	fmt.Fprintf(b, "Failed: %d\n", r.FailedCount())
	fmt.Fprintf(b, "Unsupported: %d\n", r.SkippedCount())
	fmt.Fprintf(b, "Quarantined: %d (copied %d, copy failed %d)\n", total, copied, failedCopies)
	if r.Cancelled > 0 {
		fmt.Fprintf(b, "Not started: %d\n", r.Cancelled)
	}
}

// writeList writes a titled bullet list. limit <= 0 writes every item.
func writeList(b *strings.Builder, title string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	shown := items
	if limit > 0 && len(items) > limit {
		shown = items[:limit]
	}
	for _, it := range shown {
		fmt.Fprintf(b, "  - %s\n", it)
	}
	if omitted := len(items) - len(shown); omitted > 0 {
		fmt.Fprintf(b, "  - ... (%d omitted)\n", omitted)
	}
}

// Sorted returns a copy of r with its lists ordered by name using
// locale-aware collation with numeric ordering, so "page2" sorts before
// "page10".
func Sorted(r types.Report) types.Report {
	c := collate.New(language.Und, collate.Numeric, collate.IgnoreCase)

	r.Failures = append([]types.Failure(nil), r.Failures...)
	c.Sort(failureList(r.Failures))

	r.Unsupported = append([]string(nil), r.Unsupported...)
	c.SortStrings(r.Unsupported)

	r.Quarantined = append([]types.QuarantineEntry(nil), r.Quarantined...)
	c.Sort(quarantineList(r.Quarantined))
	return r
}

type failureList []types.Failure

func (l failureList) Len() int           { return len(l) }
func (l failureList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }
func (l failureList) Bytes(i int) []byte { return []byte(l[i].Name) }

type quarantineList []types.QuarantineEntry

func (l quarantineList) Len() int           { return len(l) }
func (l quarantineList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }
func (l quarantineList) Bytes(i int) []byte { return []byte(l[i].Name) }
