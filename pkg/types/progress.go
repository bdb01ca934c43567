// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Phase identifies where in a run a ProgressEvent was produced.
type Phase string

const (
	PhaseSetupFailed Phase = "setup_failed"
	PhaseScanning    Phase = "scanning"
	PhaseQuarantine  Phase = "quarantine"
	PhaseDispatching Phase = "dispatching"
	PhaseFileDone    Phase = "file_done"
	PhaseFileFailed  Phase = "file_failed"
	PhaseReporting   Phase = "reporting"
	PhaseDone        Phase = "done"
	PhaseInterrupted Phase = "interrupted"
)

// ProgressEvent is the single structured status message emitted by the
// engine. Message is human-readable; Err carries the failure text for
// PhaseFileFailed and PhaseSetupFailed.
type ProgressEvent struct {
	Phase     Phase  `json:"phase"`
	File      string `json:"file,omitempty"`
	Converted int    `json:"converted"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
	Message   string `json:"message,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Terminal reports whether the event ends a run.
func (e ProgressEvent) Terminal() bool {
	return e.Phase == PhaseDone || e.Phase == PhaseInterrupted || e.Phase == PhaseSetupFailed
}
