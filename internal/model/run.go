package model

import "time"

// RunStatus represents the current state of an ensemble run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusPreflight RunStatus = "preflight"
	RunStatusDetecting RunStatus = "detecting"
	RunStatusMerging   RunStatus = "merging"
	RunStatusScoring   RunStatus = "scoring"
	RunStatusWriting   RunStatus = "writing"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// RunInput describes the external inputs of one ensemble run. Reference and
// annotation paths are passed through unopened to the detectors.
type RunInput struct {
	BAM        string       `json:"bam"`
	Reference  string       `json:"reference"`
	Annotation string       `json:"annotation,omitempty"`
	Detectors  []DetectorID `json:"detectors"`
	Output     string       `json:"output"`
}

// Run is one ensemble run tracked in the store.
type Run struct {
	ID        string     `json:"id"`
	Input     RunInput   `json:"input"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DetectorStatus is the terminal state of one detector within a run.
type DetectorStatus string

const (
	DetectorStatusSucceeded DetectorStatus = "succeeded"
	DetectorStatusFailed    DetectorStatus = "failed"
)

// DetectorOutcome summarizes one detector's execution for the run ledger.
type DetectorOutcome struct {
	Detector DetectorID     `json:"detector"`
	Status   DetectorStatus `json:"status"`
	Records  int            `json:"records"`
	Error    string         `json:"error,omitempty"`
	Duration int64          `json:"duration_ms"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Sites         int               `json:"sites"`
	Accepted      int               `json:"accepted"`
	Rejected      int               `json:"rejected"`
	Records       int               `json:"records"`
	Detectors     []DetectorOutcome `json:"detectors"`
	Phases        []PhaseResult     `json:"phases"`
	OutputPath    string            `json:"output_path,omitempty"`
	LowConfidence string            `json:"low_confidence_path,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
