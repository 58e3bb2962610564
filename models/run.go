package models

import "time"

// NavigationState is the single current position of a run's state machine.
type NavigationState string

const (
	StateUnauthenticated  NavigationState = "Unauthenticated"
	StateAuthFailed       NavigationState = "AuthFailed"
	StateOnSearchForm     NavigationState = "OnSearchForm"
	StateSubmittingSearch NavigationState = "SubmittingSearch"
	StateOnResultsPage    NavigationState = "OnResultsPage"
	StatePaginating       NavigationState = "Paginating"
	StateComplete         NavigationState = "Complete"
	StateFailed           NavigationState = "Failed"
)

// Terminal reports whether no further transition can occur from s.
func (s NavigationState) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateAuthFailed
}

// RunStatus classifies a finished run.
type RunStatus string

const (
	StatusSuccess        RunStatus = "Success"
	StatusPartialSuccess RunStatus = "PartialSuccess"
	StatusFailed         RunStatus = "Failed"
)

// DiagnosticsArtifact references one captured screenshot/structural-dump pair.
// Artifacts are write-once; the paths are never reused within or across runs.
type DiagnosticsArtifact struct {
	RunID          string
	StepID         string
	CapturedAt     time.Time
	ScreenshotPath string
	DumpPath       string
}

// RunResult is the immutable outcome of one run.
type RunResult struct {
	RunID         string
	Criteria      *SearchCriteria
	Status        RunStatus
	TerminalState NavigationState
	Records       []*AvailabilityRecord
	Rejected      int
	Artifacts     []DiagnosticsArtifact
	Reason        string
	StartedAt     time.Time
	FinishedAt    time.Time
}
