package core

import "time"

// Stage identifies one node of the research state machine. Every
// transition is recorded so a run can be replayed or resumed.
type Stage string

const (
	StageInit            Stage = "INIT"
	StageClarify         Stage = "CLARIFY"
	StagePlan            Stage = "PLAN"
	StageGenerateQueries Stage = "GENERATE_QUERIES"
	StageSearch          Stage = "SEARCH"
	StageSummarize       Stage = "SUMMARIZE"
	StageEvaluate        Stage = "EVALUATE"
	StageReport          Stage = "REPORT"
	StageDone            Stage = "DONE"
)

// ResearchState is the complete mutable state of one session run. It is
// owned by a single goroutine; stages read and write it sequentially.
type ResearchState struct {
	RunID     string    `json:"run_id"`
	Stage     Stage     `json:"stage"`
	StartedAt time.Time `json:"started_at"`

	Turns []Turn `json:"turns"`
	Brief string `json:"brief"`

	Clarification *ClarificationDecision `json:"clarification,omitempty"`

	Focus ResearchFocus `json:"focus"`
	Plan  ResearchPlan  `json:"plan"`

	// Sources and Summaries are replaced each pass.
	Sources   []RawSource `json:"sources"`
	Summaries []string    `json:"summaries"`

	// Summary is the reduced digest of the current pass.
	Summary string `json:"summary"`

	// TotalSources counts sources across all passes, for reporting.
	TotalSources int `json:"total_sources"`

	Verdict *Verdict     `json:"verdict,omitempty"`
	Report  *FinalReport `json:"report,omitempty"`

	// SourceLog accumulates every source collected over the whole run,
	// in collection order, for the report appendix.
	SourceLog []RawSource `json:"source_log"`
}

func (s *ResearchState) advance(next Stage) {
	s.Stage = next
}
