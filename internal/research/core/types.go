package core

import (
	"context"
	"time"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single prompt message sent to an LLM provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is one entry of the session's conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClarificationDecision is the structured verdict of the clarify stage.
// Produced at most once per session, before any research pass.
type ClarificationDecision struct {
	NeedsClarification bool   `json:"need_clarification"`
	Question           string `json:"question"`
	Acknowledgement    string `json:"verification"`
}

// ResearchFocus tracks the running focus, questions and loop bookkeeping.
// Iteration increments by exactly 1 per pass; Satisfied flips false->true
// at most once and never reverts.
type ResearchFocus struct {
	Focus     string   `json:"focus"`
	Questions []string `json:"questions"`
	Iteration int      `json:"iteration"`
	Satisfied bool     `json:"satisfied"`
}

// ResearchPlan holds the queries for the current pass. Queries are
// replaced, never merged, on each pass.
type ResearchPlan struct {
	OriginalQuery string   `json:"original_query"`
	SearchQueries []string `json:"search_queries"`
}

// RawSource is unprocessed web content collected during one pass.
type RawSource struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Snippet     string    `json:"snippet,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Verdict is the evaluator's structured loop-control decision.
type Verdict struct {
	Satisfied       bool     `json:"satisfied"`
	Unanswered      []string `json:"unanswered"`
	NextDirections  []string `json:"next_directions"`
	NewIteration    int      `json:"new_iteration"`
	BudgetExhausted bool     `json:"budget_exhausted"`
}

// FinalReport is the session's terminal artifact.
type FinalReport struct {
	Markdown        string `json:"markdown"`
	Satisfied       bool   `json:"satisfied"`
	BudgetExhausted bool   `json:"budget_exhausted"`
	Iterations      int    `json:"iterations"`
	SourceCount     int    `json:"source_count"`
}

// Outcome is what a session run hands back to the caller: either a
// clarifying question (session paused, resumable with a new user turn)
// or a final report.
type Outcome struct {
	RunID         string       `json:"run_id"`
	Clarification string       `json:"clarification,omitempty"`
	Report        *FinalReport `json:"report,omitempty"`
}

// Paused reports whether the session stopped to ask a clarifying question.
func (o Outcome) Paused() bool { return o.Clarification != "" }

// LLMProvider is the completion gateway. Responses are arbitrary free
// text; callers must not assume valid JSON.
type LLMProvider interface {
	// Complete sends one completion request.
	Complete(ctx context.Context, messages []Message, model string, options map[string]interface{}) (string, error)

	// CompleteWithTokens sends one completion request and reports token usage.
	CompleteWithTokens(ctx context.Context, messages []Message, model string, options map[string]interface{}) (string, int64, int64, error)

	// CalculateCost converts token usage into dollars for a model.
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}
