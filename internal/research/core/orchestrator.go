package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/telemetry"
)

// Orchestrator drives a session through the research state machine:
//
//	INIT -> CLARIFY -> PLAN -> GENERATE_QUERIES -> SEARCH ->
//	SUMMARIZE -> EVALUATE -> (PLAN | REPORT) -> DONE
//
// CLARIFY runs at most once per session. The EVALUATE stage is the
// only loop exit, and the iteration ceiling makes the exit certain.
type Orchestrator struct {
	cfg       *config.Config
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	planner    *Planner
	collector  *Collector
	summarizer *Summarizer
	evaluator  *Evaluator
	reporter   *Reporter
}

// NewOrchestrator wires the full pipeline from configuration.
func NewOrchestrator(cfg *config.Config, logger *log.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags)
	}

	tel := telemetry.NewTelemetry(cfg.Telemetry)

	llm, err := NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("creating llm provider: %w", err)
	}
	searcher, err := NewSearchProvider(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("creating search provider: %w", err)
	}

	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		telemetry:  tel,
		planner:    NewPlanner(llm, cfg.LLM.Routing, tel, nil),
		collector:  NewCollector(searcher, cfg.Search, tel, nil),
		summarizer: NewSummarizer(llm, *cfg, tel, nil),
		evaluator:  NewEvaluator(llm, *cfg, tel, nil),
		reporter:   NewReporter(llm, cfg.LLM.Routing, tel, nil),
	}, nil
}

// Telemetry exposes the run's cost and usage tracker.
func (o *Orchestrator) Telemetry() *telemetry.Telemetry { return o.telemetry }

// Run executes one session pass. It either pauses with a clarifying
// question (resume by calling Run again with the question and the
// user's answer appended to turns) or runs the full research loop and
// returns the final report.
func (o *Orchestrator) Run(ctx context.Context, runID string, turns []Turn) (Outcome, error) {
	if len(turns) == 0 {
		o.record("error")
		return Outcome{}, fmt.Errorf("research run requires at least one user turn")
	}
	if runID == "" {
		runID = uuid.New().String()
	}

	state := &ResearchState{
		RunID:     runID,
		Stage:     StageInit,
		StartedAt: time.Now().UTC(),
		Turns:     turns,
		Brief:     buildBrief(turns),
	}
	o.logger.Printf("run %s started (%d turns)", runID, len(turns))

	outcome, err := o.runStateMachine(ctx, state)
	if err != nil {
		o.record("error")
		return Outcome{}, err
	}
	return outcome, nil
}

func (o *Orchestrator) runStateMachine(ctx context.Context, state *ResearchState) (Outcome, error) {
	state.advance(StageClarify)

	// Only the first pass asks for clarification. The presence of an
	// assistant turn means a question was already asked and answered.
	if !hasAssistantTurn(state.Turns) {
		var decision ClarificationDecision
		err := o.stage(state, StageClarify, func() error {
			var cerr error
			decision, cerr = o.planner.Clarify(ctx, state.Turns)
			return cerr
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("run %s: %w", state.RunID, err)
		}
		state.Clarification = &decision
		if decision.NeedsClarification {
			state.advance(StageDone)
			o.record("clarification")
			o.logger.Printf("run %s paused for clarification", state.RunID)
			return Outcome{RunID: state.RunID, Clarification: decision.Question}, nil
		}
	}

	for {
		// PLAN
		o.mustStage(state, StagePlan, func() {
			state.Focus = o.planner.Plan(ctx, state.Brief, state.Focus, state.Verdict)
		})

		// GENERATE_QUERIES. A failed generation degrades to an empty
		// plan; the pass proceeds and the evaluator sees the gap.
		o.mustStage(state, StageGenerateQueries, func() {
			queries, err := o.planner.GenerateQueries(ctx, state.Focus)
			if err != nil {
				o.logger.Printf("run %s: query generation failed, continuing with empty plan: %v", state.RunID, err)
				queries = nil
			}
			state.Plan = ResearchPlan{OriginalQuery: state.Brief, SearchQueries: queries}
		})

		// SEARCH
		o.mustStage(state, StageSearch, func() {
			state.Sources = o.collector.Collect(ctx, state.Plan.SearchQueries)
			state.TotalSources += len(state.Sources)
			state.SourceLog = append(state.SourceLog, state.Sources...)
		})

		// SUMMARIZE
		o.mustStage(state, StageSummarize, func() {
			state.Summaries, state.Summary = o.summarizer.Summarize(ctx, state.Focus, state.Sources)
		})

		// EVALUATE
		var verdict Verdict
		o.mustStage(state, StageEvaluate, func() {
			verdict = o.evaluator.Evaluate(ctx, state.Focus, state.Summary, len(state.Sources))
		})
		state.Verdict = &verdict
		state.Focus.Iteration = verdict.NewIteration
		state.Focus.Satisfied = verdict.Satisfied
		if o.telemetry != nil {
			o.telemetry.RecordIteration()
		}

		if verdict.Satisfied {
			break
		}
		o.logger.Printf("run %s: iteration %d not satisfied, looping", state.RunID, verdict.NewIteration)
	}

	// REPORT
	var report FinalReport
	o.mustStage(state, StageReport, func() {
		report = o.reporter.Report(ctx, state)
	})
	state.Report = &report
	state.advance(StageDone)

	if report.BudgetExhausted {
		o.record("budget_exhausted")
	} else {
		o.record("satisfied")
	}
	o.logger.Printf("run %s done: satisfied=%t budget_exhausted=%t iterations=%d sources=%d",
		state.RunID, report.Satisfied, report.BudgetExhausted, report.Iterations, report.SourceCount)

	return Outcome{RunID: state.RunID, Report: &report}, nil
}

// stage runs a fallible stage and records its duration.
func (o *Orchestrator) stage(state *ResearchState, s Stage, fn func() error) error {
	state.advance(s)
	start := time.Now()
	err := fn()
	if o.telemetry != nil {
		o.telemetry.RecordStage(string(s), time.Since(start))
	}
	return err
}

// mustStage runs a stage that degrades internally instead of failing.
func (o *Orchestrator) mustStage(state *ResearchState, s Stage, fn func()) {
	_ = o.stage(state, s, func() error { fn(); return nil })
}

func (o *Orchestrator) record(outcome string) {
	if o.telemetry != nil {
		o.telemetry.RecordRun(outcome)
	}
}

// buildBrief flattens the conversation into the research brief.
func buildBrief(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func hasAssistantTurn(turns []Turn) bool {
	for _, t := range turns {
		if t.Role == RoleAssistant {
			return true
		}
	}
	return false
}
