package core

import (
	"context"
	"log"

	"github.com/mohammad-safakhou/deepresearch/internal/extract"
	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/telemetry"
)

const evaluationSummaryChars = 1000

// Evaluator decides whether the loop continues. Its verdict is the only
// thing that can end the research phase, and the iteration ceiling
// guarantees it always does eventually.
type Evaluator struct {
	llm           LLMProvider
	model         string
	maxIterations int
	minSources    int
	logger        *log.Logger
	telemetry     *telemetry.Telemetry
}

func NewEvaluator(llm LLMProvider, cfg config.Config, tel *telemetry.Telemetry, logger *log.Logger) *Evaluator {
	if logger == nil {
		logger = log.New(log.Writer(), "[EVALUATOR] ", log.LstdFlags)
	}
	return &Evaluator{
		llm:           llm,
		model:         cfg.LLM.Routing.Evaluation,
		maxIterations: cfg.Research.MaxIterations,
		minSources:    cfg.Research.MinSources,
		logger:        logger,
		telemetry:     tel,
	}
}

// Evaluate judges the pass's synthesis against the research questions
// and returns the loop-control verdict. Model failures degrade to an
// unsatisfied verdict with every question still open; the iteration
// ceiling then forces termination regardless of what the model says.
func (e *Evaluator) Evaluate(ctx context.Context, focus ResearchFocus, summary string, sourceCount int) Verdict {
	verdict := Verdict{
		Satisfied:    false,
		Unanswered:   append([]string(nil), focus.Questions...),
		NewIteration: focus.Iteration + 1,
	}

	trimmed := summary
	if len(trimmed) > evaluationSummaryChars {
		trimmed = trimmed[:evaluationSummaryChars]
	}

	prompt := buildEvaluatePrompt(focus, trimmed)
	raw, err := e.complete(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		e.logger.Printf("evaluation request failed, using fallback verdict: %v", err)
	} else if obj, perr := extract.Object(raw); perr != nil {
		e.logger.Printf("evaluation response unparseable, using fallback verdict: %v", perr)
	} else {
		if sat, ok := obj["satisfied"].(bool); ok {
			verdict.Satisfied = sat
		}
		if items := coerceQuestions(obj["unanswered"]); items != nil {
			verdict.Unanswered = items
		} else if v, ok := obj["unanswered"]; ok {
			if list, lok := v.([]interface{}); lok && len(list) == 0 {
				verdict.Unanswered = nil
			}
		}
		verdict.NextDirections = coerceQuestions(obj["next_directions"])
	}

	// The first pass cannot be declared satisfied on a thin evidence
	// base, no matter how confident the model sounds.
	if verdict.Satisfied && focus.Iteration == 0 && sourceCount < e.minSources {
		e.logger.Printf("overriding satisfied verdict: only %d sources collected, need %d", sourceCount, e.minSources)
		verdict.Satisfied = false
	}

	// Hard ceiling. This is the termination guarantee: once the next
	// pass would exceed the budget, the loop stops no matter what.
	if !verdict.Satisfied && verdict.NewIteration >= e.maxIterations {
		e.logger.Printf("iteration budget (%d) exhausted, forcing stop", e.maxIterations)
		verdict.Satisfied = true
		verdict.BudgetExhausted = true
	}

	e.logger.Printf("verdict: satisfied=%t budget_exhausted=%t unanswered=%d iteration=%d",
		verdict.Satisfied, verdict.BudgetExhausted, len(verdict.Unanswered), verdict.NewIteration)
	return verdict
}

func (e *Evaluator) complete(ctx context.Context, messages []Message) (string, error) {
	raw, inTok, outTok, err := e.llm.CompleteWithTokens(ctx, messages, e.model, nil)
	if e.telemetry != nil {
		cost := 0.0
		if err == nil {
			cost = e.llm.CalculateCost(inTok, outTok, e.model)
		}
		e.telemetry.RecordLLMCall(e.model, inTok, outTok, cost, err)
	}
	return raw, err
}
