package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/internal/extract"
	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/telemetry"
)

const briefFallbackChars = 200

var fallbackQuestions = []string{
	"What are the main aspects to research?",
	"What are the key findings?",
	"What conclusions can be drawn?",
}

// Planner owns the clarify, focus and query generation stages. It is the
// only component allowed to talk to the user before research starts.
type Planner struct {
	llm       LLMProvider
	clarify   string
	planning  string
	logger    *log.Logger
	telemetry *telemetry.Telemetry
}

func NewPlanner(llm LLMProvider, cfg config.LLMRoutingConfig, tel *telemetry.Telemetry, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.New(log.Writer(), "[PLANNER] ", log.LstdFlags)
	}
	return &Planner{
		llm:       llm,
		clarify:   cfg.Clarify,
		planning:  cfg.Planning,
		logger:    logger,
		telemetry: tel,
	}
}

// Clarify decides whether the conversation needs a clarifying question
// before research can start. A response that cannot be parsed is a hard
// error: without a decision the session cannot safely proceed.
func (p *Planner) Clarify(ctx context.Context, turns []Turn) (ClarificationDecision, error) {
	var decision ClarificationDecision

	prompt := buildClarifyPrompt(turns)
	raw, err := p.complete(ctx, p.clarify, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return decision, fmt.Errorf("clarification request: %w", err)
	}
	if err := extract.Into(raw, &decision); err != nil {
		return decision, fmt.Errorf("parsing clarification decision: %w", err)
	}
	if decision.NeedsClarification && strings.TrimSpace(decision.Question) == "" {
		return decision, fmt.Errorf("clarification decision requested a question but provided none")
	}
	return decision, nil
}

// Plan derives the research focus and questions for the next pass. It
// never fails: when the model response cannot be parsed it falls back
// to a generic focus so the loop keeps moving.
func (p *Planner) Plan(ctx context.Context, brief string, prev ResearchFocus, verdict *Verdict) ResearchFocus {
	var prompt string
	if prev.Iteration == 0 && verdict == nil {
		prompt = buildFocusPrompt(brief)
	} else {
		prompt = buildRefocusPrompt(prev, verdict)
	}

	next := ResearchFocus{
		Iteration: prev.Iteration,
		Satisfied: prev.Satisfied,
	}

	raw, err := p.complete(ctx, p.planning, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		p.logger.Printf("planning request failed, using fallback focus: %v", err)
		return p.fallbackFocus(brief, next)
	}

	obj, err := extract.Object(raw)
	if err != nil {
		p.logger.Printf("planning response unparseable, using fallback focus: %v", err)
		return p.fallbackFocus(brief, next)
	}

	if focus, ok := obj["focus"].(string); ok && strings.TrimSpace(focus) != "" {
		next.Focus = focus
	} else {
		next.Focus = brief
	}
	next.Questions = coerceQuestions(obj["questions"])
	if len(next.Questions) == 0 {
		next.Questions = append([]string(nil), fallbackQuestions...)
	}

	p.logger.Printf("planned focus %q with %d questions (iteration %d)", truncate(next.Focus, 80), len(next.Questions), next.Iteration)
	return next
}

// GenerateQueries turns the current focus into concrete web searches.
// Unlike Plan, a failure here is reported so the caller can decide how
// to degrade.
func (p *Planner) GenerateQueries(ctx context.Context, focus ResearchFocus) ([]string, error) {
	prompt := buildQueryGenPrompt(focus)
	raw, err := p.complete(ctx, p.planning, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("query generation request: %w", err)
	}
	queries, err := extract.StringList(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing search queries: %w", err)
	}
	out := queries[:0]
	for _, q := range queries {
		if strings.TrimSpace(q) != "" {
			out = append(out, strings.TrimSpace(q))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("query generation produced no usable queries")
	}
	return out, nil
}

func (p *Planner) fallbackFocus(brief string, next ResearchFocus) ResearchFocus {
	next.Focus = truncate(brief, briefFallbackChars)
	next.Questions = append([]string(nil), fallbackQuestions...)
	return next
}

func (p *Planner) complete(ctx context.Context, model string, messages []Message) (string, error) {
	raw, inTok, outTok, err := p.llm.CompleteWithTokens(ctx, messages, model, nil)
	if p.telemetry != nil {
		cost := 0.0
		if err == nil {
			cost = p.llm.CalculateCost(inTok, outTok, model)
		}
		p.telemetry.RecordLLMCall(model, inTok, outTok, cost, err)
	}
	return raw, err
}

// coerceQuestions accepts the shapes models actually emit: plain
// strings, or objects carrying a "question" or "text" field.
func coerceQuestions(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		switch q := it.(type) {
		case string:
			if strings.TrimSpace(q) != "" {
				out = append(out, q)
			}
		case map[string]interface{}:
			if s, ok := q["question"].(string); ok && s != "" {
				out = append(out, s)
			} else if s, ok := q["text"].(string); ok && s != "" {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprintf("%v", q))
			}
		default:
			out = append(out, fmt.Sprintf("%v", it))
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
