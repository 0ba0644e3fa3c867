package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/telemetry"
)

// Reporter compiles the terminal research artifact. It never fails the
// session: a model failure produces a degraded report built from the
// raw synthesis instead.
type Reporter struct {
	llm       LLMProvider
	model     string
	logger    *log.Logger
	telemetry *telemetry.Telemetry
}

func NewReporter(llm LLMProvider, cfg config.LLMRoutingConfig, tel *telemetry.Telemetry, logger *log.Logger) *Reporter {
	if logger == nil {
		logger = log.New(log.Writer(), "[REPORTER] ", log.LstdFlags)
	}
	return &Reporter{llm: llm, model: cfg.Report, logger: logger, telemetry: tel}
}

// Report renders the final Markdown document from the accumulated
// findings and appends the source citations.
func (r *Reporter) Report(ctx context.Context, state *ResearchState) FinalReport {
	report := FinalReport{
		Satisfied:       state.Focus.Satisfied,
		Iterations:      state.Focus.Iteration,
		SourceCount:     state.TotalSources,
		BudgetExhausted: state.Verdict != nil && state.Verdict.BudgetExhausted,
	}

	findings := []string{state.Summary}
	prompt := buildReportPrompt(state.Focus, findings)

	body, err := r.complete(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		r.logger.Printf("report generation failed, emitting degraded report: %v", err)
		body = degradedReport(state)
	}
	body = strings.TrimSpace(body)

	if report.BudgetExhausted {
		body = "> Research stopped at the iteration limit; some questions may remain open.\n\n" + body
	}

	report.Markdown = body + "\n\n" + formatSources(state.SourceLog)
	r.logger.Printf("report generated: %d iterations, %d sources", report.Iterations, report.SourceCount)
	return report
}

func degradedReport(state *ResearchState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", state.Focus.Focus)
	b.WriteString("## Findings\n\n")
	if strings.TrimSpace(state.Summary) != "" {
		b.WriteString(state.Summary)
	} else {
		b.WriteString("No findings were collected.")
	}
	return b.String()
}

func formatSources(sources []RawSource) string {
	if len(sources) == 0 {
		return "## Sources\n\nNo sources available."
	}
	var b strings.Builder
	b.WriteString("## Sources\n\n")
	for i, src := range sources {
		title := src.Title
		if title == "" {
			title = "Unknown"
		}
		if src.URL != "" {
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, title, src.URL)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, title)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Reporter) complete(ctx context.Context, messages []Message) (string, error) {
	raw, inTok, outTok, err := r.llm.CompleteWithTokens(ctx, messages, r.model, nil)
	if r.telemetry != nil {
		cost := 0.0
		if err == nil {
			cost = r.llm.CalculateCost(inTok, outTok, r.model)
		}
		r.telemetry.RecordLLMCall(r.model, inTok, outTok, cost, err)
	}
	return raw, err
}
