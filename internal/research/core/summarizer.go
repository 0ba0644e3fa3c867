package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/telemetry"
)

// Summarizer runs the map-reduce digest stage. The map phase fans out
// over sources with a bounded worker pool; the reduce phase folds the
// per-source summaries into one synthesis. Neither phase can fail the
// pass: map failures become placeholders, a reduce failure degrades to
// the concatenated map output.
type Summarizer struct {
	llm       LLMProvider
	model     string
	workers   int
	maxChars  int
	logger    *log.Logger
	telemetry *telemetry.Telemetry
}

func NewSummarizer(llm LLMProvider, cfg config.Config, tel *telemetry.Telemetry, logger *log.Logger) *Summarizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SUMMARIZER] ", log.LstdFlags)
	}
	workers := cfg.Research.MaxParallelSummary
	if workers < 1 {
		workers = 1
	}
	return &Summarizer{
		llm:       llm,
		model:     cfg.LLM.Routing.Summary,
		workers:   workers,
		maxChars:  cfg.Research.SourceContentChars,
		logger:    logger,
		telemetry: tel,
	}
}

// Summarize digests the pass's sources into per-source summaries and a
// combined synthesis. Summaries come back in source order regardless of
// completion order.
func (s *Summarizer) Summarize(ctx context.Context, focus ResearchFocus, sources []RawSource) ([]string, string) {
	summaries := s.mapPhase(ctx, focus, sources)
	synthesis := s.reducePhase(ctx, focus, summaries)
	return summaries, synthesis
}

func (s *Summarizer) mapPhase(ctx context.Context, focus ResearchFocus, sources []RawSource) []string {
	if len(sources) == 0 {
		return nil
	}
	s.logger.Printf("map phase: summarizing %d sources with %d workers", len(sources), s.workers)

	summaries := make([]string, len(sources))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		go func(i int, src RawSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			summaries[i] = s.summarizeOne(ctx, focus, src)
		}(i, src)
	}
	wg.Wait()

	return summaries
}

func (s *Summarizer) summarizeOne(ctx context.Context, focus ResearchFocus, src RawSource) string {
	prompt := buildSummarizePrompt(focus, src, s.maxChars)
	raw, err := s.complete(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if s.telemetry != nil {
		s.telemetry.RecordSummaryTask(err)
	}
	if err != nil {
		s.logger.Printf("summarizing %q failed: %v", src.Title, err)
		return fmt.Sprintf("%s (Error: could not summarize)", src.Title)
	}
	return fmt.Sprintf("%s\n%s", src.Title, strings.TrimSpace(raw))
}

func (s *Summarizer) reducePhase(ctx context.Context, focus ResearchFocus, summaries []string) string {
	s.logger.Printf("reduce phase: synthesizing %d summaries", len(summaries))

	prompt := buildSynthesizePrompt(focus, summaries)
	raw, err := s.complete(ctx, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		s.logger.Printf("synthesis failed, degrading to concatenated summaries: %v", err)
		return strings.Join(summaries, "\n\n")
	}
	return strings.TrimSpace(raw)
}

func (s *Summarizer) complete(ctx context.Context, messages []Message) (string, error) {
	raw, inTok, outTok, err := s.llm.CompleteWithTokens(ctx, messages, s.model, nil)
	if s.telemetry != nil {
		cost := 0.0
		if err == nil {
			cost = s.llm.CalculateCost(inTok, outTok, s.model)
		}
		s.telemetry.RecordLLMCall(s.model, inTok, outTok, cost, err)
	}
	return raw, err
}
