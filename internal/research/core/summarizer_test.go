package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestSummarizer(llm LLMProvider, workers int) *Summarizer {
	cfg := testConfig(3)
	cfg.Research.MaxParallelSummary = workers
	return NewSummarizer(llm, *cfg, nil, log.New(io.Discard, "", 0))
}

func testFocus() ResearchFocus {
	return ResearchFocus{Focus: "topic", Questions: []string{"q1", "q2"}}
}

func TestSummarizeKeepsSourceOrder(t *testing.T) {
	llm := &scriptedLLM{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, markSynthesize) {
			return "synthesis", nil
		}
		return "summary body", nil
	}}
	s := newTestSummarizer(llm, 5)

	sources := []RawSource{
		{Title: "Alpha", URL: "https://a", Content: "a"},
		{Title: "Beta", URL: "https://b", Content: "b"},
		{Title: "Gamma", URL: "https://c", Content: "c"},
	}
	summaries, synthesis := s.Summarize(context.Background(), testFocus(), sources)
	if len(summaries) != 3 {
		t.Fatalf("got %d summaries, want 3", len(summaries))
	}
	for i, title := range []string{"Alpha", "Beta", "Gamma"} {
		if !strings.HasPrefix(summaries[i], title) {
			t.Fatalf("summary %d = %q, want prefix %q", i, summaries[i], title)
		}
	}
	if synthesis != "synthesis" {
		t.Fatalf("synthesis = %q", synthesis)
	}
}

func TestSummarizePartialFailure(t *testing.T) {
	llm := &scriptedLLM{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, markSynthesize) {
			return "synthesis", nil
		}
		if strings.Contains(prompt, "Beta") {
			return "", fmt.Errorf("model overloaded")
		}
		return "fine summary", nil
	}}
	s := newTestSummarizer(llm, 5)

	sources := []RawSource{
		{Title: "Alpha", URL: "https://a", Content: "a"},
		{Title: "Beta", URL: "https://b", Content: "b"},
		{Title: "Gamma", URL: "https://c", Content: "c"},
	}
	summaries, _ := s.Summarize(context.Background(), testFocus(), sources)
	if len(summaries) != 3 {
		t.Fatalf("a failing task must not drop its slot, got %d summaries", len(summaries))
	}
	if summaries[1] != "Beta (Error: could not summarize)" {
		t.Fatalf("placeholder = %q", summaries[1])
	}
	if !strings.Contains(summaries[0], "fine summary") || !strings.Contains(summaries[2], "fine summary") {
		t.Fatal("healthy tasks should still summarize")
	}
}

func TestSummarizeReduceDegrades(t *testing.T) {
	llm := &scriptedLLM{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, markSynthesize) {
			return "", fmt.Errorf("context length exceeded")
		}
		return "piece", nil
	}}
	s := newTestSummarizer(llm, 2)

	sources := []RawSource{
		{Title: "Alpha", URL: "https://a", Content: "a"},
		{Title: "Beta", URL: "https://b", Content: "b"},
	}
	summaries, synthesis := s.Summarize(context.Background(), testFocus(), sources)
	want := strings.Join(summaries, "\n\n")
	if synthesis != want {
		t.Fatalf("degraded synthesis = %q, want concatenated summaries", synthesis)
	}
}

func TestSummarizeEmptySources(t *testing.T) {
	llm := &scriptedLLM{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, markSynthesize) {
			return "nothing to report", nil
		}
		t.Fatal("map phase must not run without sources")
		return "", nil
	}}
	s := newTestSummarizer(llm, 2)

	summaries, synthesis := s.Summarize(context.Background(), testFocus(), nil)
	if len(summaries) != 0 {
		t.Fatalf("summaries = %v, want none", summaries)
	}
	if synthesis != "nothing to report" {
		t.Fatalf("synthesis = %q", synthesis)
	}
}

func TestSummarizeBoundsConcurrency(t *testing.T) {
	const workers = 2
	var inFlight, peak int64
	var mu sync.Mutex

	llm := &scriptedLLM{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, markSynthesize) {
			return "synthesis", nil
		}
		n := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		defer atomic.AddInt64(&inFlight, -1)
		return "summary", nil
	}}
	s := newTestSummarizer(llm, workers)

	sources := make([]RawSource, 16)
	for i := range sources {
		sources[i] = RawSource{Title: fmt.Sprintf("S%d", i), URL: fmt.Sprintf("https://s/%d", i), Content: "c"}
	}
	s.Summarize(context.Background(), testFocus(), sources)

	mu.Lock()
	defer mu.Unlock()
	if peak > workers {
		t.Fatalf("observed %d concurrent summary tasks, limit is %d", peak, workers)
	}
}

func TestSummarizeTruncatesContent(t *testing.T) {
	long := strings.Repeat("@", 5000)
	var sawLen int
	llm := &scriptedLLM{respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, markSynthesize) {
			return "synthesis", nil
		}
		sawLen = strings.Count(prompt, "@")
		return "summary", nil
	}}
	s := newTestSummarizer(llm, 1)
	s.maxChars = 2000

	s.Summarize(context.Background(), testFocus(), []RawSource{{Title: "Long", URL: "https://l", Content: long}})
	if sawLen != 2000 {
		t.Fatalf("prompt carried %d content chars, want 2000", sawLen)
	}
}
