package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
)

func newTestEvaluator(llm LLMProvider, maxIterations, minSources int) *Evaluator {
	cfg := testConfig(maxIterations)
	cfg.Research.MinSources = minSources
	return NewEvaluator(llm, *cfg, nil, log.New(io.Discard, "", 0))
}

func verdictLLM(response string) *scriptedLLM {
	return &scriptedLLM{respond: func(string) (string, error) {
		return response, nil
	}}
}

func TestEvaluateParsesVerdict(t *testing.T) {
	llm := verdictLLM(`{"satisfied": false, "unanswered": ["q2"], "next_directions": ["look at datasets"]}`)
	e := newTestEvaluator(llm, 10, 1)

	focus := ResearchFocus{Focus: "f", Questions: []string{"q1", "q2"}, Iteration: 0}
	v := e.Evaluate(context.Background(), focus, "summary text", 5)
	if v.Satisfied {
		t.Fatal("verdict should be unsatisfied")
	}
	if len(v.Unanswered) != 1 || v.Unanswered[0] != "q2" {
		t.Fatalf("unanswered = %v", v.Unanswered)
	}
	if len(v.NextDirections) != 1 || v.NextDirections[0] != "look at datasets" {
		t.Fatalf("next directions = %v", v.NextDirections)
	}
	if v.NewIteration != 1 {
		t.Fatalf("new iteration = %d, want 1", v.NewIteration)
	}
	if v.BudgetExhausted {
		t.Fatal("budget is not exhausted at iteration 1 of 10")
	}
}

func TestEvaluateFallbackOnError(t *testing.T) {
	llm := &scriptedLLM{respond: func(string) (string, error) {
		return "", fmt.Errorf("timeout")
	}}
	e := newTestEvaluator(llm, 10, 1)

	focus := ResearchFocus{Focus: "f", Questions: []string{"q1", "q2"}, Iteration: 1}
	v := e.Evaluate(context.Background(), focus, "summary", 5)
	if v.Satisfied {
		t.Fatal("fallback verdict must be unsatisfied")
	}
	if len(v.Unanswered) != 2 {
		t.Fatalf("fallback must carry every question as unanswered, got %v", v.Unanswered)
	}
	if v.NewIteration != 2 {
		t.Fatalf("new iteration = %d, want 2", v.NewIteration)
	}
}

func TestEvaluateForcesStopAtCeiling(t *testing.T) {
	llm := verdictLLM(`{"satisfied": false, "unanswered": ["q1"], "next_directions": ["more"]}`)
	e := newTestEvaluator(llm, 3, 1)

	focus := ResearchFocus{Focus: "f", Questions: []string{"q1"}, Iteration: 2}
	v := e.Evaluate(context.Background(), focus, "summary", 5)
	if !v.Satisfied {
		t.Fatal("ceiling must force a satisfied verdict")
	}
	if !v.BudgetExhausted {
		t.Fatal("a forced stop must be marked budget exhausted")
	}
}

func TestEvaluateGenuineSatisfactionAtCeiling(t *testing.T) {
	llm := verdictLLM(`{"satisfied": true, "unanswered": [], "next_directions": []}`)
	e := newTestEvaluator(llm, 3, 1)

	focus := ResearchFocus{Focus: "f", Questions: []string{"q1"}, Iteration: 2}
	v := e.Evaluate(context.Background(), focus, "summary", 5)
	if !v.Satisfied {
		t.Fatal("verdict should be satisfied")
	}
	if v.BudgetExhausted {
		t.Fatal("a genuine satisfaction is not a budget exhaustion")
	}
	if len(v.Unanswered) != 0 {
		t.Fatalf("unanswered = %v, want none", v.Unanswered)
	}
}

func TestEvaluateMinSourceFloor(t *testing.T) {
	llm := verdictLLM(`{"satisfied": true, "unanswered": [], "next_directions": []}`)
	e := newTestEvaluator(llm, 10, 5)

	// First pass with too few sources cannot satisfy.
	focus := ResearchFocus{Focus: "f", Questions: []string{"q1"}, Iteration: 0}
	v := e.Evaluate(context.Background(), focus, "summary", 2)
	if v.Satisfied {
		t.Fatal("first pass with a thin evidence base must not satisfy")
	}

	// Later passes trust the model.
	focus.Iteration = 1
	v = e.Evaluate(context.Background(), focus, "summary", 2)
	if !v.Satisfied {
		t.Fatal("the floor only applies to the first pass")
	}
}

func TestEvaluateTruncatesSummary(t *testing.T) {
	long := strings.Repeat("#", 3000)
	var sawLen int
	llm := &scriptedLLM{respond: func(prompt string) (string, error) {
		sawLen = strings.Count(prompt, "#")
		return `{"satisfied": true}`, nil
	}}
	e := newTestEvaluator(llm, 10, 1)

	focus := ResearchFocus{Focus: "f", Questions: []string{"q1"}}
	e.Evaluate(context.Background(), focus, long, 5)
	if sawLen != evaluationSummaryChars {
		t.Fatalf("prompt carried %d summary chars, want %d", sawLen, evaluationSummaryChars)
	}
}
