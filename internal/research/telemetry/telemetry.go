// Package telemetry tracks pipeline metrics and LLM spend.
package telemetry

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
)

var (
	llmRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_llm_requests_total",
		Help: "LLM completion requests by model and outcome.",
	}, []string{"model", "outcome"})

	llmTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_llm_tokens_total",
		Help: "Tokens consumed by model and direction.",
	}, []string{"model", "direction"})

	searchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_search_requests_total",
		Help: "Web search requests by outcome.",
	}, []string{"outcome"})

	summaryTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_summary_tasks_total",
		Help: "MAP-phase summarization tasks by outcome.",
	}, []string{"outcome"})

	researchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deepresearch_runs_total",
		Help: "Completed research sessions by terminal outcome.",
	}, []string{"outcome"})

	iterations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deepresearch_iterations_total",
		Help: "Research loop passes through the evaluator.",
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deepresearch_stage_duration_seconds",
		Help:    "Wall time per pipeline stage.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})
)

// Telemetry provides metric recording and cost tracking for one process.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu          sync.RWMutex
	totalCost   float64
	totalTokens int64
	modelCosts  map[string]float64
}

// CostSummary is a point-in-time snapshot of accumulated LLM spend.
type CostSummary struct {
	TotalCost   float64            `json:"total_cost"`
	TotalTokens int64              `json:"total_tokens"`
	ModelCosts  map[string]float64 `json:"model_costs"`
}

func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		config:     cfg,
		logger:     log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		modelCosts: make(map[string]float64),
	}
}

// RecordLLMCall records one completion request.
func (t *Telemetry) RecordLLMCall(model string, inputTokens, outputTokens int64, cost float64, err error) {
	if t == nil || !t.config.Enabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	llmRequests.WithLabelValues(model, outcome).Inc()
	llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))

	if !t.config.CostTracking || err != nil {
		return
	}
	t.mu.Lock()
	t.totalCost += cost
	t.totalTokens += inputTokens + outputTokens
	t.modelCosts[model] += cost
	t.mu.Unlock()
}

// RecordSearch records one web search query.
func (t *Telemetry) RecordSearch(err error, results int) {
	if t == nil || !t.config.Enabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if results == 0 {
		outcome = "empty"
	}
	searchRequests.WithLabelValues(outcome).Inc()
}

// RecordSummaryTask records one MAP-phase task.
func (t *Telemetry) RecordSummaryTask(err error) {
	if t == nil || !t.config.Enabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	summaryTasks.WithLabelValues(outcome).Inc()
}

// RecordIteration records one evaluator pass.
func (t *Telemetry) RecordIteration() {
	if t == nil || !t.config.Enabled {
		return
	}
	iterations.Inc()
}

// RecordRun records a terminal research outcome: "satisfied",
// "budget_exhausted", "clarification" or "error".
func (t *Telemetry) RecordRun(outcome string) {
	if t == nil || !t.config.Enabled {
		return
	}
	researchRuns.WithLabelValues(outcome).Inc()
}

// RecordStage records wall time for one pipeline stage.
func (t *Telemetry) RecordStage(stage string, d time.Duration) {
	if t == nil || !t.config.Enabled {
		return
	}
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// GetCostSummary returns accumulated spend.
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	models := make(map[string]float64, len(t.modelCosts))
	for k, v := range t.modelCosts {
		models[k] = v
	}
	return CostSummary{TotalCost: t.totalCost, TotalTokens: t.totalTokens, ModelCosts: models}
}

// Shutdown logs the final cost summary.
func (t *Telemetry) Shutdown() {
	if t == nil || !t.config.CostTracking {
		return
	}
	s := t.GetCostSummary()
	t.logger.Printf("total cost: $%.4f across %d tokens", s.TotalCost, s.TotalTokens)
}
