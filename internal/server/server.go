package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/core"
	"github.com/mohammad-safakhou/deepresearch/internal/session"
	"github.com/mohammad-safakhou/deepresearch/internal/session/inmemory"
	redissession "github.com/mohammad-safakhou/deepresearch/internal/session/redis"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

const defaultSessionTTL = 30 * time.Minute

// Runner executes one research pass.
type Runner interface {
	Run(ctx context.Context, runID string, turns []core.Turn) (core.Outcome, error)
}

// Archive persists finished runs.
type Archive interface {
	SaveRun(ctx context.Context, rec store.RunRecord) error
	GetRun(ctx context.Context, id string) (store.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error)
}

// Server exposes the research pipeline over HTTP.
type Server struct {
	cfg      *config.Config
	runner   Runner
	sessions session.Store
	archive  Archive
	costs    func() float64
	logger   *log.Logger
}

func New(cfg *config.Config, runner Runner, sessions session.Store, archive Archive, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	return &Server{cfg: cfg, runner: runner, sessions: sessions, archive: archive, logger: logger}
}

// Echo builds the configured router.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		s.logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")
	api.POST("/research", s.handleResearch)
	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/:id", s.handleGetRun)

	return e
}

type researchRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type clarificationResponse struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type reportResponse struct {
	RunID           string  `json:"run_id"`
	Report          string  `json:"report"`
	Satisfied       bool    `json:"satisfied"`
	BudgetExhausted bool    `json:"budget_exhausted"`
	Iterations      int     `json:"iterations"`
	SourceCount     int     `json:"source_count"`
	Cost            float64 `json:"cost,omitempty"`
}

// handleResearch starts or resumes a research session. A paused session
// answers 202 with the clarifying question; a completed one answers 200
// with the final report.
func (s *Server) handleResearch(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	ttl := s.sessionTTL()
	sess, err := s.sessions.EnsureSession(req.SessionID, ttl)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := sess.AppendTurn(core.Turn{Role: core.RoleUser, Content: req.Query}); err != nil {
		return fmt.Errorf("session append: %w", err)
	}
	turns, err := sess.Turns()
	if err != nil {
		return fmt.Errorf("session turns: %w", err)
	}

	ctx := c.Request().Context()
	outcome, err := s.runner.Run(ctx, sess.ID(), turns)
	if err != nil {
		return fmt.Errorf("research run: %w", err)
	}

	if outcome.Paused() {
		if err := sess.AppendTurn(core.Turn{Role: core.RoleAssistant, Content: outcome.Clarification}); err != nil {
			return fmt.Errorf("session append: %w", err)
		}
		return c.JSON(http.StatusAccepted, clarificationResponse{
			SessionID: sess.ID(),
			Question:  outcome.Clarification,
		})
	}

	report := outcome.Report
	resp := reportResponse{
		RunID:           outcome.RunID,
		Report:          report.Markdown,
		Satisfied:       report.Satisfied,
		BudgetExhausted: report.BudgetExhausted,
		Iterations:      report.Iterations,
		SourceCount:     report.SourceCount,
	}
	if s.costs != nil {
		resp.Cost = s.costs()
	}

	if s.archive != nil {
		rec := store.RunRecord{
			ID:              outcome.RunID,
			Query:           req.Query,
			Report:          report.Markdown,
			Satisfied:       report.Satisfied,
			BudgetExhausted: report.BudgetExhausted,
			Iterations:      report.Iterations,
			SourceCount:     report.SourceCount,
			Cost:            resp.Cost,
		}
		if err := s.archive.SaveRun(ctx, rec); err != nil {
			s.logger.Printf("archiving run %s failed: %v", outcome.RunID, err)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c echo.Context) error {
	if s.archive == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run archive not configured")
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	runs, err := s.archive.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(c echo.Context) error {
	if s.archive == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "run archive not configured")
	}
	rec, err := s.archive.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) sessionTTL() time.Duration {
	if s.cfg != nil && s.cfg.Storage.Redis.SessionTTL > 0 {
		return s.cfg.Storage.Redis.SessionTTL
	}
	return defaultSessionTTL
}

// Run wires the production server and blocks serving HTTP.
func Run(addr string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

	orch, err := core.NewOrchestrator(cfg, nil)
	if err != nil {
		return err
	}

	var sessions session.Store
	if cfg.Storage.Redis.Host != "" {
		sessions = redissession.NewRedisSessionStore(cfg.Storage.Redis.Addr(), cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
	} else {
		sessions = inmemory.NewInMemorySessionStore()
	}

	var archive Archive
	if cfg.Storage.Postgres.DSN() != "" {
		if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
			logger.Printf("migrations: %v", err)
		}
		st, err := store.NewStore(cfg.Storage.Postgres)
		if err != nil {
			return fmt.Errorf("run archive: %w", err)
		}
		archive = st
	} else {
		logger.Printf("postgres not configured, run archive disabled")
	}

	srv := New(cfg, orch, sessions, archive, logger)
	srv.costs = func() float64 { return orch.Telemetry().GetCostSummary().TotalCost }
	return srv.Echo().Start(addr)
}
