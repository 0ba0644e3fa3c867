package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/core"
)

func newWatchCmd() *cobra.Command {
	var cron string
	var query string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run a research query on a schedule and save dated reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("--query is required")
			}
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return err
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			logger := log.New(log.Writer(), "[WATCH] ", log.LstdFlags)
			orch, err := core.NewOrchestrator(cfg, logger)
			if err != nil {
				return err
			}
			defer orch.Telemetry().Shutdown()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()

			var lastRun *time.Time
			logger.Printf("watching %q on schedule %q", query, cron)
			for {
				if isDue(cron, lastRun) {
					now := time.Now()
					report, err := runOnce(cmd.Context(), orch, query)
					if err != nil {
						logger.Printf("run failed: %v", err)
					} else {
						path := filepath.Join(outputDir, now.Format("2006-01-02T15-04-05")+".md")
						if err := saveReport(path, query, report.Markdown); err != nil {
							logger.Printf("saving report: %v", err)
						} else {
							logger.Printf("report saved to %s (%d sources, %d iterations)",
								path, report.SourceCount, report.Iterations)
						}
					}
					lastRun = &now
				}
				select {
				case <-stop:
					logger.Println("shutting down")
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVar(&cron, "cron", "@daily", "schedule: @daily, @hourly, or a 5-field cron expression")
	cmd.Flags().StringVar(&query, "query", "", "research question to re-run")
	cmd.Flags().StringVar(&outputDir, "output-dir", "reports", "directory for dated report files")
	return cmd
}

// isDue decides whether the schedule fires now given the last run time.
// Supports "@daily", "@hourly", and standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Invalid spec behaves like @daily.
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
