package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deepresearch/internal/research/config"
	"github.com/mohammad-safakhou/deepresearch/internal/research/core"
)

func newResearchCmd() *cobra.Command {
	var output string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "research [query]",
		Short: "Run one research session and print the report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !verbose {
				log.SetOutput(io.Discard)
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			orch, err := core.NewOrchestrator(cfg, nil)
			if err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var query string
			if len(args) > 0 {
				query = strings.TrimSpace(args[0])
			}
			if query == "" {
				fmt.Fprint(out, "Enter your research question: ")
				query, err = readLine(in)
				if err != nil {
					return err
				}
				if query == "" {
					return fmt.Errorf("a research question is required")
				}
			}

			fmt.Fprintln(out, "\nResearching... this may take a few moments.")

			ctx := cmd.Context()
			turns := []core.Turn{{Role: core.RoleUser, Content: query}}
			outcome, err := orch.Run(ctx, "", turns)
			if err != nil {
				return err
			}

			// Answer clarifying questions inline until research starts.
			for outcome.Paused() {
				fmt.Fprintf(out, "\n%s\n> ", outcome.Clarification)
				answer, err := readLine(in)
				if err != nil {
					return err
				}
				if answer == "" {
					return fmt.Errorf("an answer is required to continue")
				}
				turns = append(turns,
					core.Turn{Role: core.RoleAssistant, Content: outcome.Clarification},
					core.Turn{Role: core.RoleUser, Content: answer},
				)
				outcome, err = orch.Run(ctx, outcome.RunID, turns)
				if err != nil {
					return err
				}
			}

			report := outcome.Report
			fmt.Fprintln(out, "\n"+strings.Repeat("=", 80))
			fmt.Fprintln(out, "RESEARCH REPORT")
			fmt.Fprintln(out, strings.Repeat("=", 80)+"\n")
			fmt.Fprintln(out, report.Markdown)

			if output != "" {
				if err := saveReport(output, query, report.Markdown); err != nil {
					return err
				}
				fmt.Fprintf(out, "\nReport saved to %s\n", output)
			}

			costs := orch.Telemetry().GetCostSummary()
			fmt.Fprintln(out, "\nResearch Summary:")
			fmt.Fprintf(out, "    Iterations:        %d\n", report.Iterations)
			fmt.Fprintf(out, "    Sources collected: %d\n", report.SourceCount)
			fmt.Fprintf(out, "    Budget exhausted:  %t\n", report.BudgetExhausted)
			fmt.Fprintf(out, "    LLM spend:         $%.4f (%d tokens)\n", costs.TotalCost, costs.TotalTokens)

			orch.Telemetry().Shutdown()
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "file to save the report to")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "show pipeline progress logs")
	return cmd
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func saveReport(path, query, markdown string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	content := fmt.Sprintf("# Research Report\n\nQuery: %s\n\n%s", query, markdown)
	return os.WriteFile(path, []byte(content), 0o644)
}

// runOnce executes a non-interactive session, used by the watch command.
func runOnce(ctx context.Context, orch *core.Orchestrator, query string) (*core.FinalReport, error) {
	outcome, err := orch.Run(ctx, "", []core.Turn{{Role: core.RoleUser, Content: query}})
	if err != nil {
		return nil, err
	}
	if outcome.Paused() {
		return nil, fmt.Errorf("query needs clarification (%s), refine it and retry", outcome.Clarification)
	}
	return outcome.Report, nil
}
