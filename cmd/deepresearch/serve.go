package main

import (
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/deepresearch/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP research API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", getenv("DEEPRESEARCH_HTTP_ADDR", ":10001"), "listen address")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dir string
	var direction string
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Migrate(dir, "", direction, steps)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source URL")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 applies all)")
	return cmd
}
