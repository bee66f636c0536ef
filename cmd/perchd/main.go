package main

import (
	"context"
	"fmt"
	"os"

	"github.com/perch-social/perch/internal/app"
	"github.com/perch-social/perch/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "perchd",
		Short: "Perch authentication server",
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading config")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and background sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadEnvFile(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			application, err := app.Initialize(ctx, cfg)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
	cmd.AddCommand(serve)
	return cmd
}
