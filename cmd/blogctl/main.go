// Command blogctl is the operator CLI: credential pool administration,
// seeding, one-off generation and scheduler control.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-blog-cms/internal/adapter/observability"
	"github.com/fairyhunter13/ai-blog-cms/internal/app"
	"github.com/fairyhunter13/ai-blog-cms/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "blogctl",
	Short:         "Operate the AI blog CMS",
	Long:          "Manage API keys, seed categories, generate articles and run scheduled jobs against the blog database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(keysCmd, seedCmd, generateCmd, jobsCmd, hashPasswordCmd)
}

// withContainer loads config, wires the services and runs fn against them.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(observability.SetupLogger(cfg))
	ctx := cmd.Context()
	c, err := app.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
