package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-blog-cms/internal/app"
)

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate one article, or run an automated batch without a topic",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(args) == 0 {
				rep, err := c.Pipeline.RunAutomated(ctx)
				if err != nil {
					return err
				}
				return enc.Encode(rep)
			}
			res, err := c.Pipeline.GenerateAndProcess(ctx, args[0])
			if err != nil {
				return fmt.Errorf("generate %q: %w", args[0], err)
			}
			return enc.Encode(res)
		})
	},
}
