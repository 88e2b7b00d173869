package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-blog-cms/internal/app"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the API key pool",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pooled credentials with usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			keys, err := c.KeyAdmin.List(ctx)
			if err != nil {
				return err
			}
			formatKeys(cmd.OutOrStdout(), keys)
			return nil
		})
	},
}

var keysAddCmd = &cobra.Command{
	Use:   "add <name> <value>",
	Short: "Add a credential to the pool",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			k, err := c.KeyAdmin.Add(ctx, usecase.KeyInput{Name: args[0], Value: args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", k.Name, k.Key)
			return nil
		})
	},
}

var keysRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a credential from the pool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			if err := c.KeyAdmin.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		})
	},
}

var keysResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear usage counters and quota flags on every credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			n, err := c.KeyAdmin.Reset(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d credentials\n", n)
			return nil
		})
	},
}

func init() {
	keysCmd.AddCommand(keysListCmd, keysAddCmd, keysRemoveCmd, keysResetCmd)
}

func formatKeys(w io.Writer, keys []usecase.KeyView) {
	if len(keys) == 0 {
		fmt.Fprintln(w, "No credentials configured.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKEY\tUSAGE\tEXHAUSTED\tLAST USED")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", k.Name, k.Key, k.UsageCount, k.QuotaExceeded, fmtTime(k.LastUsedAt))
	}
	_ = tw.Flush()
}

func fmtTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
