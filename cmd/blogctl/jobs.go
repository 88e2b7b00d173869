package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-blog-cms/internal/app"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and trigger scheduled jobs",
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show last and next run of every job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			st, err := c.Scheduler.Status(ctx)
			if err != nil {
				return err
			}
			formatJobStatus(cmd.OutOrStdout(), st)
			return nil
		})
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run [job]",
	Short: "Run one job now, or every due job without an argument",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			var results []domain.JobResult
			if len(args) == 1 {
				res, err := c.Scheduler.RunJob(ctx, args[0])
				if err != nil {
					return err
				}
				results = append(results, res)
			} else {
				var err error
				if results, err = c.Scheduler.RunAll(ctx, force); err != nil {
					return err
				}
			}
			formatJobResults(cmd.OutOrStdout(), results)
			for _, r := range results {
				if r.Status == app.JobFailed {
					return fmt.Errorf("job %s failed", r.Name)
				}
			}
			return nil
		})
	},
}

func init() {
	jobsRunCmd.Flags().Bool("force", false, "run every job regardless of schedule")
	jobsCmd.AddCommand(jobsStatusCmd, jobsRunCmd)
}

func formatJobStatus(w io.Writer, st []domain.JobStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tEVERY\tLAST RUN\tSTATUS\tRUNS\tNEXT RUN\tDUE")
	for _, s := range st {
		status := s.LastStatus
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%t\n", s.Name, s.Interval, fmtTime(s.LastRunAt), status, s.RunCount, fmtTime(&s.NextRunAt), s.Due)
	}
	_ = tw.Flush()
}

func formatJobResults(w io.Writer, results []domain.JobResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No jobs due.")
		return
	}
	for _, r := range results {
		line := fmt.Sprintf("%s: %s", r.Name, r.Status)
		if r.Detail != "" {
			line += " " + r.Detail
		}
		if r.Error != "" {
			line += " error=" + r.Error
		}
		fmt.Fprintln(w, line)
	}
}
