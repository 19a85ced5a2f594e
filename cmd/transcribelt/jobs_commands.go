package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/daemon"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/staging"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and maintain the job queue database",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsHealthCommand(ctx))
	jobsCmd.AddCommand(newJobsPruneCommand(ctx))
	jobsCmd.AddCommand(newJobsSweepCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var stages []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(store *queue.Store) error {
				records, err := api.NewJobService(store).List(cmd.Context(), limit, stages...)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if records == nil {
						records = []api.JobRecord{}
					}
					return writeJSON(cmd, records)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						rec.JobID,
						colorStatus(rec.Status, colorize),
						rec.Stage,
						formatProgress(rec.Progress),
						rec.ClientKey,
						rec.UpdatedAt,
					})
				}
				headers := []string{"Job", "Status", "Stage", "Progress", "Client", "Updated"}
				aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
				fmt.Fprintln(out, renderTable(headers, rows, aligns))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&stages, "stage", nil, "Only show jobs in these stages")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of jobs (0 for all)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's queue record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(store *queue.Store) error {
				rec, err := api.NewJobService(store).Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, rec)
				}
				out := cmd.OutOrStdout()
				printStatus(out, rec.JobStatus, shouldColorize(out))
				if rec.ClientKey != "" {
					fmt.Fprintf(out, "Client:   %s\n", rec.ClientKey)
				}
				if rec.WorkerID != "" {
					fmt.Fprintf(out, "Worker:   %s\n", rec.WorkerID)
				}
				if rec.CreatedAt != "" {
					fmt.Fprintf(out, "Created:  %s\n", rec.CreatedAt)
				}
				return nil
			})
		},
	}
}

type jobsHealthReport struct {
	Database queue.DatabaseHealth `json:"database"`
	Jobs     queue.HealthSummary  `json:"jobs"`
}

func newJobsHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health and job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(store *queue.Store) error {
				db, dbErr := store.CheckHealth(cmd.Context())
				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					if err := writeJSON(cmd, jobsHealthReport{Database: db, Jobs: summary}); err != nil {
						return err
					}
					return dbErr
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database path: %s\n", db.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(db.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(db.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %d\n", db.SchemaVersion)
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(db.IntegrityCheck))
				if db.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", db.Error)
				}
				rows := [][]string{
					{"queued", strconv.Itoa(summary.Queued)},
					{"running", strconv.Itoa(summary.Running)},
					{"completed", strconv.Itoa(summary.Completed)},
					{"failed", strconv.Itoa(summary.Failed)},
					{"total", strconv.Itoa(summary.Total)},
				}
				fmt.Fprintln(out, renderTable([]string{"Bucket", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
				return dbErr
			})
		},
	}
}

func newJobsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete completed and failed jobs older than a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}
			return ctx.withQueue(func(store *queue.Store) error {
				removed, err := store.PruneTerminal(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]int64{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d finished job(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Only prune jobs last updated before now minus this duration")
	return cmd
}

func newJobsSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove staging and work directories whose job is gone or finished",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withQueue(func(store *queue.Store) error {
				opts := staging.SweepOptions{MinAge: olderThan, Keep: staging.KeepActive(store), DryRun: dryRun}
				var rows [][]string
				var total int64
				var failed int
				for _, root := range []string{cfg.Paths.StagingDir, cfg.Paths.WorkDir} {
					result := staging.Sweep(cmd.Context(), root, opts, logging.NewNop())
					for _, dir := range result.Removed {
						rows = append(rows, []string{dir.Name, dir.Path, humanize.Bytes(uint64(dir.Size))})
					}
					total += result.Bytes()
					for _, e := range result.Errors {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", e.Path, e.Err)
					}
				}
				out := cmd.OutOrStdout()
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable([]string{"Job", "Path", "Size"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
				}
				verb := "Removed"
				if dryRun {
					verb = "Would remove"
				}
				fmt.Fprintf(out, "%s %d director(ies), %s\n", verb, len(rows), humanize.Bytes(uint64(total)))
				if failed > 0 {
					return fmt.Errorf("%d director(ies) could not be swept", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", daemon.WorkspaceSweepAge, "Skip directories modified more recently than this")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting")
	return cmd
}
