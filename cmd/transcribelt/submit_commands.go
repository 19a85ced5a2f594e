package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "submit <video>",
		Short: "Upload a video for captioning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			path := strings.TrimSpace(args[0])
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect video: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			resp, err := client.SubmitFile(cmd.Context(), path)
			if err != nil {
				return describeAPIError(err)
			}
			out := cmd.OutOrStdout()
			if !wait {
				if ctx.JSONMode() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(out, "%s: %s\n", resp.Message, resp.JobID)
				return nil
			}

			if !ctx.JSONMode() {
				fmt.Fprintf(out, "%s: %s\n", resp.Message, resp.JobID)
			}
			colorize := shouldColorize(out)
			final, err := client.WaitForTerminal(cmd.Context(), resp.JobID, interval, func(st api.JobStatus) {
				if ctx.JSONMode() {
					return
				}
				fmt.Fprintf(out, "  %s %s\n", colorStatus(st.Status, colorize), st.Stage)
			})
			if err != nil {
				return describeAPIError(err)
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, final)
			}
			printStatus(out, final, colorize)
			if final.Status == api.StatusFailed {
				return fmt.Errorf("job %s failed", final.JobID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job completes or fails")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval with --wait")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			st, err := client.Status(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return describeAPIError(err)
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, st)
			}
			out := cmd.OutOrStdout()
			printStatus(out, st, shouldColorize(out))
			return nil
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <filename>",
		Short: "Download a captioned video or transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			target := strings.TrimSpace(output)
			if target == "" {
				target = filepath.Base(name)
			}
			if target == "-" {
				_, err := client.Download(cmd.Context(), name, cmd.OutOrStdout())
				return describeAPIError(err)
			}

			tmp := target + ".part"
			f, err := os.Create(tmp)
			if err != nil {
				return fmt.Errorf("create %s: %w", tmp, err)
			}
			n, err := client.Download(cmd.Context(), name, f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(tmp)
				return describeAPIError(err)
			}
			if err := os.Rename(tmp, target); err != nil {
				_ = os.Remove(tmp)
				return fmt.Errorf("finalize %s: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", target, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path, or - for stdout")
	return cmd
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show ingress health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, health)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server:      %s\n", client.BaseURL())
			fmt.Fprintf(out, "Status:      %s\n", health.Status)
			fmt.Fprintf(out, "Roles:       %s\n", strings.Join(health.Roles, ", "))
			fmt.Fprintf(out, "Active jobs: %d\n", health.ActiveJobs)
			if health.LastError != "" {
				fmt.Fprintf(out, "Last error:  %s\n", health.LastError)
			}
			if len(health.Stages) > 0 {
				rows := make([][]string, 0, len(health.Stages))
				for _, st := range health.Stages {
					rows = append(rows, []string{st.Name, yesNo(st.Ready), st.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Stage", "Ready", "Detail"}, rows, nil))
			}
			return nil
		},
	}
}

// describeAPIError adds a hint for throttled submissions.
func describeAPIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return fmt.Errorf("%w (retry in %s)", err, apiErr.RetryAfter)
	}
	return err
}
