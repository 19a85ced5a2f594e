package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// colorStatus tints a coarse job status for terminals.
func colorStatus(status string, colorize bool) string {
	if !colorize {
		return status
	}
	color := ""
	switch status {
	case api.StatusCompleted:
		color = ansiGreen
	case api.StatusFailed:
		color = ansiRed
	case api.StatusProcessing:
		color = ansiYellow
	case api.StatusQueued:
		color = ansiBlue
	}
	if color == "" {
		return status
	}
	return color + status + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatProgress(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}

// printStatus writes a job status as aligned key/value lines.
func printStatus(out io.Writer, st api.JobStatus, colorize bool) {
	fmt.Fprintf(out, "Job:      %s\n", st.JobID)
	fmt.Fprintf(out, "Status:   %s\n", colorStatus(st.Status, colorize))
	fmt.Fprintf(out, "Stage:    %s (%s)\n", st.Stage, formatProgress(st.Progress))
	if st.Message != "" {
		fmt.Fprintf(out, "Message:  %s\n", st.Message)
	}
	if st.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", st.Error)
	}
	if st.ResultURL != "" {
		fmt.Fprintf(out, "Result:   %s\n", st.ResultURL)
	}
	if st.UpdatedAt != "" {
		fmt.Fprintf(out, "Updated:  %s\n", st.UpdatedAt)
	}
}
