package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
)

func newFoldersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "folders [prefix]",
		Short: "Browse job folders in the artifact store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			listing, err := client.Folders(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, listing)
			}
			out := cmd.OutOrStdout()
			if len(listing.Folders) == 0 && len(listing.Files) == 0 {
				fmt.Fprintln(out, "Nothing here")
				return nil
			}
			rows := make([][]string, 0, len(listing.Folders)+len(listing.Files))
			for _, folder := range listing.Folders {
				rows = append(rows, []string{folder, "folder", "", ""})
			}
			for _, file := range listing.Files {
				modified := ""
				if !file.LastModified.IsZero() {
					modified = humanize.Time(file.LastModified)
				}
				rows = append(rows, []string{file.Name, "file", humanize.Bytes(uint64(file.Size)), modified})
			}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(out, renderTable([]string{"Name", "Kind", "Size", "Modified"}, rows, aligns))
			return nil
		},
	}
}

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "summary <folder-id>",
		Short: "Print a video's summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			format := api.FormatHTML
			if raw {
				format = api.FormatRaw
			}
			resp, err := client.Summary(cmd.Context(), strings.TrimSpace(args[0]), format)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the stored text instead of HTML")
	return cmd
}

func newCommentsCommand(ctx *commandContext) *cobra.Command {
	commentsCmd := &cobra.Command{
		Use:   "comments",
		Short: "Review comments on summaries",
	}
	commentsCmd.AddCommand(newCommentsListCommand(ctx))
	commentsCmd.AddCommand(newCommentsAddCommand(ctx))
	commentsCmd.AddCommand(newCommentsEditCommand(ctx))
	commentsCmd.AddCommand(newCommentsDeleteCommand(ctx))
	return commentsCmd
}

func newCommentsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <folder-id>",
		Short: "List comments on a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Comments(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			return printComments(cmd, ctx, resp)
		},
	}
}

func newCommentsAddCommand(ctx *commandContext) *cobra.Command {
	var quote string
	var start, end int

	cmd := &cobra.Command{
		Use:   "add <folder-id> <text>",
		Short: "Comment on a summary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			req := api.CommentRequest{Text: args[1]}
			if quote != "" {
				req.RefText = &summary.RefText{StartIndex: start, EndIndex: end, Text: quote}
			}
			comment, err := client.AddComment(cmd.Context(), strings.TrimSpace(args[0]), req)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, comment)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added comment %s\n", comment.CommentID)
			return nil
		},
	}
	cmd.Flags().StringVar(&quote, "quote", "", "Summary text the comment refers to")
	cmd.Flags().IntVar(&start, "start", 0, "Start offset of the quoted text")
	cmd.Flags().IntVar(&end, "end", 0, "End offset of the quoted text")
	return cmd
}

func newCommentsEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <folder-id> <comment-id> <text>",
		Short: "Replace a comment's text",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			comment, err := client.EditComment(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(args[1]), args[2])
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, comment)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Edited comment %s\n", comment.CommentID)
			return nil
		},
	}
}

func newCommentsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <folder-id> <comment-id>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.DeleteComment(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted comment %s; %d remaining\n", args[1], len(resp.Comments))
			return nil
		},
	}
}

func printComments(cmd *cobra.Command, ctx *commandContext, resp api.CommentsResponse) error {
	if ctx.JSONMode() {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	if len(resp.Comments) == 0 {
		fmt.Fprintln(out, "No comments")
		return nil
	}
	rows := make([][]string, 0, len(resp.Comments))
	for _, c := range resp.Comments {
		text := c.Text
		if c.Edited {
			text += " (edited)"
		}
		quote := ""
		if c.RefText != nil {
			quote = c.RefText.Text
		}
		rows = append(rows, []string{c.CommentID, c.Timestamp, text, quote})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Timestamp", "Text", "Quote"}, rows, nil))
	return nil
}
