package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// RefText anchors a comment to a span of the summary.
type RefText struct {
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
	Text       string `json:"text"`
}

// Comment is a reviewer note attached to a summary record.
type Comment struct {
	FolderID  string   `json:"folder_id"`
	CommentID string   `json:"commentId"`
	Text      string   `json:"text"`
	RefText   *RefText `json:"ref_text,omitempty"`
	Timestamp string   `json:"timestamp"`
	Edited    bool     `json:"edited"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// Record is the persisted summary for one job folder.
type Record struct {
	FolderID string    `json:"folderID"`
	Summary  string    `json:"summary"`
	Comments []Comment `json:"comments"`
}

var (
	// ErrRecordNotFound is returned for an unknown folder.
	ErrRecordNotFound = fmt.Errorf("%w: summary record", services.ErrNotFound)
	// ErrCommentNotFound is returned for an unknown comment id.
	ErrCommentNotFound = fmt.Errorf("%w: comment", services.ErrNotFound)
)

// RecordStore persists summary records.
type RecordStore interface {
	// PutSummary upserts the record with an empty comment list. Last write wins.
	PutSummary(ctx context.Context, folderID, summary string) error
	Get(ctx context.Context, folderID string) (*Record, error)
	// AddComment appends c, creating the record if needed.
	AddComment(ctx context.Context, c Comment) error
	// EditComment replaces the text of a comment and marks it edited.
	EditComment(ctx context.Context, folderID, commentID, text string, at time.Time) (Comment, error)
	// DeleteComment removes a comment and returns the remaining list.
	DeleteComment(ctx context.Context, folderID, commentID string) ([]Comment, error)
}

// ValidateComment checks the fields a new comment needs.
func ValidateComment(c Comment) error {
	switch {
	case strings.TrimSpace(c.FolderID) == "":
		return fmt.Errorf("%w: folder_id is required", services.ErrValidation)
	case strings.TrimSpace(c.CommentID) == "":
		return fmt.Errorf("%w: commentId is required", services.ErrValidation)
	case strings.TrimSpace(c.Text) == "":
		return fmt.Errorf("%w: text is required", services.ErrValidation)
	}
	return nil
}

// Timestamp formats t the way comment timestamps are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func editInPlace(comments []Comment, commentID, text string, at time.Time) (Comment, bool) {
	for i := range comments {
		if comments[i].CommentID == commentID {
			comments[i].Text = text
			comments[i].Edited = true
			comments[i].UpdatedAt = Timestamp(at)
			return comments[i], true
		}
	}
	return Comment{}, false
}

func without(comments []Comment, commentID string) ([]Comment, bool) {
	out := make([]Comment, 0, len(comments))
	found := false
	for _, c := range comments {
		if c.CommentID == commentID {
			found = true
			continue
		}
		out = append(out, c)
	}
	return out, found
}
