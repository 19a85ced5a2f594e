package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
)

// ReviewService backs the summary review surface: browsing job folders,
// reading summaries, and managing reviewer comments.
type ReviewService struct {
	objects objectstore.Store
	records summary.RecordStore
	now     func() time.Time
	newID   func() string
}

// NewReviewService builds a ReviewService.
func NewReviewService(objects objectstore.Store, records summary.RecordStore) *ReviewService {
	return &ReviewService{
		objects: objects,
		records: records,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SetClock overrides the time source for comment timestamps.
func (s *ReviewService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Folders lists one level of the artifact store.
func (s *ReviewService) Folders(ctx context.Context, prefix string) (objectstore.Listing, error) {
	listing, err := s.objects.List(ctx, strings.TrimSpace(prefix))
	if err != nil {
		return objectstore.Listing{}, services.Wrap(services.ErrTransient, "review", "list", "Could not list folders", err)
	}
	if listing.Folders == nil {
		listing.Folders = []string{}
	}
	if listing.Files == nil {
		listing.Files = []objectstore.Object{}
	}
	return listing, nil
}

// Summary returns the summary of folderID, rendered as HTML unless format is
// raw.
func (s *ReviewService) Summary(ctx context.Context, folderID, format string) (SummaryResponse, error) {
	record, err := s.record(ctx, folderID)
	if err != nil {
		return SummaryResponse{}, err
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatHTML:
		return SummaryResponse{FolderID: record.FolderID, Summary: summary.FormatHTML(record.Summary), Format: FormatHTML}, nil
	case FormatRaw:
		return SummaryResponse{FolderID: record.FolderID, Summary: record.Summary, Format: FormatRaw}, nil
	default:
		return SummaryResponse{}, fmt.Errorf("%w: unsupported format %q", services.ErrValidation, format)
	}
}

// Comments lists the comments on folderID.
func (s *ReviewService) Comments(ctx context.Context, folderID string) (CommentsResponse, error) {
	record, err := s.record(ctx, folderID)
	if err != nil {
		return CommentsResponse{}, err
	}
	comments := record.Comments
	if comments == nil {
		comments = []summary.Comment{}
	}
	return CommentsResponse{FolderID: record.FolderID, Comments: comments}, nil
}

// AddComment appends a comment to folderID. A missing id or timestamp is
// generated.
func (s *ReviewService) AddComment(ctx context.Context, folderID string, req CommentRequest) (summary.Comment, error) {
	c := summary.Comment{
		FolderID:  strings.TrimSpace(folderID),
		CommentID: strings.TrimSpace(req.CommentID),
		Text:      req.Text,
		RefText:   req.RefText,
		Timestamp: strings.TrimSpace(req.Timestamp),
	}
	if c.CommentID == "" {
		c.CommentID = s.newID()
	}
	if c.Timestamp == "" {
		c.Timestamp = summary.Timestamp(s.now())
	}
	if err := summary.ValidateComment(c); err != nil {
		return summary.Comment{}, err
	}
	if err := s.records.AddComment(ctx, c); err != nil {
		return summary.Comment{}, s.storeError("add", err)
	}
	return c, nil
}

// EditComment replaces the text of one comment.
func (s *ReviewService) EditComment(ctx context.Context, folderID, commentID, text string) (summary.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return summary.Comment{}, fmt.Errorf("%w: text is required", services.ErrValidation)
	}
	c, err := s.records.EditComment(ctx, strings.TrimSpace(folderID), strings.TrimSpace(commentID), text, s.now())
	if err != nil {
		return summary.Comment{}, s.storeError("edit", err)
	}
	return c, nil
}

// DeleteComment removes one comment and returns the remaining list.
func (s *ReviewService) DeleteComment(ctx context.Context, folderID, commentID string) (CommentsResponse, error) {
	folderID = strings.TrimSpace(folderID)
	remaining, err := s.records.DeleteComment(ctx, folderID, strings.TrimSpace(commentID))
	if err != nil {
		return CommentsResponse{}, s.storeError("delete", err)
	}
	if remaining == nil {
		remaining = []summary.Comment{}
	}
	return CommentsResponse{FolderID: folderID, Comments: remaining}, nil
}

func (s *ReviewService) record(ctx context.Context, folderID string) (*summary.Record, error) {
	folderID = strings.TrimSpace(folderID)
	if folderID == "" {
		return nil, summary.ErrRecordNotFound
	}
	record, err := s.records.Get(ctx, folderID)
	if err != nil {
		return nil, s.storeError("get", err)
	}
	return record, nil
}

// storeError keeps not-found and validation errors intact and marks the rest
// transient.
func (s *ReviewService) storeError(op string, err error) error {
	switch services.KindOf(err) {
	case services.KindNotFound, services.KindValidation:
		return err
	}
	return services.Wrap(services.ErrTransient, "review", op, "Summary store unavailable", err)
}
