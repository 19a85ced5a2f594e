package summary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
)

// maxCommentRetries bounds optimistic retries when comment lists race.
const maxCommentRetries = 5

// SQLStore keeps records in the state database. Comments are stored as a JSON
// array and updated with compare-and-swap on the serialized list.
type SQLStore struct {
	db  *statedb.DB
	now func() time.Time
}

// NewSQLStore returns a RecordStore on db.
func NewSQLStore(db *statedb.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// PutSummary implements RecordStore.
func (s *SQLStore) PutSummary(ctx context.Context, folderID, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summary_records (folder_id, summary, comments, updated_at) VALUES (?, ?, '[]', ?)
		 ON CONFLICT (folder_id) DO UPDATE SET summary = excluded.summary, comments = '[]', updated_at = excluded.updated_at`,
		folderID, summary, s.now().UnixMilli(),
	)
	if err != nil {
		return services.Wrap(services.ErrTransient, "summary", "put", "Could not store summary", err)
	}
	return nil
}

// Get implements RecordStore.
func (s *SQLStore) Get(ctx context.Context, folderID string) (*Record, error) {
	rec, _, err := s.load(ctx, folderID)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLStore) load(ctx context.Context, folderID string) (*Record, string, error) {
	var (
		rec = Record{FolderID: folderID}
		raw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT summary, comments FROM summary_records WHERE folder_id = ?`, folderID,
	).Scan(&rec.Summary, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrRecordNotFound
	}
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "summary", "get", "Could not read summary", err)
	}
	if err := json.Unmarshal([]byte(raw), &rec.Comments); err != nil {
		return nil, "", fmt.Errorf("decode comments for %s: %w", folderID, err)
	}
	if rec.Comments == nil {
		rec.Comments = []Comment{}
	}
	return &rec, raw, nil
}

// swap replaces the comment list only if it still serializes to prev.
func (s *SQLStore) swap(ctx context.Context, folderID, prev string, comments []Comment) (bool, error) {
	encoded, err := json.Marshal(comments)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE summary_records SET comments = ?, updated_at = ? WHERE folder_id = ? AND comments = ?`,
		string(encoded), s.now().UnixMilli(), folderID, prev,
	)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, "summary", "comments", "Could not update comments", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// AddComment implements RecordStore.
func (s *SQLStore) AddComment(ctx context.Context, c Comment) error {
	if err := ValidateComment(c); err != nil {
		return err
	}
	if c.Timestamp == "" {
		c.Timestamp = Timestamp(s.now())
	}
	// Comments may arrive before the summary; seed an empty record.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summary_records (folder_id, summary, comments, updated_at) VALUES (?, '', '[]', ?)
		 ON CONFLICT (folder_id) DO NOTHING`,
		c.FolderID, s.now().UnixMilli(),
	)
	if err != nil {
		return services.Wrap(services.ErrTransient, "summary", "comments", "Could not create record", err)
	}
	for attempt := 0; attempt < maxCommentRetries; attempt++ {
		rec, raw, err := s.load(ctx, c.FolderID)
		if err != nil {
			return err
		}
		ok, err := s.swap(ctx, c.FolderID, raw, append(rec.Comments, c))
		if err != nil || ok {
			return err
		}
	}
	return services.Wrap(services.ErrTransient, "summary", "comments", "Comment list changed concurrently", nil)
}

// EditComment implements RecordStore.
func (s *SQLStore) EditComment(ctx context.Context, folderID, commentID, text string, at time.Time) (Comment, error) {
	for attempt := 0; attempt < maxCommentRetries; attempt++ {
		rec, raw, err := s.load(ctx, folderID)
		if err != nil {
			return Comment{}, err
		}
		edited, found := editInPlace(rec.Comments, commentID, text, at)
		if !found {
			return Comment{}, ErrCommentNotFound
		}
		ok, err := s.swap(ctx, folderID, raw, rec.Comments)
		if err != nil {
			return Comment{}, err
		}
		if ok {
			return edited, nil
		}
	}
	return Comment{}, services.Wrap(services.ErrTransient, "summary", "comments", "Comment list changed concurrently", nil)
}

// DeleteComment implements RecordStore.
func (s *SQLStore) DeleteComment(ctx context.Context, folderID, commentID string) ([]Comment, error) {
	for attempt := 0; attempt < maxCommentRetries; attempt++ {
		rec, raw, err := s.load(ctx, folderID)
		if err != nil {
			return nil, err
		}
		remaining, found := without(rec.Comments, commentID)
		if !found {
			return nil, ErrCommentNotFound
		}
		ok, err := s.swap(ctx, folderID, raw, remaining)
		if err != nil {
			return nil, err
		}
		if ok {
			return remaining, nil
		}
	}
	return nil, services.Wrap(services.ErrTransient, "summary", "comments", "Comment list changed concurrently", nil)
}
