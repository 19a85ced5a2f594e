package summary_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
	"github.com/MayankTamakuwala/TranscriBelt/internal/testsupport"
)

func exerciseComments(t *testing.T, store summary.RecordStore) {
	t.Helper()
	ctx := context.Background()

	// A comment arriving first creates the record.
	if err := store.AddComment(ctx, summary.Comment{FolderID: "f1", CommentID: "c0", Text: "early"}); err != nil {
		t.Fatalf("AddComment before summary: %v", err)
	}
	if err := store.PutSummary(ctx, "f1", "the summary"); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}
	rec, err := store.Get(ctx, "f1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Summary != "the summary" || len(rec.Comments) != 0 {
		t.Fatalf("PutSummary should reset comments: %+v", rec)
	}

	for i, text := range []string{"first", "second", "third"} {
		c := summary.Comment{
			FolderID:  "f1",
			CommentID: fmt.Sprintf("c%d", i+1),
			Text:      text,
			RefText:   &summary.RefText{StartIndex: i, EndIndex: i + 4, Text: "the "},
		}
		if err := store.AddComment(ctx, c); err != nil {
			t.Fatalf("AddComment %s: %v", c.CommentID, err)
		}
	}

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	edited, err := store.EditComment(ctx, "f1", "c2", "second, revised", at)
	if err != nil {
		t.Fatalf("EditComment: %v", err)
	}
	if !edited.Edited || edited.Text != "second, revised" || edited.UpdatedAt != "2026-05-01T12:00:00.000Z" {
		t.Fatalf("unexpected edited comment %+v", edited)
	}

	remaining, err := store.DeleteComment(ctx, "f1", "c1")
	if err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if len(remaining) != 2 || remaining[0].CommentID != "c2" || remaining[1].CommentID != "c3" {
		t.Fatalf("unexpected remaining comments %+v", remaining)
	}

	rec, err = store.Get(ctx, "f1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(rec.Comments) != 2 || !rec.Comments[0].Edited || rec.Comments[1].RefText == nil {
		t.Fatalf("unexpected stored comments %+v", rec.Comments)
	}

	if _, err := store.EditComment(ctx, "f1", "missing", "x", at); !errors.Is(err, summary.ErrCommentNotFound) {
		t.Fatalf("expected comment not found, got %v", err)
	}
	if _, err := store.DeleteComment(ctx, "nope", "c1"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown folder, got %v", err)
	}
	if err := store.AddComment(ctx, summary.Comment{FolderID: "f1", CommentID: "c9"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty text, got %v", err)
	}
}

func TestSQLStoreComments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	exerciseComments(t, summary.NewSQLStore(testsupport.MustOpenStateDB(t, cfg)))
}

func TestDynamoStoreComments(t *testing.T) {
	store, err := summary.NewDynamoStore(newFakeDynamo(), "summaries")
	if err != nil {
		t.Fatalf("NewDynamoStore: %v", err)
	}
	exerciseComments(t, store)
}

func TestDynamoStoreRequiresTable(t *testing.T) {
	if _, err := summary.NewDynamoStore(newFakeDynamo(), ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

// fakeDynamo understands the handful of update expressions the store issues.
type fakeDynamo struct {
	dynamodbiface.DynamoDBAPI
	items map[string]map[string]*dynamodb.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]*dynamodb.AttributeValue{}}
}

func (f *fakeDynamo) PutItemWithContext(_ aws.Context, in *dynamodb.PutItemInput, _ ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.items[aws.StringValue(in.Item["folderID"].S)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItemWithContext(_ aws.Context, in *dynamodb.GetItemInput, _ ...request.Option) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[aws.StringValue(in.Key["folderID"].S)]}, nil
}

func (f *fakeDynamo) UpdateItemWithContext(_ aws.Context, in *dynamodb.UpdateItemInput, _ ...request.Option) (*dynamodb.UpdateItemOutput, error) {
	key := aws.StringValue(in.Key["folderID"].S)
	item, ok := f.items[key]
	if !ok {
		item = map[string]*dynamodb.AttributeValue{"folderID": {S: aws.String(key)}}
		f.items[key] = item
	}
	expr := aws.StringValue(in.UpdateExpression)
	values := in.ExpressionAttributeValues
	switch {
	case strings.Contains(expr, "list_append"):
		existing := []*dynamodb.AttributeValue{}
		if item["comments"] != nil {
			existing = item["comments"].L
		}
		item["comments"] = &dynamodb.AttributeValue{L: append(existing, values[":comment"].L...)}
	case strings.HasPrefix(expr, "SET comments = :newComments"):
		item["comments"] = values[":newComments"]
	default:
		var index int
		if _, err := fmt.Sscanf(expr, "SET comments[%d]", &index); err != nil {
			return nil, fmt.Errorf("unsupported expression %q", expr)
		}
		comment := item["comments"].L[index].M
		comment["text"] = values[":text"]
		comment["edited"] = values[":edited"]
		comment["updatedAt"] = values[":updatedAt"]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}
