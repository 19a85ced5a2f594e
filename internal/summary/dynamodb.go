package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

const (
	dynamoKeyColumn      = "folderID"
	dynamoSummaryColumn  = "summary"
	dynamoCommentsColumn = "comments"
)

// DynamoStore keeps records in a DynamoDB table keyed by folderID.
type DynamoStore struct {
	db    dynamodbiface.DynamoDBAPI
	table string
	now   func() time.Time
}

// NewDynamoStore returns a RecordStore backed by table.
func NewDynamoStore(db dynamodbiface.DynamoDBAPI, table string) (*DynamoStore, error) {
	if db == nil || table == "" {
		return nil, services.Wrap(services.ErrConfiguration, "summary", "dynamodb", "DynamoDB table name is required", nil)
	}
	return &DynamoStore{db: db, table: table, now: time.Now}, nil
}

func (d *DynamoStore) key(folderID string) map[string]*dynamodb.AttributeValue {
	return map[string]*dynamodb.AttributeValue{dynamoKeyColumn: {S: aws.String(folderID)}}
}

// PutSummary implements RecordStore.
func (d *DynamoStore) PutSummary(ctx context.Context, folderID, summary string) error {
	_, err := d.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: map[string]*dynamodb.AttributeValue{
			dynamoKeyColumn:      {S: aws.String(folderID)},
			dynamoSummaryColumn:  {S: aws.String(summary)},
			dynamoCommentsColumn: {L: []*dynamodb.AttributeValue{}},
		},
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "summary", "put", "Could not store summary", err)
	}
	return nil
}

// Get implements RecordStore.
func (d *DynamoStore) Get(ctx context.Context, folderID string) (*Record, error) {
	out, err := d.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(folderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "summary", "get", "Could not read summary", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrRecordNotFound
	}
	var rec Record
	if err := dynamodbattribute.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", folderID, err)
	}
	if rec.Comments == nil {
		rec.Comments = []Comment{}
	}
	return &rec, nil
}

// AddComment implements RecordStore.
func (d *DynamoStore) AddComment(ctx context.Context, c Comment) error {
	if err := ValidateComment(c); err != nil {
		return err
	}
	if c.Timestamp == "" {
		c.Timestamp = Timestamp(d.now())
	}
	item, err := dynamodbattribute.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode comment: %w", err)
	}
	_, err = d.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(d.table),
		Key:              d.key(c.FolderID),
		UpdateExpression: aws.String("SET comments = list_append(if_not_exists(comments, :empty_list), :comment)"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":empty_list": {L: []*dynamodb.AttributeValue{}},
			":comment":    {L: []*dynamodb.AttributeValue{item}},
		},
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "summary", "comments", "Could not add comment", err)
	}
	return nil
}

// EditComment implements RecordStore. The update is conditioned on the
// comment still sitting at the index read, so a concurrent delete forces a
// re-read.
func (d *DynamoStore) EditComment(ctx context.Context, folderID, commentID, text string, at time.Time) (Comment, error) {
	for attempt := 0; attempt < maxCommentRetries; attempt++ {
		rec, err := d.Get(ctx, folderID)
		if err != nil {
			return Comment{}, err
		}
		index := indexOf(rec.Comments, commentID)
		if index < 0 {
			return Comment{}, ErrCommentNotFound
		}
		edited, _ := editInPlace(rec.Comments, commentID, text, at)
		_, err = d.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(d.table),
			Key:       d.key(folderID),
			UpdateExpression: aws.String(fmt.Sprintf(
				"SET comments[%d].#text = :text, comments[%d].edited = :edited, comments[%d].updatedAt = :updatedAt",
				index, index, index,
			)),
			ConditionExpression:      aws.String(fmt.Sprintf("comments[%d].commentId = :commentId", index)),
			ExpressionAttributeNames: map[string]*string{"#text": aws.String("text")},
			ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
				":text":      {S: aws.String(text)},
				":edited":    {BOOL: aws.Bool(true)},
				":updatedAt": {S: aws.String(edited.UpdatedAt)},
				":commentId": {S: aws.String(commentID)},
			},
		})
		if isConditionFailure(err) {
			continue
		}
		if err != nil {
			return Comment{}, services.Wrap(services.ErrTransient, "summary", "comments", "Could not edit comment", err)
		}
		return edited, nil
	}
	return Comment{}, services.Wrap(services.ErrTransient, "summary", "comments", "Comment list changed concurrently", nil)
}

// DeleteComment implements RecordStore.
func (d *DynamoStore) DeleteComment(ctx context.Context, folderID, commentID string) ([]Comment, error) {
	for attempt := 0; attempt < maxCommentRetries; attempt++ {
		rec, err := d.Get(ctx, folderID)
		if err != nil {
			return nil, err
		}
		remaining, found := without(rec.Comments, commentID)
		if !found {
			return nil, ErrCommentNotFound
		}
		encoded, err := marshalComments(remaining)
		if err != nil {
			return nil, err
		}
		_, err = d.db.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(d.table),
			Key:                 d.key(folderID),
			UpdateExpression:    aws.String("SET comments = :newComments"),
			ConditionExpression: aws.String("size(comments) = :previous"),
			ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
				":newComments": encoded,
				":previous":    {N: aws.String(fmt.Sprint(len(rec.Comments)))},
			},
		})
		if isConditionFailure(err) {
			continue
		}
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "summary", "comments", "Could not delete comment", err)
		}
		return remaining, nil
	}
	return nil, services.Wrap(services.ErrTransient, "summary", "comments", "Comment list changed concurrently", nil)
}

// marshalComments always yields an L attribute, even for an empty list.
func marshalComments(comments []Comment) (*dynamodb.AttributeValue, error) {
	list := make([]*dynamodb.AttributeValue, 0, len(comments))
	for _, c := range comments {
		item, err := dynamodbattribute.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode comment %s: %w", c.CommentID, err)
		}
		list = append(list, item)
	}
	return &dynamodb.AttributeValue{L: list}, nil
}

func indexOf(comments []Comment, commentID string) int {
	for i, c := range comments {
		if c.CommentID == commentID {
			return i
		}
	}
	return -1
}

func isConditionFailure(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeConditionalCheckFailedException
}
