package messaging

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// SQS sends and receives through an Amazon SQS queue.
type SQS struct {
	api        sqsiface.SQSAPI
	queueURL   string
	region     string
	visibility int64
}

// NewSQS wraps an SQS client. A missing queue URL or region surfaces as a
// configuration error on first use.
func NewSQS(api sqsiface.SQSAPI, queueURL, region string, visibilitySeconds int64) *SQS {
	return &SQS{api: api, queueURL: queueURL, region: region, visibility: visibilitySeconds}
}

func (q *SQS) check(op string) error {
	if q.queueURL == "" || q.region == "" {
		return services.Wrap(services.ErrConfiguration, "messaging", op, "SQS queue URL and region must be configured", nil)
	}
	return nil
}

// Send publishes msg.
func (q *SQS) Send(ctx context.Context, msg Message) error {
	if err := q.check("send"); err != nil {
		return err
	}
	body, err := msg.Encode()
	if err != nil {
		return err
	}
	_, err = q.api.SendMessageWithContext(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "messaging", "send", "SQS send failed", err)
	}
	return nil
}

// Receive long-polls for up to max messages. SQS caps max at 10 and wait at 20s.
func (q *SQS) Receive(ctx context.Context, max int, wait time.Duration) ([]Delivery, error) {
	if err := q.check("receive"); err != nil {
		return nil, err
	}
	if max <= 0 || max > 10 {
		max = 10
	}
	waitSeconds := int64(wait / time.Second)
	if waitSeconds > 20 {
		waitSeconds = 20
	}
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: aws.Int64(int64(max)),
		WaitTimeSeconds:     aws.Int64(waitSeconds),
		AttributeNames:      []*string{aws.String(sqs.MessageSystemAttributeNameApproximateReceiveCount)},
	}
	if q.visibility > 0 {
		input.VisibilityTimeout = aws.Int64(q.visibility)
	}
	out, err := q.api.ReceiveMessageWithContext(ctx, input)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "messaging", "receive", "SQS receive failed", err)
	}
	deliveries := make([]Delivery, 0, len(out.Messages))
	for _, m := range out.Messages {
		d := Delivery{
			ID:      aws.StringValue(m.MessageId),
			Receipt: aws.StringValue(m.ReceiptHandle),
			Body:    aws.StringValue(m.Body),
		}
		if raw, ok := m.Attributes[sqs.MessageSystemAttributeNameApproximateReceiveCount]; ok {
			d.ReceiveCount, _ = strconv.Atoi(aws.StringValue(raw))
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

// Delete acknowledges receipt.
func (q *SQS) Delete(ctx context.Context, receipt string) error {
	if err := q.check("delete"); err != nil {
		return err
	}
	_, err := q.api.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return services.Wrap(services.ErrTransient, "messaging", "delete", "SQS delete failed", err)
	}
	return nil
}
