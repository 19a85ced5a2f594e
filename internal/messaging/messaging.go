package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
)

// Message tells the downstream consumer where a text artifact lives.
type Message struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	URL      string `json:"url"`
	FolderID string `json:"folder_id"`
}

// ErrIncompleteMessage marks a body missing one of the four required keys.
var ErrIncompleteMessage = fmt.Errorf("%w: message is missing required keys", services.ErrValidation)

// Encode serializes m as the wire JSON.
func (m Message) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses body and requires all four keys to be present and non-empty.
func Decode(body string) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Message{}, fmt.Errorf("%w: malformed message: %v", services.ErrValidation, err)
	}
	var missing []string
	fields := make(map[string]string, 4)
	for _, key := range []string{"bucket", "key", "url", "folder_id"} {
		value, _ := raw[key].(string)
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
			continue
		}
		fields[key] = value
	}
	if len(missing) > 0 {
		return Message{}, fmt.Errorf("%w: %s", ErrIncompleteMessage, strings.Join(missing, ", "))
	}
	return Message{
		Bucket:   fields["bucket"],
		Key:      fields["key"],
		URL:      fields["url"],
		FolderID: fields["folder_id"],
	}, nil
}

// Delivery is one received message. Receipt identifies this delivery for
// deletion; it changes on every redelivery.
type Delivery struct {
	ID           string
	Receipt      string
	Body         string
	ReceiveCount int
}

// Sender publishes downstream messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Queue is a Sender that can also be drained.
type Queue interface {
	Sender
	// Receive returns up to max deliveries, waiting up to wait for the first.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Delivery, error)
	// Delete acknowledges a delivery so it is not redelivered.
	Delete(ctx context.Context, receipt string) error
}

// Discard drops every message. It backs messaging.backend = "none".
type Discard struct{}

// Send does nothing.
func (Discard) Send(context.Context, Message) error { return nil }

// Receive never returns deliveries.
func (Discard) Receive(ctx context.Context, _ int, wait time.Duration) ([]Delivery, error) {
	if wait <= 0 {
		return nil, nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	}
}

// Delete does nothing.
func (Discard) Delete(context.Context, string) error { return nil }

// Open builds the queue selected by cfg. The state DB is required for the
// sqlite backend only.
func Open(cfg config.Messaging, db *statedb.DB) (Queue, error) {
	switch cfg.Backend {
	case config.MessagingNone:
		return Discard{}, nil
	case config.MessagingSQLite, "":
		if db == nil {
			return nil, errors.New("messaging: state database required for the sqlite backend")
		}
		return NewLocal(db, cfg.QueueName, time.Duration(cfg.VisibilityTimeoutSeconds)*time.Second), nil
	case config.MessagingSQS:
		awsCfg := aws.NewConfig()
		if cfg.Region != "" {
			awsCfg = awsCfg.WithRegion(cfg.Region)
		}
		sess, err := session.NewSession(awsCfg)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "messaging", "aws session", "Could not create AWS session", err)
		}
		return NewSQS(sqs.New(sess), cfg.QueueURL, cfg.Region, int64(cfg.VisibilityTimeoutSeconds)), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "messaging", "open", fmt.Sprintf("Unsupported messaging backend %q", cfg.Backend), nil)
	}
}
