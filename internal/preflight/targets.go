package preflight

import (
	"fmt"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

// CheckStorageTarget validates the artifact store selection. The filesystem
// backend must be a writable directory; S3 needs a bucket and region. No
// request is sent to S3.
func CheckStorageTarget(cfg *config.Config) Result {
	const name = "Artifact store"
	switch cfg.Storage.Backend {
	case config.StorageFilesystem, "":
		return CheckDirectoryAccess(name, cfg.Storage.Root)
	case config.StorageS3:
		if strings.TrimSpace(cfg.Storage.Bucket) == "" {
			return Result{Name: name, Detail: "s3: missing bucket"}
		}
		if strings.TrimSpace(cfg.Storage.Region) == "" {
			return Result{Name: name, Detail: "s3: missing region"}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("s3://%s (%s)", cfg.Storage.Bucket, cfg.Storage.Region)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unknown backend %q", cfg.Storage.Backend)}
	}
}

// CheckMessagingTarget validates the downstream queue selection.
func CheckMessagingTarget(cfg *config.Config) Result {
	const name = "Downstream queue"
	switch cfg.Messaging.Backend {
	case config.MessagingNone:
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	case config.MessagingSQLite, "":
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("local queue %q", cfg.Messaging.QueueName)}
	case config.MessagingSQS:
		if strings.TrimSpace(cfg.Messaging.Region) == "" {
			return Result{Name: name, Detail: "sqs: missing region"}
		}
		if strings.TrimSpace(cfg.Messaging.QueueURL) == "" && strings.TrimSpace(cfg.Messaging.QueueName) == "" {
			return Result{Name: name, Detail: "sqs: missing queue_url or queue_name"}
		}
		return Result{Name: name, Passed: true, Detail: "sqs " + firstNonEmpty(cfg.Messaging.QueueURL, cfg.Messaging.QueueName)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unknown backend %q", cfg.Messaging.Backend)}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
