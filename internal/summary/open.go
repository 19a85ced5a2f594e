package summary

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
)

// Open builds the record store selected by cfg.
func Open(cfg config.Summary, db *statedb.DB) (RecordStore, error) {
	switch cfg.Backend {
	case config.SummarySQLite, "":
		if db == nil {
			return nil, services.Wrap(services.ErrConfiguration, "summary", "open", "State database required for the sqlite backend", nil)
		}
		return NewSQLStore(db), nil
	case config.SummaryDynamoDB:
		if cfg.Region == "" {
			return nil, services.Wrap(services.ErrConfiguration, "summary", "open", "AWS region is required for DynamoDB", nil)
		}
		sess, err := session.NewSession(aws.NewConfig().WithRegion(cfg.Region))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "summary", "aws session", "Could not create AWS session", err)
		}
		return NewDynamoStore(dynamodb.New(sess), cfg.TableName)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "summary", "open", fmt.Sprintf("Unsupported summary backend %q", cfg.Backend), nil)
	}
}
