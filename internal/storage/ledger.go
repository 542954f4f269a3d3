package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/villa-armonia/lot-reservation/internal/config"
)

// LedgerEntry is one uploaded document.  RequestID stays empty until the
// purchase request that uses the document commits; entries left empty are
// orphans.
type LedgerEntry struct {
	ObjectKey   string `dynamodbav:"object_key"`
	Subject     string `dynamodbav:"subject"`
	Category    string `dynamodbav:"category"`
	ContentType string `dynamodbav:"content_type"`
	Size        int64  `dynamodbav:"size"`
	UploadedAt  string `dynamodbav:"uploaded_at"`
	RequestID   string `dynamodbav:"request_id,omitempty"`
	AttachedAt  string `dynamodbav:"attached_at,omitempty"`
}

// Ledger tracks uploads.
type Ledger interface {
	Record(ctx context.Context, e LedgerEntry) error
	Attach(ctx context.Context, requestID string, keys ...string) error
}

// NopLedger is used when no ledger table is configured.
type NopLedger struct{}

func (NopLedger) Record(context.Context, LedgerEntry) error { return nil }
func (NopLedger) Attach(context.Context, string, ...string) error { return nil }

type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoLedger stores entries in a table keyed by object_key (string).
type DynamoLedger struct {
	ddb   dynamoAPI
	table string
	now   func() time.Time
}

// NewLedger returns a DynamoLedger for cfg.LedgerTable, or NopLedger when
// the table is not configured.
func NewLedger(ctx context.Context, cfg config.StorageConfig) (Ledger, error) {
	if cfg.LedgerTable == "" {
		return NopLedger{}, nil
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	})
	return newDynamoLedger(client, cfg.LedgerTable), nil
}

func newDynamoLedger(ddb dynamoAPI, table string) *DynamoLedger {
	return &DynamoLedger{ddb: ddb, table: table, now: func() time.Time { return time.Now().UTC() }}
}

func (l *DynamoLedger) Record(ctx context.Context, e LedgerEntry) error {
	if e.UploadedAt == "" {
		e.UploadedAt = l.now().Format(time.RFC3339)
	}
	av, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	_, err = l.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#k)"),
		ExpressionAttributeNames: map[string]string{
			"#k": "object_key",
		},
	})
	if err != nil {
		return fmt.Errorf("record %s: %w", e.ObjectKey, err)
	}
	return nil
}

// Attach marks each key as used by requestID.
func (l *DynamoLedger) Attach(ctx context.Context, requestID string, keys ...string) error {
	at := l.now().Format(time.RFC3339)
	for _, key := range keys {
		_, err := l.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(l.table),
			Key: map[string]types.AttributeValue{
				"object_key": &types.AttributeValueMemberS{Value: key},
			},
			UpdateExpression:    aws.String("SET #rid = :rid, #at = :at"),
			ConditionExpression: aws.String("attribute_exists(#k)"),
			ExpressionAttributeNames: map[string]string{
				"#rid": "request_id",
				"#at":  "attached_at",
				"#k":   "object_key",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rid": &types.AttributeValueMemberS{Value: requestID},
				":at":  &types.AttributeValueMemberS{Value: at},
			},
		})
		if err != nil {
			return fmt.Errorf("attach %s: %w", key, err)
		}
	}
	return nil
}
