package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/segmentio/ksuid"

	"github.com/villa-armonia/lot-reservation/internal/config"
)

// Document categories, one per verification upload.
const (
	CategoryID      = "id"
	CategoryAddress = "address"
)

// Stored describes an object written to the bucket.
type Stored struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes documents to one bucket under documents/<category>/.
type S3Store struct {
	client  s3API
	bucket  string
	baseURL string
	newKey  func() string
}

// NewS3Store builds the S3 client from cfg.  A custom endpoint (MinIO,
// LocalStack) switches to path-style addressing.
func NewS3Store(ctx context.Context, cfg config.StorageConfig) (*S3Store, error) {
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
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg config.StorageConfig) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBase(cfg),
		newKey:  func() string { return ksuid.New().String() },
	}
}

func publicBase(cfg config.StorageConfig) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

// Put stores doc and returns where it can be fetched.  Any client failure
// is reported as ErrUnavailable.
func (s *S3Store) Put(ctx context.Context, category string, doc Document) (Stored, error) {
	key := fmt.Sprintf("documents/%s/%s%s", category, s.newKey(), doc.Extension)
	size := int64(len(doc.Body))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          doc.reader(),
		ContentType:   aws.String(doc.ContentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return Stored{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Stored{Key: key, URL: s.baseURL + "/" + key, ContentType: doc.ContentType, Size: size}, nil
}
