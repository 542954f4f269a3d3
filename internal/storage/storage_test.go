package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/villa-armonia/lot-reservation/internal/config"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	pdfBytes  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
)

func TestInspectAcceptsAllowedTypes(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		mime string
		ext  string
	}{
		{"png", pngBytes, "image/png", ".png"},
		{"pdf", pdfBytes, "application/pdf", ".pdf"},
		{"jpeg", jpegBytes, "image/jpeg", ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Inspect(bytes.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.mime, doc.ContentType)
			assert.Equal(t, tt.ext, doc.Extension)
			assert.Equal(t, tt.body, doc.Body)
		})
	}
}

func TestInspectRejects(t *testing.T) {
	_, err := Inspect(strings.NewReader("just some words, renamed to proof.pdf"))
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = Inspect(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidType)

	big := append(append([]byte{}, pdfBytes...), make([]byte, MaxDocumentBytes)...)
	_, err = Inspect(bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)

	exact := append(append([]byte{}, pdfBytes...), make([]byte, MaxDocumentBytes-len(pdfBytes))...)
	_, err = Inspect(bytes.NewReader(exact))
	assert.NoError(t, err)
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	client := &fakeS3{}
	st := newS3Store(client, config.StorageConfig{Bucket: "villa-docs", Region: "us-east-1"})
	st.newKey = func() string { return "2aTzJ0p4kQ" }

	doc, err := Inspect(bytes.NewReader(pdfBytes))
	require.NoError(t, err)
	out, err := st.Put(context.Background(), CategoryAddress, doc)
	require.NoError(t, err)

	assert.Equal(t, "documents/address/2aTzJ0p4kQ.pdf", out.Key)
	assert.Equal(t, "https://villa-docs.s3.us-east-1.amazonaws.com/documents/address/2aTzJ0p4kQ.pdf", out.URL)
	assert.EqualValues(t, len(pdfBytes), out.Size)
	assert.Equal(t, "villa-docs", aws.ToString(client.in.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(client.in.ContentType))
	assert.Equal(t, pdfBytes, client.body)
}

func TestS3StorePutUnavailable(t *testing.T) {
	st := newS3Store(&fakeS3{err: errors.New("dial tcp: connection refused")}, config.StorageConfig{Bucket: "b", Region: "r"})
	doc, err := Inspect(bytes.NewReader(pngBytes))
	require.NoError(t, err)

	_, err = st.Put(context.Background(), CategoryID, doc)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.villa.mx", publicBase(config.StorageConfig{PublicBaseURL: "https://cdn.villa.mx/", Endpoint: "http://minio:9000"}))
	assert.Equal(t, "http://minio:9000/docs", publicBase(config.StorageConfig{Endpoint: "http://minio:9000/", Bucket: "docs"}))
	assert.Equal(t, "https://docs.s3.eu-west-1.amazonaws.com", publicBase(config.StorageConfig{Bucket: "docs", Region: "eu-west-1"}))
}

type fakeDynamo struct {
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestDynamoLedger(t *testing.T) {
	ddb := &fakeDynamo{}
	l := newDynamoLedger(ddb, "document_ledger")
	l.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, LedgerEntry{
		ObjectKey:   "documents/id/abc.png",
		Subject:     "google:42",
		Category:    CategoryID,
		ContentType: "image/png",
		Size:        2048,
	}))
	require.Len(t, ddb.puts, 1)
	assert.Equal(t, "document_ledger", aws.ToString(ddb.puts[0].TableName))

	var got LedgerEntry
	require.NoError(t, attributevalue.UnmarshalMap(ddb.puts[0].Item, &got))
	assert.Equal(t, "2025-03-14T09:30:00Z", got.UploadedAt)
	assert.Equal(t, "google:42", got.Subject)
	assert.Empty(t, got.RequestID)
	_, hasRequest := ddb.puts[0].Item["request_id"]
	assert.False(t, hasRequest)

	require.NoError(t, l.Attach(ctx, "req-7", "documents/id/abc.png", "documents/address/def.pdf"))
	require.Len(t, ddb.updates, 2)
	key := ddb.updates[1].Key["object_key"].(*types.AttributeValueMemberS)
	assert.Equal(t, "documents/address/def.pdf", key.Value)
	rid := ddb.updates[0].ExpressionAttributeValues[":rid"].(*types.AttributeValueMemberS)
	assert.Equal(t, "req-7", rid.Value)
}

func TestNewLedgerWithoutTable(t *testing.T) {
	l, err := NewLedger(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.IsType(t, NopLedger{}, l)
	assert.NoError(t, l.Attach(context.Background(), "r", "k"))
}
