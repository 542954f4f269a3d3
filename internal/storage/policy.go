// Package storage keeps the verification documents attached to purchase
// requests: an S3-compatible object store plus an optional DynamoDB ledger
// of every upload.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// MaxDocumentBytes is the upload ceiling for a single document.
const MaxDocumentBytes = 3 << 20

var (
	ErrInvalidType = errors.New("document must be a JPEG, PNG or PDF file")
	ErrTooLarge    = errors.New("document exceeds 3 MiB")
	ErrUnavailable = errors.New("document storage unavailable")
)

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

// Document is an upload that passed the content policy.
type Document struct {
	Body        []byte
	ContentType string
	Extension   string
}

// Inspect reads at most MaxDocumentBytes+1 bytes from r and sniffs the
// content type from the bytes themselves; the client's declared type and
// file name are ignored.
func Inspect(r io.Reader) (Document, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}
	if len(body) > MaxDocumentBytes {
		return Document{}, ErrTooLarge
	}
	if len(body) == 0 {
		return Document{}, ErrInvalidType
	}
	mt := mimetype.Detect(body)
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok := allowedTypes[m.String()]; ok {
			return Document{Body: body, ContentType: m.String(), Extension: ext}, nil
		}
	}
	return Document{}, fmt.Errorf("%w (got %s)", ErrInvalidType, mt.String())
}

func (d Document) reader() io.Reader { return bytes.NewReader(d.Body) }
