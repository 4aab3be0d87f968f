package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore reads and writes request documents in a single bucket.
type ObjectStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewObjectStore wraps a storage client for one bucket.
func NewObjectStore(client *storage.Client, bucket string, logger *zap.Logger) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, logger: logger}
}

// Bucket returns the bucket documents are written to.
func (s *ObjectStore) Bucket() string {
	return s.bucket
}

// Put uploads data with retries. Objects are written only if they do not
// already exist; a 412 means an identical retry already landed.
func (s *ObjectStore) Put(ctx context.Context, object string, data []byte, contentType string, metadata map[string]string) error {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := SaveToGCSAtomically(ctx, s.client.Bucket(s.bucket), object, data, contentType, metadata)
		if err == nil {
			return nil
		}

		lastErr = err
		s.logger.Warn("Upload failed, will retry.",
			zap.String("gcsObject", object),
			zap.Int("attempt", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			s.logger.Error("Context cancelled during backoff. Aborting retries.", zap.String("gcsObject", object), zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}
	s.logger.Error("Upload failed after all retries.", zap.String("gcsObject", object), zap.Error(lastErr))
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

// Get reads a whole object. bucket may be empty to use the store's bucket.
func (s *ObjectStore) Get(ctx context.Context, bucket, object string) ([]byte, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// SaveToGCSAtomically writes data to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName string, data []byte, contentType string, metadata map[string]string) error {
	writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
	writer.ContentType = contentType
	writer.Metadata = metadata

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == 412
}
