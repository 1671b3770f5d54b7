// Package gcs implements the object-storage capability on Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yomitext/pdfocr/internal/domain"
)

// Store implements domain.BlobStore backed by a storage.Client. The client
// is safe for concurrent use and shared across runs.
type Store struct {
	client *storage.Client
	logger zerolog.Logger
}

// NewStore creates a GCS-backed blob store. credentialsPath may be empty, in
// which case ambient application-default credentials are used.
func NewStore(ctx context.Context, credentialsPath string, logger zerolog.Logger) (*Store, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, domain.ConfigError("failed to create storage client", err)
	}
	return &Store{client: client, logger: logger}, nil
}

// Upload copies a local file to gs://bucket/objectName.
func (s *Store) Upload(ctx context.Context, localPath, bucket, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return domain.InputError(fmt.Sprintf("cannot open %s", localPath), err)
	}
	defer f.Close()

	w := s.client.Bucket(bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return domain.RemoteServiceError("upload",
			fmt.Sprintf("failed to write gs://%s/%s", bucket, objectName), err)
	}
	if err := w.Close(); err != nil {
		return domain.RemoteServiceError("upload",
			fmt.Sprintf("failed to finalize gs://%s/%s", bucket, objectName), err)
	}

	s.logger.Debug().
		Str("local", localPath).
		Str("object", fmt.Sprintf("gs://%s/%s", bucket, objectName)).
		Msg("uploaded object")
	return nil
}

// List returns the names of all objects under prefix.
func (s *Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, domain.RemoteServiceError("list",
				fmt.Sprintf("failed to list gs://%s/%s", bucket, prefix), err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Download returns the full content of an object.
func (s *Store) Download(ctx context.Context, bucket, objectName string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, domain.RemoteServiceError("download",
			fmt.Sprintf("failed to open gs://%s/%s", bucket, objectName), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.RemoteServiceError("download",
			fmt.Sprintf("failed to read gs://%s/%s", bucket, objectName), err)
	}
	return data, nil
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, bucket, objectName string) error {
	if err := s.client.Bucket(bucket).Object(objectName).Delete(ctx); err != nil {
		return domain.RemoteServiceError("delete",
			fmt.Sprintf("failed to delete gs://%s/%s", bucket, objectName), err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
