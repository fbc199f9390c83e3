package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-state-backup/core"
)

// ObjectAPI is the slice of the S3 client this package needs.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ObjectStore keeps workspace snapshots in one bucket, keyed by workspace.
type S3ObjectStore struct {
	Client ObjectAPI
	Bucket string
}

// NewS3ObjectStore returns a store bound to the given bucket.
func NewS3ObjectStore(client ObjectAPI, bucket string) *S3ObjectStore {
	return &S3ObjectStore{Client: client, Bucket: bucket}
}

// Head describes the stored object at key. A missing object is reported as
// ObjectInfo{Exists: false}, never as an error.
func (s *S3ObjectStore) Head(ctx context.Context, key string) (core.ObjectInfo, error) {
	if err := s.check(key); err != nil {
		return core.ObjectInfo{}, err
	}

	out, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return core.ObjectInfo{Exists: false}, nil
		}
		return core.ObjectInfo{}, storageError("storage: head object", err, s.Bucket, key)
	}

	info := core.ObjectInfo{Exists: true, Metadata: out.Metadata}
	if out.LastModified != nil {
		info.LastModified = out.LastModified.UTC()
	}
	return info, nil
}

// Upload writes the snapshot payload with its metadata. Writes are full
// object replacements.
func (s *S3ObjectStore) Upload(ctx context.Context, key string, body io.Reader, metadata map[string]string) error {
	if err := s.check(key); err != nil {
		return err
	}

	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.Bucket),
		Key:      aws.String(key),
		Body:     body,
		Metadata: metadata,
	})
	if err != nil {
		return storageError("storage: put object", err, s.Bucket, key)
	}
	return nil
}

func (s *S3ObjectStore) check(key string) error {
	if s == nil || s.Client == nil || strings.TrimSpace(s.Bucket) == "" {
		return core.NewError(
			"storage: object store is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}
	if strings.TrimSpace(key) == "" {
		return core.NewError(
			"storage: object key is required",
			goerrors.CategoryValidation,
			http.StatusUnprocessableEntity,
			core.BackupErrorValidation,
			nil,
		)
	}
	return nil
}

func storageError(message string, source error, bucket, key string) error {
	return core.WrapError(
		source,
		goerrors.CategoryExternal,
		message,
		http.StatusBadGateway,
		core.BackupErrorStorageFailed,
		map[string]any{"bucket": bucket, "key": key},
	)
}
