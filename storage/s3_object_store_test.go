package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/goliatone/go-state-backup/core"
)

type stubObjectAPI struct {
	headInput  *s3.HeadObjectInput
	headOutput *s3.HeadObjectOutput
	headErr    error

	putInput *s3.PutObjectInput
	putErr   error
}

func (s *stubObjectAPI) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	s.headInput = params
	return s.headOutput, s.headErr
}

func (s *stubObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.putInput = params
	return &s3.PutObjectOutput{}, s.putErr
}

func TestHeadMissingObjectIsNotAnError(t *testing.T) {
	api := &stubObjectAPI{headErr: &types.NotFound{}}
	store := NewS3ObjectStore(api, "backups")

	info, err := store.Head(context.Background(), "tfc-state-backup/foo.tfstate")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.Exists {
		t.Fatalf("expected missing object to report Exists=false")
	}
}

func TestHeadReturnsMetadata(t *testing.T) {
	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	api := &stubObjectAPI{
		headOutput: &s3.HeadObjectOutput{
			Metadata:     map[string]string{core.MetadataStateCreatedAt: "2024-05-01T11:59:00.000000Z"},
			LastModified: aws.Time(modified),
		},
	}
	store := NewS3ObjectStore(api, "backups")

	info, err := store.Head(context.Background(), "tfc-state-backup/foo.tfstate")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if !info.Exists {
		t.Fatalf("expected existing object")
	}
	if info.Metadata[core.MetadataStateCreatedAt] != "2024-05-01T11:59:00.000000Z" {
		t.Fatalf("unexpected metadata %+v", info.Metadata)
	}
	if !info.LastModified.Equal(modified) {
		t.Fatalf("unexpected last modified %v", info.LastModified)
	}
	if aws.ToString(api.headInput.Bucket) != "backups" {
		t.Fatalf("unexpected bucket %q", aws.ToString(api.headInput.Bucket))
	}
}

func TestHeadPropagatesOtherErrors(t *testing.T) {
	api := &stubObjectAPI{headErr: errors.New("access denied")}
	store := NewS3ObjectStore(api, "backups")

	_, err := store.Head(context.Background(), "tfc-state-backup/foo.tfstate")
	if err == nil {
		t.Fatalf("expected non-404 failure to propagate")
	}
	if got := core.ErrorTextCode(err); got != core.BackupErrorStorageFailed {
		t.Fatalf("expected storage text code, got %q", got)
	}
}

func TestUploadSendsBodyAndMetadata(t *testing.T) {
	api := &stubObjectAPI{}
	store := NewS3ObjectStore(api, "backups")
	metadata := map[string]string{core.MetadataStateCreatedAt: "2024-05-01T12:00:00.000000Z"}

	err := store.Upload(context.Background(), "tfc-state-backup/foo.tfstate", strings.NewReader("{}"), metadata)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if api.putInput == nil {
		t.Fatalf("expected a put request")
	}
	if aws.ToString(api.putInput.Key) != "tfc-state-backup/foo.tfstate" {
		t.Fatalf("unexpected key %q", aws.ToString(api.putInput.Key))
	}
	if api.putInput.Metadata[core.MetadataStateCreatedAt] != metadata[core.MetadataStateCreatedAt] {
		t.Fatalf("unexpected metadata %+v", api.putInput.Metadata)
	}
	data, err := io.ReadAll(api.putInput.Body)
	if err != nil || string(data) != "{}" {
		t.Fatalf("unexpected body %q err=%v", string(data), err)
	}
}

func TestStoreRejectsMissingConfiguration(t *testing.T) {
	store := NewS3ObjectStore(nil, "")
	if _, err := store.Head(context.Background(), "k"); err == nil {
		t.Fatalf("expected unconfigured store to fail")
	}
	if err := store.Upload(context.Background(), "k", strings.NewReader("{}"), nil); err == nil {
		t.Fatalf("expected unconfigured store to fail")
	}
}
