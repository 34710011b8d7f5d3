package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/v2t/web/internal/config"
)

type uploaderStub struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (u *uploaderStub) Upload(ctx context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	_ = ctx
	u.input = input
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	u.body = string(data)
	if u.err != nil {
		return nil, u.err
	}
	return &manager.UploadOutput{}, nil
}

func TestS3StorageSave(t *testing.T) {
	stub := &uploaderStub{}
	store := newS3Storage(stub, "exports", "https://cdn.example.com/")

	location, err := store.Save(context.Background(), "/exports/vid-1/video_vid-1_results.json", strings.NewReader(`{"ok":true}`))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if location != "https://cdn.example.com/exports/vid-1/video_vid-1_results.json" {
		t.Fatalf("unexpected location %q", location)
	}
	if aws.ToString(stub.input.Bucket) != "exports" || aws.ToString(stub.input.Key) != "exports/vid-1/video_vid-1_results.json" {
		t.Fatalf("unexpected input bucket=%q key=%q", aws.ToString(stub.input.Bucket), aws.ToString(stub.input.Key))
	}
	if aws.ToString(stub.input.ContentType) != "application/json" {
		t.Fatalf("unexpected content type %q", aws.ToString(stub.input.ContentType))
	}
	if stub.body != `{"ok":true}` {
		t.Fatalf("unexpected body %q", stub.body)
	}
}

func TestS3StorageSaveWithoutBaseURL(t *testing.T) {
	store := newS3Storage(&uploaderStub{}, "exports", "")
	location, err := store.Save(context.Background(), "exports/vid/a.txt", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if location != "exports/vid/a.txt" {
		t.Fatalf("expected key as location got %q", location)
	}
}

func TestS3StorageErrors(t *testing.T) {
	store := newS3Storage(&uploaderStub{err: errors.New("access denied")}, "exports", "")
	if _, err := store.Save(context.Background(), "/", strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := store.Save(context.Background(), "exports/a.txt", strings.NewReader("x")); err == nil {
		t.Fatal("expected upload error")
	}
	if _, err := NewS3Storage(context.Background(), config.ObjectStoreConfig{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
