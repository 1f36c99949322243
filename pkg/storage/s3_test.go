package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory S3API.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	testStoreContract(t, NewS3Store(newFakeS3(), "bucket", "memval/"))
}

func TestS3StoreObjectLayout(t *testing.T) {
	client := newFakeS3()
	store := NewS3Store(client, "bucket", "prefs/").WithContentType("application/json")

	if err := store.Set(context.Background(), "theme", []byte(`"dark"`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if got := string(client.objects["bucket/prefs/theme"]); got != `"dark"` {
		t.Errorf("object = %q, want %q", got, `"dark"`)
	}
	if got := client.types["bucket/prefs/theme"]; got != "application/json" {
		t.Errorf("content type = %q, want application/json", got)
	}
}

func TestS3StoreBackendError(t *testing.T) {
	client := newFakeS3()
	client.fail = errors.New("access denied")
	store := NewS3Store(client, "bucket", "")

	if _, err := store.Get(context.Background(), "k"); err == nil {
		t.Error("expected Get() to surface backend errors")
	}
	if err := store.Set(context.Background(), "k", []byte("1")); !errors.Is(err, client.fail) {
		t.Errorf("Set() error = %v, want wrapped backend error", err)
	}
}
