package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var errMultipartUnsupported = errors.New("fake s3: multipart upload not supported")

// fakeS3 is an in-memory bucket implementing S3Client.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	headErr   error
	putBucket string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putBucket = aws.ToString(in.Bucket)
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)),
		})
	}
	return out, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errMultipartUnsupported
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errMultipartUnsupported
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errMultipartUnsupported
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3Vault(t *testing.T) {
	runVaultContract(t, func(*testing.T) Vault {
		return NewS3VaultWithClient("s3", "bucket", "registry", newFakeS3())
	})
}

func TestS3Vault_KeyLayout(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		prefix string
		want   string
	}{
		{"", "snapshots/a.snap"},
		{"registry", "registry/snapshots/a.snap"},
		{"/nested/path/", "nested/path/snapshots/a.snap"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			fake := newFakeS3()
			v := NewS3VaultWithClient("s3", "bucket", tt.prefix, fake)
			if err := v.PutSnapshot(ctx, "a.snap", strings.NewReader("x"), 1); err != nil {
				t.Fatalf("PutSnapshot() error = %v", err)
			}
			if _, ok := fake.objects[tt.want]; !ok {
				t.Errorf("object keys = %v, want %q", fake.objects, tt.want)
			}
			if fake.putBucket != "bucket" {
				t.Errorf("bucket = %q, want %q", fake.putBucket, "bucket")
			}
		})
	}
}

func TestS3Vault_ListIgnoresForeignKeys(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	fake.objects["registry/snapshots/good.snap"] = []byte("1")
	fake.objects["registry/snapshots/nested/bad.snap"] = []byte("2")
	fake.objects["registry/other.txt"] = []byte("3")

	infos, err := NewS3VaultWithClient("s3", "bucket", "registry", fake).ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "good.snap" {
		t.Errorf("ListSnapshots() = %+v, want only good.snap", infos)
	}
}

func TestS3Vault_ValidateSetupError(t *testing.T) {
	fake := newFakeS3()
	fake.headErr = errors.New("access denied")
	v := NewS3VaultWithClient("s3", "bucket", "", fake)
	if err := v.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() error = nil, want error")
	}
}
