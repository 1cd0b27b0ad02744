package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkdrain/internal/types"
)

// fakeS3 is an in-memory S3 double tracking objects and ETags. ETags are
// monotonic counters, which is all the store's version check needs.
type fakeS3 struct {
	objects map[string][]byte
	etags   map[string]string
	nextTag int

	getErr    error
	putErr    error
	copyErr   error
	deleteErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (f *fakeS3) bump(key string) {
	f.nextTag++
	f.etags[key] = fmt.Sprintf("\"etag-%d\"", f.nextTag)
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(body)),
		ETag: aws.String(f.etags[aws.ToString(params.Key)]),
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	key := aws.ToString(params.Key)
	if params.IfMatch != nil && f.etags[key] != aws.ToString(params.IfMatch) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "precondition failed"}
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = body
	f.bump(key)
	return &s3.PutObjectOutput{ETag: aws.String(f.etags[key])}, nil
}

func (f *fakeS3) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if f.copyErr != nil {
		return nil, f.copyErr
	}
	// CopySource is "bucket/key"; the fake only stores keys.
	src := aws.ToString(params.CopySource)
	for key, body := range f.objects {
		if src == "jobs-bucket/"+key {
			dst := aws.ToString(params.Key)
			f.objects[dst] = append([]byte(nil), body...)
			f.bump(dst)
			return &s3.CopyObjectOutput{}, nil
		}
	}
	return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "source missing"}
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(params.Key))
	delete(f.etags, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func testItems(n int) []types.WorkItem {
	items := make([]types.WorkItem, n)
	for i := range items {
		items[i] = types.WorkItem{
			ItemID:  fmt.Sprintf("id-%d", i),
			LongURL: fmt.Sprintf("https://example.com/%d", i),
		}
	}
	return items
}

func TestStoreWriteReadRoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "jobs-bucket")
	ctx := context.Background()

	props, err := store.Write(ctx, "jobs/j1/links.csv", testItems(3))
	require.NoError(t, err)
	assert.Equal(t, "jobs/j1/links.csv", props.Key)
	assert.NotEmpty(t, props.ETag)

	items, version, err := store.Read(ctx, "jobs/j1/links.csv")
	require.NoError(t, err)
	assert.Equal(t, testItems(3), items)
	assert.Equal(t, props.ETag, version)
}

func TestStoreReadAbsentQueue(t *testing.T) {
	store := NewStore(newFakeS3(), "jobs-bucket")

	_, _, err := store.Read(context.Background(), "jobs/missing/links.csv")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundQueue, appErr.Code)
}

func TestStoreOverwriteVersionConflict(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "jobs-bucket")
	ctx := context.Background()

	_, err := store.Write(ctx, "jobs/j1/links.csv", testItems(5))
	require.NoError(t, err)

	_, version, err := store.Read(ctx, "jobs/j1/links.csv")
	require.NoError(t, err)

	// A concurrent tick rewrites the queue after our read.
	_, err = store.Write(ctx, "jobs/j1/links.csv", testItems(2))
	require.NoError(t, err)

	_, err = store.Overwrite(ctx, "jobs/j1/links.csv", testItems(1), version)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConflictQueueVersion, appErr.Code)
}

func TestStoreOverwriteMatchingVersion(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "jobs-bucket")
	ctx := context.Background()

	_, err := store.Write(ctx, "jobs/j1/links.csv", testItems(5))
	require.NoError(t, err)

	_, version, err := store.Read(ctx, "jobs/j1/links.csv")
	require.NoError(t, err)

	props, err := store.Overwrite(ctx, "jobs/j1/links.csv", testItems(2), version)
	require.NoError(t, err)

	items, _, err := store.Read(ctx, "jobs/j1/links.csv")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.NotEqual(t, version, props.ETag)
}

func TestStoreCopySnapshot(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "jobs-bucket")
	ctx := context.Background()

	_, err := store.Write(ctx, "jobs/j1/links.csv", testItems(4))
	require.NoError(t, err)

	require.NoError(t, store.Copy(ctx, "jobs/j1/links.csv", "jobs/j1/original.csv"))

	snapshot, _, err := store.Read(ctx, "jobs/j1/original.csv")
	require.NoError(t, err)
	assert.Equal(t, testItems(4), snapshot)
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	fake := newFakeS3()
	store := NewStore(fake, "jobs-bucket")
	ctx := context.Background()

	_, err := store.Write(ctx, "jobs/j1/links.csv", testItems(1))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "jobs/j1/links.csv"))
	// Deleting an absent object succeeds, mirroring S3 semantics.
	require.NoError(t, store.Delete(ctx, "jobs/j1/links.csv"))
}
