package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"linkdrain/internal/types"
)

// S3API is the subset of the S3 SDK client used by the queue store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store implements types.QueueStore on S3. Queues are whole CSV objects; the
// object ETag serves as the optimistic-concurrency version tag. A tick's
// overwrite only succeeds if no other tick has rewritten the queue since it
// was read; a mismatch is reported as a conflict, never guessed-resolved.
type Store struct {
	client S3API
	bucket string
}

// NewStore creates a queue store over the given bucket.
func NewStore(client S3API, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

// Read fetches and decodes the queue object, returning its items in order
// and the object's ETag as the version tag.
func (s *Store) Read(ctx context.Context, key string) ([]types.WorkItem, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, "", types.NewAppError(types.ErrCodeNotFoundQueue,
				fmt.Sprintf("no queue object at %s", key), err)
		}
		return nil, "", types.NewAppError(types.ErrCodeInternalBlobStore,
			fmt.Sprintf("failed to read queue object %s", key), err)
	}
	defer out.Body.Close()

	items, err := DecodeItems(out.Body)
	if err != nil {
		return nil, "", types.NewAppError(types.ErrCodeInternalCodec,
			fmt.Sprintf("failed to decode queue object %s", key), err)
	}
	return items, aws.ToString(out.ETag), nil
}

// Overwrite rewrites the queue object in full, conditioned on the version
// (ETag) being unchanged since the read. Lost/late writes surface as a
// conflict error for the losing tick.
func (s *Store) Overwrite(ctx context.Context, key string, items []types.WorkItem, version string) (types.QueueProperties, error) {
	return s.put(ctx, key, items, aws.String(version))
}

// Write persists the items unconditionally. Used at job creation, before
// any clock exists for the job.
func (s *Store) Write(ctx context.Context, key string, items []types.WorkItem) (types.QueueProperties, error) {
	return s.put(ctx, key, items, nil)
}

func (s *Store) put(ctx context.Context, key string, items []types.WorkItem, ifMatch *string) (types.QueueProperties, error) {
	body, err := EncodeItems(items)
	if err != nil {
		return types.QueueProperties{}, types.NewAppError(types.ErrCodeInternalCodec,
			fmt.Sprintf("failed to encode queue for %s", key), err)
	}

	out, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("text/csv"),
		IfMatch:     ifMatch,
	})
	if err != nil {
		if isPreconditionFailed(err) {
			return types.QueueProperties{}, types.NewAppError(types.ErrCodeConflictQueueVersion,
				fmt.Sprintf("queue %s was rewritten by a concurrent tick", key), err)
		}
		return types.QueueProperties{}, types.NewAppError(types.ErrCodeInternalBlobStore,
			fmt.Sprintf("failed to write queue object %s", key), err)
	}

	return types.QueueProperties{
		Key:  key,
		Size: int64(len(body)),
		ETag: aws.ToString(out.ETag),
	}, nil
}

// Copy snapshots srcKey to dstKey within the bucket.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + srcKey),
		Key:        aws.String(dstKey),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalBlobStore,
			fmt.Sprintf("failed to copy %s to %s", srcKey, dstKey), err)
	}
	return nil
}

// Delete removes the queue object. S3 DeleteObject succeeds on absent keys,
// which is exactly the idempotency the completion path relies on.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalBlobStore,
			fmt.Sprintf("failed to delete queue object %s", key), err)
	}
	return nil
}

// PutRaw writes an arbitrary object (the final artifact) and returns its
// descriptor fields. contentEncoding may be empty.
func (s *Store) PutRaw(ctx context.Context, key string, body []byte, contentType, contentEncoding string) (types.QueueProperties, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}
	if contentEncoding != "" {
		in.ContentEncoding = aws.String(contentEncoding)
	}
	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		return types.QueueProperties{}, types.NewAppError(types.ErrCodeInternalBlobStore,
			fmt.Sprintf("failed to write object %s", key), err)
	}
	return types.QueueProperties{
		Key:  key,
		Size: int64(len(body)),
		ETag: aws.ToString(out.ETag),
	}, nil
}

// ReadRaw fetches an object's bytes.
func (s *Store) ReadRaw(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, types.NewAppError(types.ErrCodeNotFoundQueue,
				fmt.Sprintf("no object at %s", key), err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalBlobStore,
			fmt.Sprintf("failed to read object %s", key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalBlobStore,
			fmt.Sprintf("failed to read body of %s", key), err)
	}
	return data, nil
}

// isPreconditionFailed reports whether err is the S3 response to a failed
// If-Match condition.
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed"
}
