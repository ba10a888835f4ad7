package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/formsync-dev/formsync/pkg/formdata"
)

// S3API is the subset of the S3 client used by S3Store. *s3.Client from
// aws-sdk-go-v2 implements it; tests substitute fakes.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store stores snapshots as JSON objects in an S3 bucket, one object per
// form, under a configurable key prefix.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	client := s3.NewFromConfig(cfg)
//	store := store.NewS3Store(client, "my-bucket")
type S3Store struct {
	client S3API
	bucket string
	prefix string
	closed bool
}

// S3StoreOption configures S3Store behavior.
type S3StoreOption func(*s3StoreConfig)

type s3StoreConfig struct {
	prefix string
}

// WithS3Prefix sets the key prefix for snapshot objects.
// Default: "forms/".
func WithS3Prefix(prefix string) S3StoreOption {
	return func(c *s3StoreConfig) {
		c.prefix = prefix
	}
}

// NewS3Store creates a new S3-backed snapshot store.
func NewS3Store(client S3API, bucket string, opts ...S3StoreOption) *S3Store {
	cfg := &s3StoreConfig{
		prefix: "forms/",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
	}
}

// key returns the object key for a form ID.
func (s *S3Store) key(formID string) string {
	return s.prefix + formID + ".json"
}

// Save uploads a form's snapshot.
func (s *S3Store) Save(ctx context.Context, formID string, snap formdata.FormData) error {
	if s.closed {
		return ErrStoreClosed{}
	}

	data, err := Serialize(formID, snap)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(formID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("store: s3 put %q: %w", formID, err)
	}
	return nil
}

// Load downloads a form's snapshot if it exists.
func (s *S3Store) Load(ctx context.Context, formID string) (formdata.FormData, error) {
	if s.closed {
		return nil, ErrStoreClosed{}
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(formID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, &SnapshotNotFoundError{FormID: formID}
		}
		return nil, fmt.Errorf("store: s3 get %q: %w", formID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("store: s3 read %q: %w", formID, err)
	}
	return Deserialize(data)
}

// Delete removes a form's snapshot object. S3 treats deleting a missing key
// as success, matching the interface contract.
func (s *S3Store) Delete(ctx context.Context, formID string) error {
	if s.closed {
		return ErrStoreClosed{}
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(formID)),
	})
	if err != nil {
		return fmt.Errorf("store: s3 delete %q: %w", formID, err)
	}
	return nil
}

// List pages through the prefix and returns the stored form IDs in sorted
// order.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	if s.closed {
		return nil, ErrStoreClosed{}
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var ids []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("store: s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			id := strings.TrimPrefix(*obj.Key, s.prefix)
			id = strings.TrimSuffix(id, ".json")
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close marks the store as closed.
// Note: This does not shut down the S3 client, as it may be shared.
func (s *S3Store) Close() error {
	s.closed = true
	return nil
}
