// Package s3blob backs registry.NewS3Registry with AWS S3 or any
// S3-compatible object store (MinIO, Ceph RGW).
package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/distill-go/distill/registry"
)

// Store implements registry.BlobStore on top of an S3 bucket. All corpus
// payloads are JSON documents, so objects are written with a JSON content type.
type Store struct {
	client      *s3.Client
	bucket      string
	prefix      string
	contentType string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix scopes all keys under the given bucket prefix. A trailing
// slash is added when missing so "corpora" and "corpora/" behave the same.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		prefix = strings.Trim(prefix, "/")
		if prefix != "" {
			prefix += "/"
		}
		s.prefix = prefix
	}
}

// WithContentType overrides the content type set on uploaded objects.
func WithContentType(ct string) Option {
	return func(s *Store) { s.contentType = ct }
}

// New creates a Store over an existing S3 client and bucket.
func New(client *s3.Client, bucket string, opts ...Option) *Store {
	s := &Store{client: client, bucket: bucket, contentType: "application/json"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewFromConfig creates a Store using the default AWS config chain
// (env, shared config, instance role).
func NewFromConfig(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return New(s3.NewFromConfig(cfg), bucket, opts...), nil
}

func (s *Store) key(k string) string { return s.prefix + k }

// Get fetches an object's body.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Put uploads an object.
func (s *Store) Put(ctx context.Context, key string, body []byte) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
		Body:   bytes.NewReader(body),
	}
	if s.contentType != "" {
		in.ContentType = aws.String(s.contentType)
	}
	_, err := s.client.PutObject(ctx, in)
	return err
}

// List returns all keys under the given prefix, with the store prefix stripped.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})
	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			keys = append(keys, strings.TrimPrefix(*obj.Key, s.prefix))
		}
	}
	return keys, nil
}

// Delete removes an object. Deleting a missing key is not an error in S3.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(key)),
	})
	return err
}

var _ registry.BlobStore = (*Store)(nil)
