// Package s3store adapts the AWS S3 client to the narrow operations the
// asset lifecycle needs: listing a prefix, copying an object onto itself
// with a new storage class, writing, deleting and presigning objects.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/dmitrijs2005/cdnkeeper/internal/tiering"
)

// API is the subset of *s3.Client used by Store.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner is the subset of *s3.PresignClient used by Store.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	_ API       = (*s3.Client)(nil)
	_ Presigner = (*s3.PresignClient)(nil)

	_ tiering.Copier = (*Store)(nil)
	_ tiering.Lister = (*Store)(nil)
)

type Store struct {
	api       API
	presigner Presigner
	copyACL   types.ObjectCannedACL
	logger    logging.Logger
}

type Option func(*Store)

// WithCopyACL sets the canned ACL applied when an object is copied onto
// itself. S3 resets the ACL of a copied object to private otherwise.
func WithCopyACL(acl string) Option {
	return func(s *Store) {
		s.copyACL = types.ObjectCannedACL(acl)
	}
}

// New wraps an S3 client.
func New(client *s3.Client, logger logging.Logger, opts ...Option) *Store {
	return NewWithAPI(client, s3.NewPresignClient(client), logger, opts...)
}

// NewWithAPI builds a Store over arbitrary implementations, mainly for tests.
func NewWithAPI(api API, presigner Presigner, logger logging.Logger, opts ...Option) *Store {
	s := &Store{api: api, presigner: presigner, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListEntries returns every object stored under prefix.
func (s *Store) ListEntries(ctx context.Context, bucket, prefix string) ([]tiering.Entry, error) {
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	var entries []tiering.Entry
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, remoteError("list objects", err)
		}
		for _, obj := range page.Contents {
			entries = append(entries, tiering.Entry{
				Bucket:       bucket,
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				StorageClass: tiering.StorageClass(obj.StorageClass),
			})
		}
	}

	s.logger.Debug(ctx, "listed objects", "bucket", bucket, "prefix", prefix, "count", len(entries))
	return entries, nil
}

// CopyStorageClass copies bucket/key onto itself with class, keeping the
// object's metadata.
func (s *Store) CopyStorageClass(ctx context.Context, bucket, key string, class tiering.StorageClass) error {
	in := &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySource(bucket, key)),
		StorageClass:      types.StorageClass(class),
		MetadataDirective: types.MetadataDirectiveCopy,
	}
	if s.copyACL != "" {
		in.ACL = s.copyACL
	}

	if _, err := s.api.CopyObject(ctx, in); err != nil {
		return remoteError(fmt.Sprintf("copy %s/%s", bucket, key), err)
	}
	return nil
}

// PutInput describes an object write.
type PutInput struct {
	Bucket          string
	Key             string
	Body            []byte
	ContentType     string
	ContentEncoding string
	ACL             string
}

// Put writes an object.
func (s *Store) Put(ctx context.Context, in PutInput) error {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(in.Bucket),
		Key:           aws.String(in.Key),
		Body:          bytes.NewReader(in.Body),
		ContentLength: aws.Int64(int64(len(in.Body))),
	}
	if in.ContentType != "" {
		params.ContentType = aws.String(in.ContentType)
	}
	if in.ContentEncoding != "" {
		params.ContentEncoding = aws.String(in.ContentEncoding)
	}
	if in.ACL != "" {
		params.ACL = types.ObjectCannedACL(in.ACL)
	}

	if _, err := s.api.PutObject(ctx, params); err != nil {
		return remoteError(fmt.Sprintf("put %s/%s", in.Bucket, in.Key), err)
	}
	return nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return remoteError(fmt.Sprintf("delete %s/%s", bucket, key), err)
	}
	return nil
}

// PresignGet returns a presigned GET URL for bucket/key valid for ttl.
func (s *Store) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// copySource renders the URL-encoded "bucket/key" form CopyObject expects,
// keeping path separators intact.
func copySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

func remoteError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s: %w: %w", op, apiErr.ErrorCode(), common.ErrRemoteService, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteService, err)
}
