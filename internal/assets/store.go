// Package assets stores static and private files in S3 behind CloudFront.
//
// A Store is configured through Options instead of a storage class
// hierarchy: the static store keeps a local copy, gzips text assets and
// invalidates the manifest on upload, while the private store only uploads
// and hands out signed URLs.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/dmitrijs2005/cdnkeeper/internal/filex"
	"github.com/dmitrijs2005/cdnkeeper/internal/invalidation"
	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/dmitrijs2005/cdnkeeper/internal/metrics"
	"github.com/dmitrijs2005/cdnkeeper/internal/s3store"
)

const defaultContentType = "application/octet-stream"

// gzipTypes are the media types compressed before upload when Gzip is on.
var gzipTypes = map[string]bool{
	"text/css":                 true,
	"text/javascript":          true,
	"application/javascript":   true,
	"application/x-javascript": true,
	"application/json":         true,
	"image/svg+xml":            true,
}

// Uploader writes objects to the bucket.
type Uploader interface {
	Put(ctx context.Context, in s3store.PutInput) error
}

// Invalidator purges a stored name from the CDN.
type Invalidator interface {
	Invalidate(ctx context.Context, name string) *invalidation.Result
}

// URLSigner produces CloudFront signed URLs.
type URLSigner interface {
	Sign(bucket, key string, ttlDays int) (string, error)
}

var (
	_ Uploader    = (*s3store.Store)(nil)
	_ Invalidator = (*invalidation.Invalidator)(nil)
)

type Options struct {
	Bucket string

	// Domain is the custom (CloudFront) domain URLs are built on. When
	// empty the bucket's S3 endpoint is used.
	Domain string

	// Location is the key prefix every name is stored under.
	Location string

	ACL  string
	Gzip bool

	// LocalDir, when set, receives a copy of every saved file.
	LocalDir string

	// ManifestName is the name whose upload triggers an invalidation.
	ManifestName string
}

type Store struct {
	opts        Options
	uploader    Uploader
	invalidator Invalidator
	signer      URLSigner
	logger      logging.Logger
	metrics     metrics.Metrics
}

type Option func(*Store)

func WithInvalidator(i Invalidator) Option {
	return func(s *Store) { s.invalidator = i }
}

func WithSigner(signer URLSigner) Option {
	return func(s *Store) { s.signer = signer }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

func New(uploader Uploader, opts Options, logger logging.Logger, options ...Option) *Store {
	s := &Store{
		opts:     opts,
		uploader: uploader,
		logger:   logger,
		metrics:  metrics.Noop{},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Save stores body under name and returns the normalised name.
func (s *Store) Save(ctx context.Context, name string, body []byte) (string, error) {
	name = cleanName(name)
	if name == "" {
		return "", fmt.Errorf("empty asset name")
	}

	if s.opts.LocalDir != "" {
		if _, err := filex.WriteFile(s.opts.LocalDir, name, body); err != nil {
			return "", fmt.Errorf("local copy of %s: %w", name, err)
		}
	}

	in := s3store.PutInput{
		Bucket:      s.opts.Bucket,
		Key:         s.Key(name),
		Body:        body,
		ContentType: contentType(name),
		ACL:         s.opts.ACL,
	}

	if s.opts.Gzip && compressible(in.ContentType) {
		zipped, err := gzipBytes(body)
		if err != nil {
			return "", fmt.Errorf("gzip %s: %w", name, err)
		}
		in.Body = zipped
		in.ContentEncoding = "gzip"
	}

	if err := s.uploader.Put(ctx, in); err != nil {
		s.metrics.IncUpload("failed")
		return "", err
	}
	s.metrics.IncUpload("ok")
	s.logger.Debug(ctx, "asset saved", "bucket", in.Bucket, "key", in.Key, "bytes", len(in.Body), "encoding", in.ContentEncoding)

	if s.invalidator != nil && s.opts.ManifestName != "" && name == cleanName(s.opts.ManifestName) {
		// The invalidator logs its own failures.
		s.invalidator.Invalidate(ctx, name)
	}

	return name, nil
}

// Key returns the object key name is stored at.
func (s *Store) Key(name string) string {
	name = cleanName(name)
	if s.opts.Location == "" {
		return name
	}
	return path.Join(s.opts.Location, name)
}

func (s *Store) host() string {
	if s.opts.Domain != "" {
		return s.opts.Domain
	}
	return s.opts.Bucket + ".s3.amazonaws.com"
}

// URL returns the public URL of name.
func (s *Store) URL(name string) string {
	u := url.URL{Scheme: "https", Host: s.host(), Path: "/" + s.Key(name)}
	return u.String()
}

// SignedURL returns a CloudFront signed URL for name valid for ttlDays.
func (s *Store) SignedURL(name string, ttlDays int) (string, error) {
	if s.signer == nil {
		return "", fmt.Errorf("store for %s has no signer", s.opts.Bucket)
	}
	return s.signer.Sign(s.host(), s.Key(name), ttlDays)
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	return name
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return defaultContentType
}

func compressible(ct string) bool {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return gzipTypes[mediaType]
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
