package cfsign

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/cloudfront/sign"

	"github.com/dmitrijs2005/cdnkeeper/internal/common"
	"github.com/dmitrijs2005/cdnkeeper/internal/metrics"
	"github.com/dmitrijs2005/cdnkeeper/internal/netx"
	"github.com/dmitrijs2005/cdnkeeper/internal/secrets"
)

// DefaultTTLDays is the lifetime of a signed URL when the caller does not
// choose one.
const DefaultTTLDays = 7

const day = 24 * time.Hour

// Credentials is the part of the credential provider the signer needs.
type Credentials interface {
	Get(key string) (string, error)
	GetOrDefault(key, def string) string
}

var _ Credentials = (*secrets.Provider)(nil)

// Signer signs CloudFront URLs with one key pair. It is safe for
// concurrent use.
type Signer struct {
	keyPairID  string
	key        *rsa.PrivateKey
	now        func() time.Time
	metrics    metrics.Metrics
	httpClient *http.Client
}

type Option func(*Signer)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(s *Signer) { s.metrics = m }
}

// WithHTTPClient sets the client used by Check.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Signer) { s.httpClient = c }
}

// New loads the key pair id and private key from creds.
func New(creds Credentials, opts ...Option) (*Signer, error) {
	keyPairID, err := creds.Get(secrets.KeyCFKeyPairID)
	if err != nil {
		return nil, fmt.Errorf("key pair id: %w: %w", common.ErrSigning, err)
	}
	pemText, err := creds.Get(secrets.KeyCFKeyPairPEM)
	if err != nil {
		return nil, fmt.Errorf("private key: %w: %w", common.ErrSigning, err)
	}

	key, err := parsePrivateKey(normalizePEM(pemText), creds.GetOrDefault(secrets.KeyCFKeyPairPassphrase, ""))
	if err != nil {
		return nil, err
	}

	return NewWithKey(keyPairID, key, opts...), nil
}

// NewWithKey builds a Signer from an already parsed key.
func NewWithKey(keyPairID string, key *rsa.PrivateKey, opts ...Option) *Signer {
	s := &Signer{
		keyPairID: keyPairID,
		key:       key,
		now:       time.Now,
		metrics:   metrics.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeyPairID returns the id presented alongside every signature.
func (s *Signer) KeyPairID() string { return s.keyPairID }

// Resource returns the URL a policy for bucket/key grants access to.
func Resource(bucket, key string) string {
	u := url.URL{Scheme: "https", Host: bucket, Path: "/" + strings.TrimPrefix(key, "/")}
	return u.String()
}

func (s *Signer) expiry(ttlDays int) (time.Time, error) {
	if ttlDays < 1 {
		return time.Time{}, fmt.Errorf("ttl of %d days does not produce a valid policy: %w", ttlDays, common.ErrSigning)
	}
	now := s.now()
	expires := now.Add(time.Duration(ttlDays) * day).Truncate(time.Second)
	if !expires.After(now) {
		return time.Time{}, fmt.Errorf("policy already expired at %s: %w", expires.UTC().Format(time.RFC3339), common.ErrSigning)
	}
	return expires, nil
}

// Policy returns the canned policy Sign would sign for bucket/key.
func (s *Signer) Policy(bucket, key string, ttlDays int) (*sign.Policy, error) {
	expires, err := s.expiry(ttlDays)
	if err != nil {
		return nil, err
	}
	return sign.NewCannedPolicy(Resource(bucket, key), expires), nil
}

// PolicyDocument returns the JSON form of Policy, the exact bytes that get
// signed.
func (s *Signer) PolicyDocument(bucket, key string, ttlDays int) ([]byte, error) {
	p, err := s.Policy(bucket, key, ttlDays)
	if err != nil {
		return nil, err
	}
	return encodePolicy(p)
}

// Sign returns the full signed URL for bucket/key, valid for ttlDays.
func (s *Signer) Sign(bucket, key string, ttlDays int) (string, error) {
	query, err := s.cannedQuery(bucket, key, ttlDays)
	if err != nil {
		return "", err
	}
	s.metrics.IncSigned("canned")
	return Resource(bucket, key) + "?" + query, nil
}

// SignKeyOnly returns just the authorisation query string (without the
// leading '?') for callers that already hold the base URL.
func (s *Signer) SignKeyOnly(bucket, key string, ttlDays int) (string, error) {
	query, err := s.cannedQuery(bucket, key, ttlDays)
	if err != nil {
		return "", err
	}
	s.metrics.IncSigned("key_only")
	return query, nil
}

func (s *Signer) cannedQuery(bucket, key string, ttlDays int) (string, error) {
	p, err := s.Policy(bucket, key, ttlDays)
	if err != nil {
		return "", err
	}

	sig, _, err := p.Sign(s.key)
	if err != nil {
		return "", fmt.Errorf("sign policy: %w: %w", common.ErrSigning, err)
	}

	expires := p.Statements[0].Condition.DateLessThan.Unix()
	return "Expires=" + strconv.FormatInt(expires, 10) +
		"&Signature=" + string(sig) +
		"&Key-Pair-Id=" + url.QueryEscape(s.keyPairID), nil
}

// PolicyOptions narrows a custom policy.
type PolicyOptions struct {
	TTLDays int

	// SourceIP is an address or CIDR range the request must come from.
	SourceIP string

	// NotBefore, when set, is the earliest time the URL is accepted.
	NotBefore time.Time
}

// CustomPolicy builds the custom policy SignWithPolicy would sign.
func (s *Signer) CustomPolicy(bucket, key string, opts PolicyOptions) (*sign.Policy, error) {
	expires, err := s.expiry(opts.TTLDays)
	if err != nil {
		return nil, err
	}

	cond := sign.Condition{DateLessThan: sign.NewAWSEpochTime(expires)}

	if opts.SourceIP != "" {
		ip, err := normalizeSourceIP(opts.SourceIP)
		if err != nil {
			return nil, err
		}
		cond.IPAddress = &sign.IPAddress{SourceIP: ip}
	}
	if !opts.NotBefore.IsZero() {
		if !opts.NotBefore.Before(expires) {
			return nil, fmt.Errorf("policy starts after it expires: %w", common.ErrSigning)
		}
		cond.DateGreaterThan = sign.NewAWSEpochTime(opts.NotBefore.Truncate(time.Second))
	}

	return &sign.Policy{
		Statements: []sign.Statement{{Resource: Resource(bucket, key), Condition: cond}},
	}, nil
}

// SignWithPolicy returns a URL authorised by a custom policy.
func (s *Signer) SignWithPolicy(bucket, key string, opts PolicyOptions) (string, error) {
	p, err := s.CustomPolicy(bucket, key, opts)
	if err != nil {
		return "", err
	}

	sig, b64Policy, err := p.Sign(s.key)
	if err != nil {
		return "", fmt.Errorf("sign policy: %w: %w", common.ErrSigning, err)
	}

	s.metrics.IncSigned("custom")
	return Resource(bucket, key) +
		"?Policy=" + string(b64Policy) +
		"&Signature=" + string(sig) +
		"&Key-Pair-Id=" + url.QueryEscape(s.keyPairID), nil
}

// Check requests signedURL with HEAD and returns the HTTP status, letting
// operators confirm the distribution accepts the signature.
func (s *Signer) Check(ctx context.Context, signedURL string) (int, error) {
	return netx.Probe(ctx, s.httpClient, signedURL)
}

func normalizeSourceIP(v string) (string, error) {
	if prefix, err := netip.ParsePrefix(v); err == nil {
		return prefix.Masked().String(), nil
	}
	addr, err := netip.ParseAddr(v)
	if err != nil {
		return "", fmt.Errorf("source ip %q: %w", v, common.ErrSigning)
	}
	return netip.PrefixFrom(addr, addr.BitLen()).String(), nil
}

// encodePolicy mirrors the encoding CloudFront signs: compact JSON without
// HTML escaping.
func encodePolicy(p *sign.Policy) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode policy: %w: %w", common.ErrSigning, err)
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
