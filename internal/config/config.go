package config

import (
	"path"
	"strconv"
	"time"

	"github.com/dmitrijs2005/cdnkeeper/internal/secrets"
)

// Config holds runtime settings for cdnkeeper.
//
// Fields:
//   - StaticBucket / StaticDomain: public asset bucket and its CDN domain.
//   - PrivateBucket / PrivateDomain: private file bucket and its CDN domain.
//   - StaticLocation: key prefix of static assets inside StaticBucket.
//   - CompressOutputDir: directory (relative to StaticLocation) holding manifest.json.
//   - Region / S3BaseEndpoint: object storage settings; the endpoint is optional.
//   - DistributionID: CloudFront distribution serving StaticBucket.
//   - Concurrency: worker count for batch operations.
//   - SignTTL: default lifetime of signed URLs.
//   - CallerReference: idempotency reference sent with invalidations.
//   - LocalCacheDir: when set, uploaded assets are also kept on local disk.
//   - UploadACL / Gzip: how static assets are written.
//   - PushGateway: Prometheus pushgateway URL; empty disables pushing.
type Config struct {
	StaticBucket      string
	StaticDomain      string
	PrivateBucket     string
	PrivateDomain     string
	StaticLocation    string
	CompressOutputDir string
	Region            string
	S3BaseEndpoint    string
	DistributionID    string
	Concurrency       int
	SignTTL           time.Duration
	CallerReference   string
	LocalCacheDir     string
	UploadACL         string
	Gzip              bool
	PushGateway       string
}

// Setting keys read from the credential provider.
const (
	KeyStaticBucket      = "S3_STATIC_FILES_BUCKET_NAME"
	KeyStaticDomain      = "S3_STATIC_FILES_DOMAIN_NAME"
	KeyPrivateBucket     = "S3_PRIVATE_FILES_BUCKET_NAME"
	KeyPrivateDomain     = "S3_PRIVATE_FILES_DOMAIN_NAME"
	KeyStaticLocation    = "STATICFILES_LOCATION"
	KeyCompressOutputDir = "COMPRESS_OUTPUT_DIR"
	KeyRegion            = "AWS_REGION"
	KeyS3BaseEndpoint    = "S3_BASE_ENDPOINT"
	KeyConcurrency       = "CDNKEEPER_CONCURRENCY"
)

const (
	DefaultConcurrency = 10
	DefaultSignTTL     = 7 * 24 * time.Hour
	manifestFile       = "manifest.json"
)

// LoadDefaults populates Config with the production defaults.
func (c *Config) LoadDefaults() {
	c.StaticLocation = "static"
	c.CompressOutputDir = "source"
	c.Region = "us-east-1"
	c.Concurrency = DefaultConcurrency
	c.SignTTL = DefaultSignTTL
	c.CallerReference = "cdnkeeper"
	c.UploadACL = "public-read"
	c.Gzip = true
}

// LoadConfig builds a Config by applying defaults and then overlaying
// values found in the credential provider. Flags are applied separately
// by ApplyFlags once the command line has been parsed.
func LoadConfig(p *secrets.Provider) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	applySecrets(cfg, p)
	return cfg
}

func applySecrets(c *Config, p *secrets.Provider) {
	c.StaticBucket = p.GetOrDefault(KeyStaticBucket, c.StaticBucket)
	c.StaticDomain = p.GetOrDefault(KeyStaticDomain, c.StaticDomain)
	c.PrivateBucket = p.GetOrDefault(KeyPrivateBucket, c.PrivateBucket)
	c.PrivateDomain = p.GetOrDefault(KeyPrivateDomain, c.PrivateDomain)
	c.StaticLocation = p.GetOrDefault(KeyStaticLocation, c.StaticLocation)
	c.CompressOutputDir = p.GetOrDefault(KeyCompressOutputDir, c.CompressOutputDir)
	c.Region = p.GetOrDefault(KeyRegion, c.Region)
	c.S3BaseEndpoint = p.GetOrDefault(KeyS3BaseEndpoint, c.S3BaseEndpoint)
	c.DistributionID = p.GetOrDefault(secrets.KeyCFStaticDistroID, c.DistributionID)

	if n, err := strconv.Atoi(p.GetOrDefault(KeyConcurrency, "")); err == nil && n > 0 {
		c.Concurrency = n
	}
}

// ManifestName is the storage name, relative to StaticLocation, of the
// compressor manifest whose upload triggers a CDN invalidation.
func (c *Config) ManifestName() string {
	return path.Join(c.CompressOutputDir, manifestFile)
}

// SignTTLDays returns SignTTL in whole days. Zero and negative values are
// passed through so the signer can reject them.
func (c *Config) SignTTLDays() int {
	return int(c.SignTTL / (24 * time.Hour))
}
