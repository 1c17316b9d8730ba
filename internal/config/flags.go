package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags mirrors the subset of Config that can be set on the command line.
// Register it with RegisterFlags before parsing and fold it into a Config
// with ApplyFlags afterwards.
type Flags struct {
	fs *pflag.FlagSet

	staticBucket    string
	staticDomain    string
	privateBucket   string
	privateDomain   string
	location        string
	compressDir     string
	region          string
	endpoint        string
	distribution    string
	concurrency     int
	ttlDays         int
	callerReference string
	cacheDir        string
	acl             string
	gzip            bool
	pushGateway     string
}

// RegisterFlags adds the configuration flags to fs.
//
// Supported flags:
//
//	--static-bucket string     public asset bucket
//	--static-domain string     CDN domain of the public bucket
//	--private-bucket string    private file bucket
//	--private-domain string    CDN domain of the private bucket
//	--location string          static key prefix
//	--compress-dir string      compressor output dir holding manifest.json
//	--region string            AWS region
//	--endpoint string          S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	--distribution string      CloudFront distribution id
//	--concurrency int          batch worker count
//	--ttl-days int             signed URL lifetime, in days
//	--caller-reference string  invalidation idempotency reference
//	--cache-dir string         keep a local copy of uploads here
//	--acl string               canned ACL for uploads
//	--gzip                     gzip compressible uploads
//	--pushgateway string       Prometheus pushgateway URL
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	fs.StringVar(&f.staticBucket, "static-bucket", "", "public asset bucket")
	fs.StringVar(&f.staticDomain, "static-domain", "", "CDN domain of the public bucket")
	fs.StringVar(&f.privateBucket, "private-bucket", "", "private file bucket")
	fs.StringVar(&f.privateDomain, "private-domain", "", "CDN domain of the private bucket")
	fs.StringVar(&f.location, "location", "", "static key prefix")
	fs.StringVar(&f.compressDir, "compress-dir", "", "compressor output dir holding manifest.json")
	fs.StringVar(&f.region, "region", "", "AWS region")
	fs.StringVar(&f.endpoint, "endpoint", "", "S3 base endpoint")
	fs.StringVar(&f.distribution, "distribution", "", "CloudFront distribution id")
	fs.IntVar(&f.concurrency, "concurrency", DefaultConcurrency, "batch worker count")
	fs.IntVar(&f.ttlDays, "ttl-days", int(DefaultSignTTL/(24*time.Hour)), "signed URL lifetime (in days)")
	fs.StringVar(&f.callerReference, "caller-reference", "", "invalidation idempotency reference")
	fs.StringVar(&f.cacheDir, "cache-dir", "", "keep a local copy of uploads in this directory")
	fs.StringVar(&f.acl, "acl", "", "canned ACL for uploads")
	fs.BoolVar(&f.gzip, "gzip", true, "gzip compressible uploads")
	fs.StringVar(&f.pushGateway, "pushgateway", "", "Prometheus pushgateway URL")

	return f
}

// ApplyFlags overlays every flag that was explicitly set onto c.
func ApplyFlags(c *Config, f *Flags) {
	set := func(name string, apply func()) {
		if f.fs.Changed(name) {
			apply()
		}
	}

	set("static-bucket", func() { c.StaticBucket = f.staticBucket })
	set("static-domain", func() { c.StaticDomain = f.staticDomain })
	set("private-bucket", func() { c.PrivateBucket = f.privateBucket })
	set("private-domain", func() { c.PrivateDomain = f.privateDomain })
	set("location", func() { c.StaticLocation = f.location })
	set("compress-dir", func() { c.CompressOutputDir = f.compressDir })
	set("region", func() { c.Region = f.region })
	set("endpoint", func() { c.S3BaseEndpoint = f.endpoint })
	set("distribution", func() { c.DistributionID = f.distribution })
	set("concurrency", func() { c.Concurrency = f.concurrency })
	set("ttl-days", func() { c.SignTTL = time.Duration(f.ttlDays) * 24 * time.Hour })
	set("caller-reference", func() { c.CallerReference = f.callerReference })
	set("cache-dir", func() { c.LocalCacheDir = f.cacheDir })
	set("acl", func() { c.UploadACL = f.acl })
	set("gzip", func() { c.Gzip = f.gzip })
	set("pushgateway", func() { c.PushGateway = f.pushGateway })
}
