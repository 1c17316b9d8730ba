// Package awsx builds the AWS SDK clients used by cdnkeeper from the
// explicit runtime Config and the credential provider.
package awsx

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cc "github.com/dmitrijs2005/cdnkeeper/internal/config"
	"github.com/dmitrijs2005/cdnkeeper/internal/secrets"
)

// Transport tuning for slow uploads of large assets.
const (
	connectTimeout   = 180 * time.Second
	readTimeout      = 180 * time.Second
	retryMaxAttempts = 10

	// CloudFront is a global service signed in us-east-1.
	cloudFrontRegion = "us-east-1"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newCloudFrontClientFromConfig = func(cfg aws.Config, optFns ...func(*cloudfront.Options)) *cloudfront.Client {
		return cloudfront.NewFromConfig(cfg, optFns...)
	}
)

// Credentials is the part of the credential provider the factory needs.
type Credentials interface {
	GetOrDefault(key, def string) string
}

var _ Credentials = (*secrets.Provider)(nil)

func loadConfig(ctx context.Context, region, accessKey, secretKey string) (aws.Config, error) {
	httpClient := awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = connectTimeout
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.ResponseHeaderTimeout = readTimeout
		})

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(retryMaxAttempts),
		awsconfig.WithHTTPClient(httpClient),
	}

	// Without static keys the SDK default chain applies (env, shared
	// profile, instance role).
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	return loadDefaultAWSConfig(ctx, opts...)
}

// NewS3Client returns an S3 client authenticated with S3_ACCESS_KEY and
// S3_SECRET_KEY. A configured base endpoint switches to path-style
// addressing so S3-compatible stores such as MinIO work.
func NewS3Client(ctx context.Context, cfg *cc.Config, creds Credentials) (*s3.Client, error) {
	awsCfg, err := loadConfig(ctx, cfg.Region,
		creds.GetOrDefault(secrets.KeyS3AccessKey, ""),
		creds.GetOrDefault(secrets.KeyS3SecretKey, ""),
	)
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewCloudFrontClient returns a CloudFront client authenticated with
// CF_ACCESS_KEY and CF_SECRET_KEY.
func NewCloudFrontClient(ctx context.Context, creds Credentials) (*cloudfront.Client, error) {
	awsCfg, err := loadConfig(ctx, cloudFrontRegion,
		creds.GetOrDefault(secrets.KeyCFAccessKey, ""),
		creds.GetOrDefault(secrets.KeyCFSecretKey, ""),
	)
	if err != nil {
		return nil, err
	}

	return newCloudFrontClientFromConfig(awsCfg), nil
}
