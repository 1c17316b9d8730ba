// Package invalidation purges the static manifest from the CloudFront edge
// whenever a new one is uploaded.
package invalidation

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/smithy-go"

	"github.com/dmitrijs2005/cdnkeeper/internal/logging"
	"github.com/dmitrijs2005/cdnkeeper/internal/metrics"
)

// DefaultCallerReference is sent with every invalidation unless overridden.
const DefaultCallerReference = "cdnkeeper"

// API is the subset of *cloudfront.Client used by Invalidator.
type API interface {
	CreateInvalidation(ctx context.Context, params *cloudfront.CreateInvalidationInput, optFns ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

var _ API = (*cloudfront.Client)(nil)

// Result describes an accepted invalidation.
type Result struct {
	ID         string
	Status     string
	Path       string
	CreateTime time.Time
}

type Invalidator struct {
	api            API
	distributionID string
	location       string
	reference      string
	logger         logging.Logger
	metrics        metrics.Metrics
}

type Option func(*Invalidator)

// WithCallerReference overrides DefaultCallerReference. CloudFront treats
// a repeated reference with an identical batch as the same request.
func WithCallerReference(ref string) Option {
	return func(i *Invalidator) {
		if ref != "" {
			i.reference = ref
		}
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(i *Invalidator) {
		if m != nil {
			i.metrics = m
		}
	}
}

// New returns an Invalidator for distributionID. Paths are built under
// location, the prefix static files are stored at.
func New(api API, distributionID, location string, logger logging.Logger, opts ...Option) *Invalidator {
	i := &Invalidator{
		api:            api,
		distributionID: distributionID,
		location:       location,
		reference:      DefaultCallerReference,
		logger:         logger,
		metrics:        metrics.Noop{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Path returns the distribution path invalidated for name.
func (i *Invalidator) Path(name string) string {
	return path.Join("/", i.location, strings.ReplaceAll(name, `\`, "/"))
}

// Invalidate asks CloudFront to drop the cached copy of name. Failures are
// logged and reported as a nil result; they never reach the caller.
func (i *Invalidator) Invalidate(ctx context.Context, name string) *Result {
	p := i.Path(name)
	log := i.logger.With("distribution", i.distributionID, "path", p)

	if i.distributionID == "" {
		log.Warn(ctx, "invalidation skipped: no distribution configured")
		i.metrics.IncInvalidation("skipped")
		return nil
	}

	out, err := i.api.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(i.reference),
			Paths: &types.Paths{
				Quantity: aws.Int32(1),
				Items:    []string{p},
			},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			log.Error(ctx, "invalidation failed", "code", apiErr.ErrorCode(), "error", apiErr.ErrorMessage())
		} else {
			log.Error(ctx, "invalidation failed", "error", err)
		}
		i.metrics.IncInvalidation("failed")
		return nil
	}
	if out == nil || out.Invalidation == nil {
		log.Error(ctx, "invalidation failed: empty response")
		i.metrics.IncInvalidation("failed")
		return nil
	}

	res := &Result{
		ID:         aws.ToString(out.Invalidation.Id),
		Status:     aws.ToString(out.Invalidation.Status),
		Path:       p,
		CreateTime: aws.ToTime(out.Invalidation.CreateTime),
	}
	log.Info(ctx, "invalidation created", "id", res.ID, "status", res.Status)
	i.metrics.IncInvalidation("created")
	return res
}
