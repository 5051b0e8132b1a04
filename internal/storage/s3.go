package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/http"
	"github.com/rescale/bucketdesk/internal/metrics"
	"github.com/rescale/bucketdesk/internal/ratelimit"
)

// S3Provider lists S3 and S3-compatible (MinIO, R2, Wasabi) accounts.
type S3Provider struct {
	client  *s3.Client
	profile config.Profile
	limiter *ratelimit.RateLimiter
}

// NewS3Provider creates an S3 client with static credentials from profile.
// The SDK retryer is disabled; the shared HTTP client retries.
func NewS3Provider(ctx context.Context, profile *config.Profile, proxy *config.ProxyConfig) (*S3Provider, error) {
	httpClient, err := http.NewRetryingClient(proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	region := strings.TrimSpace(profile.Region)
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(profile.AccessKey, profile.SecretKey, ""),
		),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(profile.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = profile.PathStyle
	})

	return &S3Provider{
		client:  client,
		profile: *profile,
		limiter: ratelimit.Global().ForAccount(config.ProviderS3, profile.AccessKey),
	}, nil
}

// Name implements Provider.
func (p *S3Provider) Name() string { return config.ProviderS3 }

// ListBuckets implements Provider.
func (p *S3Provider) ListBuckets(ctx context.Context) ([]string, error) {
	start := time.Now()
	out, err := p.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	metrics.RecordStorageOperation(p.Name(), "list_buckets", time.Since(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// ListObjects implements Provider.
func (p *S3Provider) ListObjects(ctx context.Context, bucket, prefix string, fn PageFunc) error {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(constants.ListPageSize),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	start := time.Now()
	err := p.listPages(ctx, input, fn)
	metrics.RecordStorageOperation(p.Name(), "list_objects", time.Since(start), err == nil)
	return err
}

func (p *S3Provider) listPages(ctx context.Context, input *s3.ListObjectsV2Input, fn PageFunc) error {
	guard := pageGuard{limiter: p.limiter}
	paginator := s3.NewListObjectsV2Paginator(p.client, input)
	for paginator.HasMorePages() {
		if err := guard.next(ctx); err != nil {
			return err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", aws.ToString(input.Bucket), err)
		}

		objects := make([]Object, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ModifiedAt:   aws.ToTime(obj.LastModified),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				StorageClass: string(obj.StorageClass),
			})
		}
		if err := fn(objects); err != nil {
			return err
		}
	}
	return nil
}

// Domains implements Provider. Configured domains win; otherwise the
// bucket's own endpoint host is used.
func (p *S3Provider) Domains(bucket string) []string {
	return s3Domains(&p.profile, bucket)
}

func s3Domains(profile *config.Profile, bucket string) []string {
	if len(profile.Domains) > 0 {
		return append([]string(nil), profile.Domains...)
	}

	if endpoint := strings.TrimSpace(profile.Endpoint); endpoint != "" {
		host := endpoint
		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			host = u.Host
		}
		if profile.PathStyle {
			return []string{host + "/" + bucket}
		}
		return []string{bucket + "." + host}
	}

	region := profile.Region
	if region == "" {
		region = "us-east-1"
	}
	return []string{fmt.Sprintf("%s.s3.%s.amazonaws.com", bucket, region)}
}
