package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/http"
	"github.com/rescale/bucketdesk/internal/metrics"
	"github.com/rescale/bucketdesk/internal/ratelimit"
)

// AzureProvider lists an Azure Blob Storage account. Containers play the
// role of buckets.
type AzureProvider struct {
	client  *azblob.Client
	profile config.Profile
	limiter *ratelimit.RateLimiter
}

// NewAzureProvider creates a blob client authenticated with the account key
// in profile.SecretKey.
func NewAzureProvider(profile *config.Profile, proxy *config.ProxyConfig) (*AzureProvider, error) {
	httpClient, err := http.NewRetryingClient(proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cred, err := azblob.NewSharedKeyCredential(profile.AccountName, profile.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("invalid Azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(azureServiceURL(profile), cred, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
			// retries happen in the shared HTTP client
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureProvider{
		client:  client,
		profile: *profile,
		limiter: ratelimit.Global().ForAccount(config.ProviderAzure, profile.AccountName),
	}, nil
}

func azureServiceURL(profile *config.Profile) string {
	if endpoint := strings.TrimSpace(profile.Endpoint); endpoint != "" {
		return strings.TrimSuffix(endpoint, "/") + "/"
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/", profile.AccountName)
}

// Name implements Provider.
func (p *AzureProvider) Name() string { return config.ProviderAzure }

// ListBuckets implements Provider.
func (p *AzureProvider) ListBuckets(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := p.listContainers(ctx)
	metrics.RecordStorageOperation(p.Name(), "list_buckets", time.Since(start), err == nil)
	return names, err
}

func (p *AzureProvider) listContainers(ctx context.Context) ([]string, error) {
	var names []string
	guard := pageGuard{limiter: p.limiter}

	pager := p.client.NewListContainersPager(nil)
	for pager.More() {
		if err := guard.next(ctx); err != nil {
			return nil, err
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list containers: %w", err)
		}
		for _, item := range page.ContainerItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

// ListObjects implements Provider.
func (p *AzureProvider) ListObjects(ctx context.Context, container, prefix string, fn PageFunc) error {
	start := time.Now()
	err := p.listBlobs(ctx, container, prefix, fn)
	metrics.RecordStorageOperation(p.Name(), "list_objects", time.Since(start), err == nil)
	return err
}

func (p *AzureProvider) listBlobs(ctx context.Context, container, prefix string, fn PageFunc) error {
	maxResults := int32(constants.ListPageSize)
	opts := &azblob.ListBlobsFlatOptions{MaxResults: &maxResults}
	if prefix != "" {
		opts.Prefix = &prefix
	}

	guard := pageGuard{limiter: p.limiter}
	pager := p.client.NewListBlobsFlatPager(container, opts)
	for pager.More() {
		if err := guard.next(ctx); err != nil {
			return err
		}
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", container, err)
		}
		if page.Segment == nil {
			continue
		}

		objects := make([]Object, 0, len(page.Segment.BlobItems))
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			obj := Object{Key: *item.Name}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					obj.Size = *props.ContentLength
				}
				if props.LastModified != nil {
					obj.ModifiedAt = *props.LastModified
				}
				if props.ETag != nil {
					obj.ETag = strings.Trim(string(*props.ETag), `"`)
				}
				if props.AccessTier != nil {
					obj.StorageClass = string(*props.AccessTier)
				}
				if props.ContentType != nil {
					obj.ContentType = *props.ContentType
				}
			}
			objects = append(objects, obj)
		}
		if err := fn(objects); err != nil {
			return err
		}
	}
	return nil
}

// Domains implements Provider.
func (p *AzureProvider) Domains(container string) []string {
	return azureDomains(&p.profile, container)
}

func azureDomains(profile *config.Profile, container string) []string {
	if len(profile.Domains) > 0 {
		return append([]string(nil), profile.Domains...)
	}
	host := profile.AccountName + ".blob.core.windows.net"
	if u, err := url.Parse(azureServiceURL(profile)); err == nil && u.Host != "" {
		host = u.Host + strings.TrimSuffix(u.Path, "/")
	}
	return []string{host + "/" + container}
}
