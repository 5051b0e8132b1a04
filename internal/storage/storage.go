// Package storage lists buckets and objects from object-storage providers
// and adapts the listings into entries for the virtual tree.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/ratelimit"
	"github.com/rescale/bucketdesk/internal/vdir"
)

var (
	// ErrTooManyPages indicates a listing exceeded constants.MaxPaginationPages
	ErrTooManyPages = errors.New("listing exceeded maximum page count")

	// ErrUnsupportedProvider indicates a profile names an unknown provider
	ErrUnsupportedProvider = errors.New("unsupported storage provider")
)

// Object is one entry of a flat bucket listing.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ModifiedAt   time.Time `json:"modifiedAt"`
	ETag         string    `json:"etag,omitempty"`
	StorageClass string    `json:"storageClass,omitempty"`
	ContentType  string    `json:"contentType,omitempty"`
}

// ObjectMeta is the provider metadata carried on tree files.
type ObjectMeta struct {
	ETag         string
	StorageClass string
	ContentType  string
}

// PageFunc receives one listing page. Returning an error stops the listing.
type PageFunc func(page []Object) error

// Provider lists one storage account.
type Provider interface {
	// Name identifies the provider kind ("s3", "azure").
	Name() string

	// ListBuckets returns bucket (container) names.
	ListBuckets(ctx context.Context) ([]string, error)

	// ListObjects walks every object under prefix, one page at a time.
	ListObjects(ctx context.Context, bucket, prefix string, fn PageFunc) error

	// Domains returns the hosts public links to objects in bucket use.
	Domains(bucket string) []string
}

// Factory builds a provider for a profile. Services take a Factory so tests
// can substitute fakes.
type Factory func(ctx context.Context, profile *config.Profile) (Provider, error)

// NewFactory returns the Factory backed by the real provider SDKs, sharing
// one proxy configuration.
func NewFactory(proxy *config.ProxyConfig) Factory {
	return func(ctx context.Context, profile *config.Profile) (Provider, error) {
		return New(ctx, profile, proxy)
	}
}

// New builds the provider selected by profile.Provider.
func New(ctx context.Context, profile *config.Profile, proxy *config.ProxyConfig) (Provider, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("app %s: %w", profile.Name, err)
	}
	switch profile.Provider {
	case config.ProviderS3:
		return NewS3Provider(ctx, profile, proxy)
	case config.ProviderAzure:
		return NewAzureProvider(profile, proxy)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, profile.Provider)
	}
}

// ListAll collects every object under prefix.
func ListAll(ctx context.Context, p Provider, bucket, prefix string) ([]Object, error) {
	var objects []Object
	err := p.ListObjects(ctx, bucket, prefix, func(page []Object) error {
		objects = append(objects, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// Entries adapts a flat listing into tree-builder input.
func Entries(objects []Object) []vdir.Entry {
	entries := make([]vdir.Entry, 0, len(objects))
	for _, o := range objects {
		entries = append(entries, vdir.Entry{
			Key:        o.Key,
			Size:       o.Size,
			ModifiedAt: o.ModifiedAt,
			Metadata: ObjectMeta{
				ETag:         o.ETag,
				StorageClass: o.StorageClass,
				ContentType:  o.ContentType,
			},
		})
	}
	return entries
}

// pageGuard stops runaway pagination and, when limiter is set, waits for
// the account's listing budget before each page.
type pageGuard struct {
	pages   int
	limiter *ratelimit.RateLimiter
}

func (g *pageGuard) next(ctx context.Context) error {
	g.pages++
	if g.pages > constants.MaxPaginationPages {
		return fmt.Errorf("%w (%d)", ErrTooManyPages, constants.MaxPaginationPages)
	}
	if g.limiter != nil {
		return g.limiter.Wait(ctx)
	}
	return nil
}
