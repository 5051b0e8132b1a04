package services

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/storage"
	"github.com/rescale/bucketdesk/internal/validation"
)

// AppService answers profile, bucket, config and transfer requests for the
// long-lived process. Configuration changes are persisted before they become
// visible.
type AppService struct {
	cfg        *config.Config
	configPath string
	factory    storage.Factory
	transfers  *TransferStore
	logger     *logging.Logger

	// providers caches one client per profile name
	providers map[string]storage.Provider

	// listings deduplicates concurrent switch-bucket calls for the same
	// profile and bucket
	listings singleflight.Group

	mu sync.RWMutex
}

// AppServiceConfig configures the AppService.
type AppServiceConfig struct {
	// Config is the loaded configuration. Defaults to config.NewConfig().
	Config *config.Config

	// ConfigPath is where changes are saved. Empty keeps changes in memory.
	ConfigPath string

	// Factory builds storage providers. Defaults to storage.NewFactory with
	// the configured proxy.
	Factory storage.Factory

	// Transfers is the shared transfer store. Defaults to a new store.
	Transfers *TransferStore

	Logger *logging.Logger
}

// NewAppService creates a new AppService.
func NewAppService(c AppServiceConfig) *AppService {
	if c.Config == nil {
		c.Config = config.NewConfig()
	}
	if c.Factory == nil {
		proxy := c.Config.Proxy
		c.Factory = storage.NewFactory(&proxy)
	}
	if c.Transfers == nil {
		c.Transfers = NewTransferStore()
	}
	if c.Logger == nil {
		c.Logger = logging.NewComponentLogger("services")
	}

	return &AppService{
		cfg:        c.Config.Clone(),
		configPath: c.ConfigPath,
		factory:    c.Factory,
		transfers:  c.Transfers,
		logger:     c.Logger,
		providers:  make(map[string]storage.Provider),
	}
}

// Transfers returns the transfer store.
func (s *AppService) Transfers() *TransferStore {
	return s.transfers
}

// Config returns a copy of the current configuration.
func (s *AppService) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// update applies fn to a copy of the configuration, saves it, then swaps
// it in. A failing fn or save leaves the configuration untouched.
func (s *AppService) update(fn func(cfg *config.Config) error) (*config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	if err := fn(next); err != nil {
		return nil, classify(err)
	}
	if s.configPath != "" {
		if err := config.Save(next, s.configPath); err != nil {
			return nil, err
		}
	}
	s.cfg = next
	return next.Clone(), nil
}

// forget drops the cached provider for a profile. Caller holds no lock.
func (s *AppService) forget(name string) {
	s.mu.Lock()
	delete(s.providers, name)
	s.mu.Unlock()
}

// currentProvider returns the provider and profile of the selected app.
func (s *AppService) currentProvider(ctx context.Context) (storage.Provider, config.Profile, error) {
	s.mu.RLock()
	profile, err := s.cfg.CurrentProfile()
	if err != nil {
		s.mu.RUnlock()
		return nil, config.Profile{}, classify(err)
	}
	p := *profile
	cached, ok := s.providers[p.Name]
	s.mu.RUnlock()

	if ok {
		return cached, p, nil
	}

	provider, err := s.factory(ctx, &p)
	if err != nil {
		return nil, p, err
	}

	s.mu.Lock()
	if existing, ok := s.providers[p.Name]; ok {
		provider = existing
	} else {
		s.providers[p.Name] = provider
	}
	s.mu.Unlock()
	return provider, p, nil
}

// GetApps returns every profile with secrets masked.
func (s *AppService) GetApps(ctx context.Context, _ any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := make([]config.Profile, 0, len(s.cfg.Profiles))
	for _, p := range s.cfg.Profiles {
		apps = append(apps, p.Masked())
	}
	return apps, nil
}

// AddApp stores a new profile. The first profile becomes current.
func (s *AppService) AddApp(ctx context.Context, data any) (any, error) {
	profile, err := decode[config.Profile](data)
	if err != nil {
		return nil, err
	}
	profile.Name = strings.TrimSpace(profile.Name)

	_, err = s.update(func(cfg *config.Config) error {
		if err := cfg.AddProfile(profile); err != nil {
			return err
		}
		if cfg.Current == "" {
			cfg.Current = profile.Name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("app", profile.Name).Str("provider", profile.Provider).Msg("App added")
	return profile.Masked(), nil
}

// UpdateApp replaces an existing profile.
func (s *AppService) UpdateApp(ctx context.Context, data any) (any, error) {
	profile, err := decode[config.Profile](data)
	if err != nil {
		return nil, err
	}

	cfg, err := s.update(func(cfg *config.Config) error {
		return cfg.UpdateProfile(profile)
	})
	if err != nil {
		return nil, err
	}
	s.forget(profile.Name)

	stored, _ := cfg.Profile(profile.Name)
	s.logger.Info().Str("app", profile.Name).Msg("App updated")
	return stored.Masked(), nil
}

// DeleteApp removes a profile.
func (s *AppService) DeleteApp(ctx context.Context, data any) (any, error) {
	req, err := decode[AppNameRequest](data)
	if err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, newError(CodeBadRequest, "app name is required")
	}

	if _, err := s.update(func(cfg *config.Config) error {
		return cfg.DeleteProfile(req.Name)
	}); err != nil {
		return nil, err
	}
	s.forget(req.Name)

	s.logger.Info().Str("app", req.Name).Msg("App deleted")
	return DeleteResult{Deleted: req.Name}, nil
}

// InitApp makes a profile current.
func (s *AppService) InitApp(ctx context.Context, data any) (any, error) {
	req, err := decode[AppNameRequest](data)
	if err != nil {
		return nil, err
	}

	cfg, err := s.update(func(cfg *config.Config) error {
		return cfg.SetCurrent(req.Name)
	})
	if err != nil {
		return nil, err
	}

	profile, _ := cfg.Profile(req.Name)
	return profile.Masked(), nil
}

// GetBuckets lists the buckets of the current profile.
func (s *AppService) GetBuckets(ctx context.Context, _ any) (any, error) {
	provider, profile, err := s.currentProvider(ctx)
	if err != nil {
		return nil, err
	}

	buckets, err := provider.ListBuckets(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("app", profile.Name).Msg("Failed to list buckets")
		return nil, err
	}
	return buckets, nil
}

// SwitchBucket lists every object of a bucket in the current profile.
// Concurrent calls for the same bucket share one listing.
func (s *AppService) SwitchBucket(ctx context.Context, data any) (any, error) {
	req, err := decode[BucketRequest](data)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateBucketName(req.Bucket); err != nil {
		return nil, &Error{Status: CodeBadRequest, Err: err}
	}

	provider, profile, err := s.currentProvider(ctx)
	if err != nil {
		return nil, err
	}

	key := profile.Name + "/" + req.Bucket
	v, err, shared := s.listings.Do(key, func() (any, error) {
		objects, err := storage.ListAll(ctx, provider, req.Bucket, "")
		if err != nil {
			return nil, err
		}
		if objects == nil {
			objects = []storage.Object{}
		}
		return BucketListing{
			Bucket:  req.Bucket,
			Files:   objects,
			Domains: provider.Domains(req.Bucket),
		}, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("app", profile.Name).Str("bucket", req.Bucket).Msg("Failed to list bucket")
		return nil, err
	}

	listing := v.(BucketListing)
	s.logger.Debug().
		Str("app", profile.Name).
		Str("bucket", req.Bucket).
		Int("objects", len(listing.Files)).
		Bool("shared", shared).
		Msg("Bucket listed")
	return listing, nil
}

// GetConfig returns the settings the UI side reads.
func (s *AppService) GetConfig(ctx context.Context, _ any) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return viewOf(s.cfg), nil
}

// SetMarkdown toggles markdown link formatting.
func (s *AppService) SetMarkdown(ctx context.Context, data any) (any, error) {
	req, err := decode[MarkdownRequest](data)
	if err != nil {
		return nil, err
	}
	cfg, err := s.update(func(cfg *config.Config) error {
		cfg.Markdown = req.Enabled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return viewOf(cfg), nil
}

// GetTransfer lists finished or in-flight transfers.
func (s *AppService) GetTransfer(ctx context.Context, data any) (any, error) {
	q, err := decode[TransferQuery](data)
	if err != nil {
		return nil, err
	}
	return s.transfers.List(q.Done), nil
}

// ClearTransferDoneList removes every finished transfer.
func (s *AppService) ClearTransferDoneList(ctx context.Context, _ any) (any, error) {
	return ClearResult{Removed: s.transfers.ClearDone()}, nil
}

// AddTransfer records a new queued transfer reported by the collaborator
// that moves the bytes.
func (s *AppService) AddTransfer(ctx context.Context, data any) (any, error) {
	req, err := decode[AddTransferRequest](data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, newError(CodeBadRequest, "transfer name is required")
	}
	if req.Type != TransferTypeUpload && req.Type != TransferTypeDownload {
		return nil, newError(CodeBadRequest, "transfer type must be upload or download, got %q", req.Type)
	}

	t := s.transfers.Add(req.Name, req.Key, req.Type, req.Size)
	s.logger.Debug().Str("id", t.ID).Str("name", t.Name).Str("type", string(t.Type)).Msg("Transfer added")
	return t, nil
}

// UpdateTransfer moves a transfer to a new state.
func (s *AppService) UpdateTransfer(ctx context.Context, data any) (any, error) {
	req, err := decode[UpdateTransferRequest](data)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, newError(CodeBadRequest, "transfer id is required")
	}
	if !req.State.Valid() {
		return nil, newError(CodeBadRequest, "unknown transfer state %q", req.State)
	}
	return s.transfers.Update(req.ID, req.State, req.Error)
}

// GetRecentLinks returns links to the newest completed uploads of a bucket.
func (s *AppService) GetRecentLinks(ctx context.Context, data any) (any, error) {
	req, err := decode[RecentLinksRequest](data)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateBucketName(req.Bucket); err != nil {
		return nil, &Error{Status: CodeBadRequest, Err: err}
	}
	n := req.Count
	if n <= 0 {
		n = constants.RecentTransferCount
	}
	links, err := s.RecentLinks(ctx, n, req.Bucket)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []string{}
	}
	return links, nil
}

// RecentLinks returns links to the newest completed uploads on the current
// profile's first domain, formatted per the markdown setting.
func (s *AppService) RecentLinks(ctx context.Context, n int, bucket string) ([]string, error) {
	s.mu.RLock()
	markdown := s.cfg.Markdown
	s.mu.RUnlock()

	provider, _, err := s.currentProvider(ctx)
	if err != nil {
		return nil, err
	}
	domains := provider.Domains(bucket)
	if len(domains) == 0 {
		return nil, newError(CodeNotFound, "no domain configured for %s", bucket)
	}

	var links []string
	for _, t := range s.transfers.Recent(n) {
		if t.Type != TransferTypeUpload || t.Key == "" {
			continue
		}
		links = append(links, FormatLink(domains[0], t.Key, markdown))
	}
	return links, nil
}

func viewOf(cfg *config.Config) ConfigView {
	return ConfigView{
		Current:            cfg.Current,
		Markdown:           cfg.Markdown,
		CallTimeoutSeconds: cfg.CallTimeoutSeconds,
	}
}
