package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/constants"
	"github.com/rescale/bucketdesk/internal/events"
	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/pathutil"
	"github.com/rescale/bucketdesk/internal/services"
)

// loadConfig reads the configuration selected by --config.
func loadConfig() (*config.Config, string, error) {
	path, err := pathutil.ResolveAbsolutePath(cfgFile)
	if err != nil {
		return nil, "", fmt.Errorf("invalid --config path: %w", err)
	}
	if path == "" {
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, path, nil
}

// effectiveTimeout applies --timeout over the configured call timeout.
func effectiveTimeout(cfg *config.Config) time.Duration {
	if callTimeout > 0 {
		return time.Duration(callTimeout) * time.Second
	}
	return cfg.CallTimeout()
}

// effectiveSocket applies --socket over the configured socket path.
func effectiveSocket(cfg *config.Config) string {
	if socketPath != "" {
		if resolved, err := pathutil.ResolveAbsolutePath(socketPath); err == nil {
			return resolved
		}
		return socketPath
	}
	return cfg.ResolveSocketPath()
}

// backend is the answering side: the bus, the registry bound to it and the
// services behind the registry.
type backend struct {
	bus      *events.EventBus
	registry *ipc.Registry
	service  *services.AppService
}

// startBackend registers every service channel on a fresh bus and starts
// dispatching.
func startBackend(ctx context.Context, cfg *config.Config, configPath string, log *logging.Logger) (*backend, error) {
	if err := ensureProxyPassword(&cfg.Proxy); err != nil {
		return nil, err
	}

	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	svc := services.NewAppService(services.AppServiceConfig{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     log,
	})

	reg := ipc.NewRegistry(bus, log)
	if err := services.Register(reg, svc); err != nil {
		bus.Close()
		return nil, err
	}
	if err := reg.Start(ctx); err != nil {
		bus.Close()
		return nil, err
	}
	return &backend{bus: bus, registry: reg, service: svc}, nil
}

func (b *backend) Close() {
	b.registry.Stop()
	b.bus.Close()
}

// session is the initiating side of one command: a correlator on either a
// socket connection or an in-process backend.
type session struct {
	corr   *ipc.Correlator
	cfg    *config.Config
	local  bool
	closer func()
}

func (s *session) Close() {
	if s.closer != nil {
		s.closer()
	}
}

// openSession connects to the long-lived process, or starts an in-process
// backend when none answers or --local is set.
func openSession(ctx context.Context) (*session, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	timeout := effectiveTimeout(cfg)
	log := GetLogger()

	if !localOnly {
		sock := effectiveSocket(cfg)
		transport, err := ipc.Dial(ctx, sock)
		if err == nil {
			log.Debug().Str("socket", sock).Msg("Connected to bucketdesk server")
			return &session{
				corr:   ipc.NewCorrelator(transport, timeout),
				cfg:    cfg,
				closer: func() { transport.Close() },
			}, nil
		}
		log.Debug().Err(err).Str("socket", sock).Msg("No server running, serving requests in-process")
	}

	b, err := startBackend(ctx, cfg, path, logging.NewComponentLogger("services"))
	if err != nil {
		return nil, err
	}
	return &session{
		corr:   ipc.NewCorrelator(b.bus, timeout),
		cfg:    cfg,
		local:  true,
		closer: b.Close,
	}, nil
}

// withSession runs fn with an open session and closes it afterwards.
func withSession(fn func(ctx context.Context, s *session) error) error {
	ctx := GetContext()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

// ensureProxyPassword prompts for the proxy password when the proxy needs
// one that the config file does not hold.
func ensureProxyPassword(proxy *config.ProxyConfig) error {
	if !proxy.NeedsPassword() {
		return nil
	}
	password, err := promptPassword(os.Stdin, os.Stderr, fmt.Sprintf("Proxy password for %s@%s: ", proxy.User, proxy.Host))
	if err != nil {
		return fmt.Errorf("proxy password required: %w", err)
	}
	proxy.Password = password
	return nil
}
