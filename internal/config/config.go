// Package config provides configuration management for bucketdesk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/rescale/bucketdesk/internal/constants"
)

// Config holds app settings and the storage profiles ("apps").
//
// Config file location:
//   - Windows: %APPDATA%\Bucketdesk\bucketdesk.conf
//   - Unix: ~/.config/bucketdesk/bucketdesk.conf
//
// INI format:
//
//	[app]
//	current = work
//	markdown = false
//	call_timeout_seconds = 30
//	socket_path =
//	metrics_addr = 127.0.0.1:9464
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	password =
//	no_proxy = localhost,127.0.0.1
//
//	[app.work]
//	provider = s3
//	access_key = AKIA...
//	secret_key = ...
//	region = us-east-1
//	endpoint = https://minio.local:9000
//	path_style = true
//	default_bucket = photos
//	domains = cdn.example.com
type Config struct {
	Current            string
	Markdown           bool
	CallTimeoutSeconds int
	SocketPath         string
	MetricsAddr        string

	Proxy ProxyConfig

	// Profiles keeps file order.
	Profiles []Profile
}

// ProxyConfig selects how provider HTTP traffic reaches the network.
type ProxyConfig struct {
	Mode     string // no-proxy, system, basic, ntlm
	Host     string
	Port     int
	User     string
	Password string
	NoProxy  string
}

// Proxy modes
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

const profileSectionPrefix = "app."

// Config validation errors
var (
	ErrInvalidCallTimeout = errors.New("call_timeout_seconds must be between 1 and 600")
	ErrInvalidProxyMode   = errors.New("proxy mode must be no-proxy, system, basic or ntlm")
	ErrUnknownCurrent     = errors.New("current profile does not exist")
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		CallTimeoutSeconds: int(constants.DefaultCallTimeout / time.Second),
		Proxy: ProxyConfig{
			Mode: ProxyModeNone,
			Port: 8080,
		},
	}
}

// DefaultConfigPath returns the default path for bucketdesk.conf.
//   - Windows: %APPDATA%\Bucketdesk\bucketdesk.conf
//   - Unix: ~/.config/bucketdesk/bucketdesk.conf
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// Load reads configuration from path. If path is empty the default path is
// used. A missing file yields the defaults and no error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", constants.ConfigFileName, err)
	}

	appSection := iniFile.Section("app")
	cfg.Current = appSection.Key("current").String()
	cfg.Markdown = appSection.Key("markdown").MustBool(false)
	cfg.CallTimeoutSeconds = appSection.Key("call_timeout_seconds").MustInt(cfg.CallTimeoutSeconds)
	cfg.SocketPath = appSection.Key("socket_path").String()
	cfg.MetricsAddr = appSection.Key("metrics_addr").String()

	proxySection := iniFile.Section("proxy")
	cfg.Proxy.Mode = proxySection.Key("mode").MustString(ProxyModeNone)
	cfg.Proxy.Host = proxySection.Key("host").String()
	cfg.Proxy.Port = proxySection.Key("port").MustInt(8080)
	cfg.Proxy.User = proxySection.Key("user").String()
	cfg.Proxy.Password = proxySection.Key("password").String()
	cfg.Proxy.NoProxy = proxySection.Key("no_proxy").String()

	for _, section := range iniFile.Sections() {
		name, ok := strings.CutPrefix(section.Name(), profileSectionPrefix)
		if !ok || name == "" {
			continue
		}
		cfg.Profiles = append(cfg.Profiles, Profile{
			Name:          name,
			Provider:      section.Key("provider").MustString(ProviderS3),
			AccessKey:     section.Key("access_key").String(),
			SecretKey:     section.Key("secret_key").String(),
			Region:        section.Key("region").String(),
			Endpoint:      section.Key("endpoint").String(),
			PathStyle:     section.Key("path_style").MustBool(false),
			AccountName:   section.Key("account_name").String(),
			DefaultBucket: section.Key("default_bucket").String(),
			Domains:       splitList(section.Key("domains").String()),
		})
	}

	return cfg, nil
}

// Save writes cfg to path (the default path if empty), creating parent
// directories. The file is replaced atomically and readable only by the
// owner since it holds credentials.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	appSection, err := iniFile.NewSection("app")
	if err != nil {
		return fmt.Errorf("failed to create app section: %w", err)
	}
	appSection.Key("current").SetValue(cfg.Current)
	appSection.Key("markdown").SetValue(fmt.Sprintf("%t", cfg.Markdown))
	appSection.Key("call_timeout_seconds").SetValue(fmt.Sprintf("%d", cfg.CallTimeoutSeconds))
	appSection.Key("socket_path").SetValue(cfg.SocketPath)
	appSection.Key("metrics_addr").SetValue(cfg.MetricsAddr)

	proxySection, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxySection.Key("mode").SetValue(cfg.Proxy.Mode)
	proxySection.Key("host").SetValue(cfg.Proxy.Host)
	proxySection.Key("port").SetValue(fmt.Sprintf("%d", cfg.Proxy.Port))
	proxySection.Key("user").SetValue(cfg.Proxy.User)
	proxySection.Key("password").SetValue(cfg.Proxy.Password)
	proxySection.Key("no_proxy").SetValue(cfg.Proxy.NoProxy)

	for _, p := range cfg.Profiles {
		section, err := iniFile.NewSection(profileSectionPrefix + p.Name)
		if err != nil {
			return fmt.Errorf("failed to create section for app %s: %w", p.Name, err)
		}
		section.Key("provider").SetValue(p.Provider)
		section.Key("access_key").SetValue(p.AccessKey)
		section.Key("secret_key").SetValue(p.SecretKey)
		section.Key("region").SetValue(p.Region)
		section.Key("endpoint").SetValue(p.Endpoint)
		section.Key("path_style").SetValue(fmt.Sprintf("%t", p.PathStyle))
		section.Key("account_name").SetValue(p.AccountName)
		section.Key("default_bucket").SetValue(p.DefaultBucket)
		section.Key("domains").SetValue(strings.Join(p.Domains, ","))
	}

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the whole configuration including every profile.
func (cfg *Config) Validate() error {
	if cfg.CallTimeoutSeconds < int(constants.MinCallTimeout/time.Second) ||
		cfg.CallTimeoutSeconds > int(constants.MaxCallTimeout/time.Second) {
		return ErrInvalidCallTimeout
	}

	switch strings.ToLower(cfg.Proxy.Mode) {
	case "", ProxyModeNone, ProxyModeSystem, ProxyModeBasic, ProxyModeNTLM:
	default:
		return ErrInvalidProxyMode
	}

	seen := make(map[string]bool, len(cfg.Profiles))
	for i := range cfg.Profiles {
		p := &cfg.Profiles[i]
		if err := p.Validate(); err != nil {
			return fmt.Errorf("app %q: %w", p.Name, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("app %q: %w", p.Name, ErrProfileExists)
		}
		seen[p.Name] = true
	}

	if cfg.Current != "" && !seen[cfg.Current] {
		return ErrUnknownCurrent
	}
	return nil
}

// CallTimeout returns the configured call deadline, clamped to the accepted
// range.
func (cfg *Config) CallTimeout() time.Duration {
	d := time.Duration(cfg.CallTimeoutSeconds) * time.Second
	if d < constants.MinCallTimeout {
		return constants.DefaultCallTimeout
	}
	if d > constants.MaxCallTimeout {
		return constants.MaxCallTimeout
	}
	return d
}

// ProxyActive reports whether provider traffic goes through a proxy.
func (p ProxyConfig) ProxyActive() bool {
	switch strings.ToLower(p.Mode) {
	case "", ProxyModeNone:
		return false
	case ProxyModeSystem:
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return true
	}
}

// NeedsPassword reports whether an authenticating proxy has a user but no
// password. The CLI prompts in that case.
func (p ProxyConfig) NeedsPassword() bool {
	mode := strings.ToLower(p.Mode)
	if mode != ProxyModeBasic && mode != ProxyModeNTLM {
		return false
	}
	return p.User != "" && p.Password == ""
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
