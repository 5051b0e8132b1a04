package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func testProfile(name string) Profile {
	return Profile{
		Name:      name,
		Provider:  ProviderS3,
		AccessKey: "AKIAEXAMPLE",
		SecretKey: "secret-value-1234",
		Region:    "us-east-1",
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.CallTimeoutSeconds != 30 {
		t.Errorf("Expected CallTimeoutSeconds=30, got %d", cfg.CallTimeoutSeconds)
	}
	if cfg.Proxy.Mode != ProxyModeNone {
		t.Errorf("Expected proxy mode no-proxy, got %s", cfg.Proxy.Mode)
	}
	if cfg.Markdown {
		t.Error("Expected Markdown=false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestConfigLoadSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bucketdesk.conf")

	cfg := NewConfig()
	cfg.Markdown = true
	cfg.CallTimeoutSeconds = 45
	cfg.MetricsAddr = "127.0.0.1:9464"
	cfg.Proxy = ProxyConfig{Mode: ProxyModeBasic, Host: "proxy.local", Port: 3128, User: "me", Password: "pw", NoProxy: "localhost"}

	work := testProfile("work")
	work.Endpoint = "https://minio.local:9000"
	work.PathStyle = true
	work.DefaultBucket = "photos"
	work.Domains = []string{"cdn.example.com", "img.example.com"}
	if err := cfg.AddProfile(work); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if err := cfg.AddProfile(Profile{Name: "blob", Provider: ProviderAzure, AccountName: "acct", SecretKey: "key"}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if err := cfg.SetCurrent("work"); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(configPath)
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("Expected permissions 0600, got %o", perm)
		}
	}
	if _, err := os.Stat(configPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Current != "work" || !loaded.Markdown || loaded.CallTimeoutSeconds != 45 {
		t.Errorf("app section mismatch: %+v", loaded)
	}
	if loaded.MetricsAddr != "127.0.0.1:9464" {
		t.Errorf("MetricsAddr = %q", loaded.MetricsAddr)
	}
	if loaded.Proxy != cfg.Proxy {
		t.Errorf("proxy mismatch: got %+v, want %+v", loaded.Proxy, cfg.Proxy)
	}
	if len(loaded.Profiles) != 2 {
		t.Fatalf("Expected 2 profiles, got %d", len(loaded.Profiles))
	}
	if loaded.Profiles[0].Name != "work" || loaded.Profiles[1].Name != "blob" {
		t.Errorf("profile order = %s, %s", loaded.Profiles[0].Name, loaded.Profiles[1].Name)
	}

	got := loaded.Profiles[0]
	if got.Endpoint != work.Endpoint || !got.PathStyle || got.DefaultBucket != "photos" || got.SecretKey != work.SecretKey {
		t.Errorf("profile mismatch: %+v", got)
	}
	if len(got.Domains) != 2 || got.Domains[1] != "img.example.com" {
		t.Errorf("Domains = %v", got.Domains)
	}
	if loaded.Profiles[1].AccountName != "acct" || loaded.Profiles[1].Provider != ProviderAzure {
		t.Errorf("azure profile mismatch: %+v", loaded.Profiles[1])
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CallTimeoutSeconds != 30 || len(cfg.Profiles) != 0 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.conf")
	os.WriteFile(path, []byte("[app\ncurrent = x"), 0600)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"valid", func(c *Config) {}, nil},
		{"timeout too low", func(c *Config) { c.CallTimeoutSeconds = 0 }, ErrInvalidCallTimeout},
		{"timeout too high", func(c *Config) { c.CallTimeoutSeconds = 601 }, ErrInvalidCallTimeout},
		{"bad proxy mode", func(c *Config) { c.Proxy.Mode = "socks" }, ErrInvalidProxyMode},
		{"unknown current", func(c *Config) { c.Current = "ghost" }, ErrUnknownCurrent},
		{"duplicate profile", func(c *Config) { c.Profiles = append(c.Profiles, testProfile("work")) }, ErrProfileExists},
		{"invalid profile", func(c *Config) { c.Profiles[0].Provider = "gcs" }, ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Profiles = []Profile{testProfile("work")}
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    error
	}{
		{"s3 ok", testProfile("ok"), nil},
		{"missing name", Profile{Provider: ProviderS3, AccessKey: "a", SecretKey: "b"}, ErrMissingName},
		{"dotted name", Profile{Name: "a.b", Provider: ProviderS3, AccessKey: "a", SecretKey: "b"}, ErrInvalidName},
		{"spaced name", Profile{Name: "a b", Provider: ProviderS3, AccessKey: "a", SecretKey: "b"}, ErrInvalidName},
		{"unknown provider", Profile{Name: "x", Provider: "ftp"}, ErrUnknownProvider},
		{"s3 missing secret", Profile{Name: "x", Provider: ProviderS3, AccessKey: "a"}, ErrMissingCredentials},
		{"azure missing account", Profile{Name: "x", Provider: ProviderAzure, SecretKey: "k"}, ErrMissingAccount},
		{"azure missing key", Profile{Name: "x", Provider: ProviderAzure, AccountName: "acct"}, ErrMissingCredentials},
		{"azure ok", Profile{Name: "x", Provider: ProviderAzure, AccountName: "acct", SecretKey: "k"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestProfileLifecycle(t *testing.T) {
	cfg := NewConfig()

	if _, err := cfg.CurrentProfile(); !errors.Is(err, ErrNoCurrentProfile) {
		t.Errorf("CurrentProfile err = %v, want ErrNoCurrentProfile", err)
	}

	if err := cfg.AddProfile(testProfile("work")); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if err := cfg.AddProfile(testProfile("work")); !errors.Is(err, ErrProfileExists) {
		t.Errorf("duplicate AddProfile err = %v", err)
	}
	if err := cfg.SetCurrent("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("SetCurrent err = %v", err)
	}
	if err := cfg.SetCurrent("work"); err != nil {
		t.Fatalf("SetCurrent: %v", err)
	}

	// masked secrets keep the stored value
	update := testProfile("work").Masked()
	update.Region = "eu-west-1"
	if err := cfg.UpdateProfile(update); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	p, err := cfg.CurrentProfile()
	if err != nil {
		t.Fatalf("CurrentProfile: %v", err)
	}
	if p.Region != "eu-west-1" || p.SecretKey != "secret-value-1234" {
		t.Errorf("updated profile = %+v", p)
	}

	if err := cfg.UpdateProfile(testProfile("ghost")); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("UpdateProfile err = %v", err)
	}

	if err := cfg.DeleteProfile("work"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if cfg.Current != "" {
		t.Errorf("Current = %q after deleting it", cfg.Current)
	}
	if err := cfg.DeleteProfile("work"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("second DeleteProfile err = %v", err)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"abc":               "****",
		"secret-value-1234": "****1234",
	}
	for in, want := range tests {
		if got := MaskSecret(in); got != want {
			t.Errorf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCallTimeout(t *testing.T) {
	cfg := NewConfig()
	if cfg.CallTimeout() != 30*time.Second {
		t.Errorf("CallTimeout = %s", cfg.CallTimeout())
	}
	cfg.CallTimeoutSeconds = 0
	if cfg.CallTimeout() != 30*time.Second {
		t.Errorf("CallTimeout for 0 = %s, want default", cfg.CallTimeout())
	}
	cfg.CallTimeoutSeconds = 100000
	if cfg.CallTimeout() != 10*time.Minute {
		t.Errorf("CallTimeout = %s, want clamp to 10m", cfg.CallTimeout())
	}
}

func TestClone(t *testing.T) {
	cfg := NewConfig()
	p := testProfile("work")
	p.Domains = []string{"a.example.com"}
	cfg.AddProfile(p)

	clone := cfg.Clone()
	clone.Profiles[0].Domains[0] = "changed"
	clone.Profiles[0].Region = "changed"

	if cfg.Profiles[0].Domains[0] != "a.example.com" || cfg.Profiles[0].Region != "us-east-1" {
		t.Error("Clone shares state with the original")
	}
}

func TestNeedsPassword(t *testing.T) {
	tests := []struct {
		proxy ProxyConfig
		want  bool
	}{
		{ProxyConfig{Mode: ProxyModeNone, User: "me"}, false},
		{ProxyConfig{Mode: ProxyModeBasic, User: "me"}, true},
		{ProxyConfig{Mode: ProxyModeNTLM, User: "me", Password: "pw"}, false},
		{ProxyConfig{Mode: ProxyModeNTLM}, false},
	}
	for _, tt := range tests {
		if got := tt.proxy.NeedsPassword(); got != tt.want {
			t.Errorf("NeedsPassword(%+v) = %v, want %v", tt.proxy, got, tt.want)
		}
	}
}

func TestResolveSocketPath(t *testing.T) {
	cfg := NewConfig()
	cfg.SocketPath = "/tmp/custom.sock"
	if cfg.ResolveSocketPath() != "/tmp/custom.sock" {
		t.Errorf("ResolveSocketPath = %q", cfg.ResolveSocketPath())
	}
	cfg.SocketPath = ""
	if filepath.Base(cfg.ResolveSocketPath()) != "bucketdesk.sock" {
		t.Errorf("default socket = %q", cfg.ResolveSocketPath())
	}
}
