package config

import (
	"errors"
	"fmt"
	"strings"
)

// Storage providers
const (
	ProviderS3    = "s3"
	ProviderAzure = "azure"
)

// Profile validation errors
var (
	ErrMissingName        = errors.New("app name is required")
	ErrInvalidName        = errors.New("app name may not contain whitespace, '.', '/' or brackets")
	ErrUnknownProvider    = errors.New("provider must be s3 or azure")
	ErrMissingCredentials = errors.New("credentials are required")
	ErrMissingAccount     = errors.New("account_name is required for azure")
	ErrProfileExists      = errors.New("app already exists")
	ErrProfileNotFound    = errors.New("app not found")
	ErrNoCurrentProfile   = errors.New("no storage profile selected")
)

// Profile is one storage account the user browses ("app").
type Profile struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`

	// S3: access key id + secret. Azure: SecretKey is the account key.
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`

	Region      string `json:"region,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	PathStyle   bool   `json:"pathStyle,omitempty"`
	AccountName string `json:"accountName,omitempty"`

	DefaultBucket string `json:"defaultBucket,omitempty"`

	// Domains are the public hosts links to objects are built from.
	Domains []string `json:"domains,omitempty"`
}

// Validate checks the profile fields required by its provider.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrMissingName
	}
	if strings.ContainsAny(p.Name, " \t\r\n./[]") {
		return ErrInvalidName
	}

	switch p.Provider {
	case ProviderS3:
		if p.AccessKey == "" || p.SecretKey == "" {
			return ErrMissingCredentials
		}
	case ProviderAzure:
		if p.AccountName == "" {
			return ErrMissingAccount
		}
		if p.SecretKey == "" {
			return ErrMissingCredentials
		}
	default:
		return ErrUnknownProvider
	}
	return nil
}

// Masked returns a copy safe to show or send to the UI side.
func (p Profile) Masked() Profile {
	p.SecretKey = MaskSecret(p.SecretKey)
	if len(p.Domains) > 0 {
		p.Domains = append([]string(nil), p.Domains...)
	}
	return p
}

// MaskSecret hides all but the last four characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// Profile looks up a profile by name.
func (cfg *Config) Profile(name string) (*Profile, bool) {
	for i := range cfg.Profiles {
		if cfg.Profiles[i].Name == name {
			return &cfg.Profiles[i], true
		}
	}
	return nil, false
}

// AddProfile validates and appends p. Names are unique.
func (cfg *Config) AddProfile(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, exists := cfg.Profile(p.Name); exists {
		return fmt.Errorf("%s: %w", p.Name, ErrProfileExists)
	}
	cfg.Profiles = append(cfg.Profiles, p)
	return nil
}

// UpdateProfile replaces the profile with the same name. A masked secret
// (as returned by Masked) keeps the stored one.
func (cfg *Config) UpdateProfile(p Profile) error {
	existing, ok := cfg.Profile(p.Name)
	if !ok {
		return fmt.Errorf("%s: %w", p.Name, ErrProfileNotFound)
	}
	if p.SecretKey == "" || strings.HasPrefix(p.SecretKey, "****") {
		p.SecretKey = existing.SecretKey
	}
	if err := p.Validate(); err != nil {
		return err
	}
	*existing = p
	return nil
}

// DeleteProfile removes a profile. Deleting the current profile clears the
// selection.
func (cfg *Config) DeleteProfile(name string) error {
	for i := range cfg.Profiles {
		if cfg.Profiles[i].Name == name {
			cfg.Profiles = append(cfg.Profiles[:i], cfg.Profiles[i+1:]...)
			if cfg.Current == name {
				cfg.Current = ""
			}
			return nil
		}
	}
	return fmt.Errorf("%s: %w", name, ErrProfileNotFound)
}

// SetCurrent selects the active profile.
func (cfg *Config) SetCurrent(name string) error {
	if _, ok := cfg.Profile(name); !ok {
		return fmt.Errorf("%s: %w", name, ErrProfileNotFound)
	}
	cfg.Current = name
	return nil
}

// CurrentProfile returns the active profile.
func (cfg *Config) CurrentProfile() (*Profile, error) {
	if cfg.Current == "" {
		return nil, ErrNoCurrentProfile
	}
	p, ok := cfg.Profile(cfg.Current)
	if !ok {
		return nil, fmt.Errorf("%s: %w", cfg.Current, ErrProfileNotFound)
	}
	return p, nil
}

// Clone returns a deep copy of cfg.
func (cfg *Config) Clone() *Config {
	out := *cfg
	out.Profiles = make([]Profile, len(cfg.Profiles))
	for i, p := range cfg.Profiles {
		out.Profiles[i] = p
		out.Profiles[i].Domains = append([]string(nil), p.Domains...)
	}
	return &out
}
