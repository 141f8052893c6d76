// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/telekom/ytctl/pkg/ytctl/auth"
)

const (
	VersionV1 = "v1"
)

type Config struct {
	Version        string        `yaml:"version"`
	CurrentContext string        `yaml:"current-context,omitempty"`
	Applications   []Application `yaml:"applications,omitempty"`
	Contexts       []Context     `yaml:"contexts,omitempty"`
	Settings       Settings      `yaml:"settings,omitempty"`
}

type Settings struct {
	OutputFormat   string        `yaml:"output-format,omitempty"`
	TokenStorage   string        `yaml:"token-storage,omitempty"`
	LoginTimeout   time.Duration `yaml:"login-timeout,omitempty"`
	RequestTimeout time.Duration `yaml:"request-timeout,omitempty"`
	RateLimit      float64       `yaml:"rate-limit,omitempty"`
	Burst          int           `yaml:"burst,omitempty"`
	MetricsFile    string        `yaml:"metrics-file,omitempty"`
	// TokenCache is the JSON cache used by the file token storage.
	TokenCache string `yaml:"token-cache,omitempty"`
}

// Application is an OAuth2 client registration. Either ClientSecretFile or
// the inline fields provide the secret.
type Application struct {
	Name             string   `yaml:"name"`
	ClientSecretFile string   `yaml:"client-secret-file,omitempty"`
	ClientID         string   `yaml:"client-id,omitempty"`
	ClientSecret     string   `yaml:"client-secret,omitempty"`
	ClientSecretEnv  string   `yaml:"client-secret-env,omitempty"`
	RedirectURIs     []string `yaml:"redirect-uris,omitempty"`
	Authority        string   `yaml:"authority,omitempty"`
}

type Context struct {
	Name         string   `yaml:"name"`
	Application  string   `yaml:"application,omitempty"`
	Flow         string   `yaml:"flow,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
	RedirectPort int      `yaml:"redirect-port,omitempty"`
	// RedirectURL and ListenAddress split the redirect flow's public callback
	// URL from the address its listener binds, for port-mapped containers.
	RedirectURL           string `yaml:"redirect-url,omitempty"`
	ListenAddress         string `yaml:"listen-address,omitempty"`
	APIEndpoint           string `yaml:"api-endpoint,omitempty"`
	CAFile                string `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool   `yaml:"insecure-skip-tls-verify,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		OutputFormat:   "table",
		TokenStorage:   auth.StorageMemory,
		LoginTimeout:   5 * time.Minute,
		RequestTimeout: 30 * time.Second,
		Burst:          1,
	}
}

func DefaultConfig() Config {
	return Config{
		Version:  VersionV1,
		Settings: DefaultSettings(),
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields DefaultConfig.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			def := DefaultConfig()
			return &def, nil
		}
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

// EffectiveSettings fills unset settings with their defaults.
func (c *Config) EffectiveSettings() Settings {
	s := c.Settings
	def := DefaultSettings()
	if s.OutputFormat == "" {
		s.OutputFormat = def.OutputFormat
	}
	if s.TokenStorage == "" {
		s.TokenStorage = def.TokenStorage
	}
	if s.LoginTimeout == 0 {
		s.LoginTimeout = def.LoginTimeout
	}
	if s.RequestTimeout == 0 {
		s.RequestTimeout = def.RequestTimeout
	}
	if s.Burst == 0 {
		s.Burst = def.Burst
	}
	return s
}

func (c *Config) FindContext(name string) (*Context, error) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			return &c.Contexts[i], nil
		}
	}
	return nil, fmt.Errorf("context not found: %s", name)
}

func (c *Config) FindApplication(name string) (*Application, error) {
	for i := range c.Applications {
		if c.Applications[i].Name == name {
			return &c.Applications[i], nil
		}
	}
	return nil, fmt.Errorf("application not found: %s", name)
}

func (c *Config) CurrentContextOrDefault() string {
	if c.CurrentContext != "" {
		return c.CurrentContext
	}
	if len(c.Contexts) > 0 {
		return c.Contexts[0].Name
	}
	return ""
}

// SetContext adds ctx or replaces the context with the same name.
func (c *Config) SetContext(ctx Context) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == ctx.Name {
			c.Contexts[i] = ctx
			return
		}
	}
	c.Contexts = append(c.Contexts, ctx)
}

func (c *Config) DeleteContext(name string) error {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			c.Contexts = append(c.Contexts[:i], c.Contexts[i+1:]...)
			if c.CurrentContext == name {
				c.CurrentContext = ""
			}
			return nil
		}
	}
	return fmt.Errorf("context not found: %s", name)
}

// SetApplication adds app or replaces the application with the same name.
func (c *Config) SetApplication(app Application) {
	for i := range c.Applications {
		if c.Applications[i].Name == app.Name {
			c.Applications[i] = app
			return
		}
	}
	c.Applications = append(c.Applications, app)
}

// ResolveSecret builds the application secret for ctx. A context without an
// application resolves to the empty secret, which fails validation later.
func (c *Config) ResolveSecret(ctx *Context) (auth.ApplicationSecret, *Application, error) {
	if ctx == nil || ctx.Application == "" {
		return auth.ApplicationSecret{}, nil, nil
	}
	app, err := c.FindApplication(ctx.Application)
	if err != nil {
		return auth.ApplicationSecret{}, nil, err
	}
	secret, err := app.Secret()
	if err != nil {
		return auth.ApplicationSecret{}, nil, err
	}
	return secret, app, nil
}

// Secret loads the secret file if set and applies inline overrides.
func (a *Application) Secret() (auth.ApplicationSecret, error) {
	var secret auth.ApplicationSecret
	if a.ClientSecretFile != "" {
		loaded, err := auth.LoadApplicationSecret(a.ClientSecretFile)
		if err != nil {
			return auth.ApplicationSecret{}, err
		}
		secret = loaded
	}
	if a.ClientID != "" {
		secret.ClientID = a.ClientID
	}
	if a.ClientSecret != "" {
		secret.ClientSecret = a.ClientSecret
	}
	if a.ClientSecretEnv != "" {
		value := os.Getenv(a.ClientSecretEnv)
		if value == "" {
			return auth.ApplicationSecret{}, fmt.Errorf("environment variable %s is empty", a.ClientSecretEnv)
		}
		secret.ClientSecret = value
	}
	if len(a.RedirectURIs) > 0 {
		secret.RedirectURIs = append([]string(nil), a.RedirectURIs...)
	}
	return secret, nil
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	apps := map[string]bool{}
	for _, app := range c.Applications {
		if strings.TrimSpace(app.Name) == "" {
			return errors.New("application name cannot be empty")
		}
		if apps[app.Name] {
			return fmt.Errorf("duplicate application: %s", app.Name)
		}
		apps[app.Name] = true
	}
	seen := map[string]bool{}
	for _, ctx := range c.Contexts {
		if strings.TrimSpace(ctx.Name) == "" {
			return errors.New("context name cannot be empty")
		}
		if seen[ctx.Name] {
			return fmt.Errorf("duplicate context: %s", ctx.Name)
		}
		seen[ctx.Name] = true
		if ctx.Application != "" && !apps[ctx.Application] {
			return fmt.Errorf("context %s references unknown application %s", ctx.Name, ctx.Application)
		}
		if _, err := auth.ParseReturnMethod(ctx.Flow); err != nil {
			return fmt.Errorf("context %s: %w", ctx.Name, err)
		}
		if ctx.RedirectPort < 0 || ctx.RedirectPort > 65535 {
			return fmt.Errorf("context %s: invalid redirect port %d", ctx.Name, ctx.RedirectPort)
		}
		if ctx.RedirectURL != "" {
			parsed, err := url.Parse(ctx.RedirectURL)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
				return fmt.Errorf("context %s: invalid redirect url %s", ctx.Name, ctx.RedirectURL)
			}
		}
	}
	if c.CurrentContext != "" && !seen[c.CurrentContext] {
		return fmt.Errorf("current context %s does not exist", c.CurrentContext)
	}
	if _, err := auth.ParseStorageMode(c.Settings.TokenStorage); err != nil {
		return err
	}
	if c.Settings.RateLimit < 0 || c.Settings.Burst < 0 {
		return errors.New("rate-limit and burst must not be negative")
	}
	return nil
}
