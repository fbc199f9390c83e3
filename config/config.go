package config

import (
	"context"
	"fmt"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

// Config is the resolved runtime configuration for both binaries.
type Config struct {
	DryRun     bool   `koanf:"dry_run" mapstructure:"dry_run"`
	Bucket     string `koanf:"bucket" mapstructure:"bucket"`
	TokenPath  string `koanf:"token_path" mapstructure:"token_path"`
	SaltPath   string `koanf:"salt_path" mapstructure:"salt_path"`
	QueueURL   string `koanf:"queue_url" mapstructure:"queue_url"`
	Region     string `koanf:"region" mapstructure:"region"`
	TFCAddress string `koanf:"tfc_address" mapstructure:"tfc_address"`
	ListenAddr string `koanf:"listen_addr" mapstructure:"listen_addr"`
}

func DefaultConfig() Config {
	return Config{
		TFCAddress: "https://app.terraform.io",
		ListenAddr: ":8080",
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("config: bucket is required")
	}
	if strings.TrimSpace(c.TokenPath) == "" {
		return fmt.Errorf("config: token_path is required")
	}
	if strings.TrimSpace(c.SaltPath) == "" {
		return fmt.Errorf("config: salt_path is required")
	}
	return nil
}

// ValidateReprocessor adds the dead-letter requirements on top of Validate.
func (c Config) ValidateReprocessor() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.QueueURL) == "" {
		return fmt.Errorf("config: queue_url is required")
	}
	return nil
}

// RawConfigLoader produces an untyped configuration layer.
type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type envConfig struct {
	DryRun     bool   `env:"DRY_RUN"`
	Bucket     string `env:"S3_BUCKET"`
	TokenPath  string `env:"TFC_TOKEN_PATH"`
	SaltPath   string `env:"SALT_PATH"`
	QueueURL   string `env:"FAILED_EVENTS_QUEUE_URL"`
	Region     string `env:"AWS_REGION"`
	TFCAddress string `env:"TFC_ADDRESS"`
	ListenAddr string `env:"LISTEN_ADDR"`
}

// EnvRawLoader reads configuration from process environment variables.
// Unset variables are omitted from the layer so defaults survive the merge.
type EnvRawLoader struct{}

func (EnvRawLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	layer := map[string]any{}
	if raw.DryRun {
		layer["dry_run"] = raw.DryRun
	}
	setString(layer, "bucket", raw.Bucket)
	setString(layer, "token_path", raw.TokenPath)
	setString(layer, "salt_path", raw.SaltPath)
	setString(layer, "queue_url", raw.QueueURL)
	setString(layer, "region", raw.Region)
	setString(layer, "tfc_address", raw.TFCAddress)
	setString(layer, "listen_addr", raw.ListenAddr)
	return layer, nil
}

func setString(layer map[string]any, key, value string) {
	if strings.TrimSpace(value) != "" {
		layer[key] = value
	}
}

// Provider builds a typed Config from a raw loader.
type Provider struct {
	Loader RawConfigLoader
}

func NewProvider(loader RawConfigLoader) *Provider {
	return &Provider{Loader: loader}
}

func (p *Provider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = EnvRawLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve merges defaults, loaded, and runtime overrides in ascending
// precedence.
func Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("config: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("config: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || cfg.DryRun {
		layer["dry_run"] = cfg.DryRun
	}
	if includeZero || strings.TrimSpace(cfg.Bucket) != "" {
		layer["bucket"] = cfg.Bucket
	}
	if includeZero || strings.TrimSpace(cfg.TokenPath) != "" {
		layer["token_path"] = cfg.TokenPath
	}
	if includeZero || strings.TrimSpace(cfg.SaltPath) != "" {
		layer["salt_path"] = cfg.SaltPath
	}
	if includeZero || strings.TrimSpace(cfg.QueueURL) != "" {
		layer["queue_url"] = cfg.QueueURL
	}
	if includeZero || strings.TrimSpace(cfg.Region) != "" {
		layer["region"] = cfg.Region
	}
	if includeZero || strings.TrimSpace(cfg.TFCAddress) != "" {
		layer["tfc_address"] = cfg.TFCAddress
	}
	if includeZero || strings.TrimSpace(cfg.ListenAddr) != "" {
		layer["listen_addr"] = cfg.ListenAddr
	}
	return layer
}
