package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath       = "gfres.yaml"
	DefaultExtractorTimeout = 10 * time.Minute
	DefaultSkinLabel        = "default portrait"
	DefaultModSkinLabel     = "mind upgrade"
	StateDriverJSON         = "json"
	StateDriverSQLite       = "sqlite"
	StateDriverPostgres     = "postgres"
	defaultManifestOutput   = "resource/characters.json"
	defaultStateDir         = "state"
)

type Config struct {
	Version      int               `yaml:"version"`
	Tables       TablesConfig      `yaml:"tables"`
	Live2D       Live2DConfig      `yaml:"live2d"`
	Avatar       StageConfig       `yaml:"avatar"`
	Painting     StageConfig       `yaml:"painting"`
	Spine        StageConfig       `yaml:"spine"`
	State        StateConfig       `yaml:"state"`
	Manifest     ManifestConfig    `yaml:"manifest"`
	Labels       LabelsConfig      `yaml:"labels"`
	SpecialCodes map[string]string `yaml:"special_codes"`
	Workers      int               `yaml:"workers"`
	Logging      LoggingConfig     `yaml:"logging"`
	Publish      PublishConfig     `yaml:"publish"`
}

type TablesConfig struct {
	Guns  string `yaml:"guns"`
	Skins string `yaml:"skins"`
}

type Live2DConfig struct {
	PackInput     string          `yaml:"pack_input"`
	PackOutput    string          `yaml:"pack_output"`
	Extractor     ExtractorConfig `yaml:"extractor"`
	ExtractOutput string          `yaml:"extract_output"`
	ResourcePath  string          `yaml:"resource_path"`
}

type ExtractorConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

type StageConfig struct {
	Input        string `yaml:"input"`
	ResourcePath string `yaml:"resource_path"`
}

type StateConfig struct {
	Driver            string `yaml:"driver"`
	DSN               string `yaml:"dsn"`
	Live2DHash        string `yaml:"live2d_hash"`
	ExtractedLive2D   string `yaml:"extracted_live2d"`
	ArchivedAvatars   string `yaml:"archived_avatars"`
	ArchivedPaintings string `yaml:"archived_paintings"`
}

type ManifestConfig struct {
	Output string `yaml:"output"`
}

type LabelsConfig struct {
	DefaultSkin string `yaml:"default_skin"`
	ModSkin     string `yaml:"mod_skin"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type PublishConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Load reads the YAML config at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Live2D.Extractor.Timeout == 0 {
		cfg.Live2D.Extractor.Timeout = DefaultExtractorTimeout
	}
	if cfg.State.Driver == "" {
		cfg.State.Driver = StateDriverJSON
	}
	cfg.State.Driver = strings.ToLower(cfg.State.Driver)
	if cfg.State.Live2DHash == "" {
		cfg.State.Live2DHash = defaultStateDir + "/live2d_hash.json"
	}
	if cfg.State.ExtractedLive2D == "" {
		cfg.State.ExtractedLive2D = defaultStateDir + "/extracted_live2d.json"
	}
	if cfg.State.ArchivedAvatars == "" {
		cfg.State.ArchivedAvatars = defaultStateDir + "/archived_avatars.json"
	}
	if cfg.State.ArchivedPaintings == "" {
		cfg.State.ArchivedPaintings = defaultStateDir + "/archived_paintings.json"
	}
	if cfg.Manifest.Output == "" {
		cfg.Manifest.Output = defaultManifestOutput
	}
	if cfg.Labels.DefaultSkin == "" {
		cfg.Labels.DefaultSkin = DefaultSkinLabel
	}
	if cfg.Labels.ModSkin == "" {
		cfg.Labels.ModSkin = DefaultModSkinLabel
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.SpecialCodes == nil {
		cfg.SpecialCodes = map[string]string{}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if strings.TrimSpace(cfg.Tables.Guns) == "" {
		return fmt.Errorf("tables.guns is required")
	}
	if strings.TrimSpace(cfg.Tables.Skins) == "" {
		return fmt.Errorf("tables.skins is required")
	}

	required := []struct {
		name  string
		value string
	}{
		{"live2d.pack_input", cfg.Live2D.PackInput},
		{"live2d.pack_output", cfg.Live2D.PackOutput},
		{"live2d.extractor.command", cfg.Live2D.Extractor.Command},
		{"live2d.extract_output", cfg.Live2D.ExtractOutput},
		{"live2d.resource_path", cfg.Live2D.ResourcePath},
		{"avatar.input", cfg.Avatar.Input},
		{"avatar.resource_path", cfg.Avatar.ResourcePath},
		{"painting.input", cfg.Painting.Input},
		{"painting.resource_path", cfg.Painting.ResourcePath},
		{"spine.input", cfg.Spine.Input},
		{"spine.resource_path", cfg.Spine.ResourcePath},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}

	if cfg.Live2D.Extractor.Timeout < 0 {
		return fmt.Errorf("live2d.extractor.timeout must not be negative")
	}

	switch cfg.State.Driver {
	case StateDriverJSON:
	case StateDriverSQLite, StateDriverPostgres:
		if strings.TrimSpace(cfg.State.DSN) == "" {
			return fmt.Errorf("state.dsn is required for driver %s", cfg.State.Driver)
		}
	default:
		return fmt.Errorf("unsupported state driver: %s", cfg.State.Driver)
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}

	seen := make(map[string]string, len(cfg.SpecialCodes))
	for code, disk := range cfg.SpecialCodes {
		if strings.TrimSpace(code) == "" || strings.TrimSpace(disk) == "" {
			return fmt.Errorf("special_codes entries must have a code and a folder name")
		}
		key := strings.ToUpper(code)
		if other, exists := seen[key]; exists {
			return fmt.Errorf("duplicate special code: %s and %s", other, code)
		}
		seen[key] = code
	}

	return nil
}

// Validate checks the fields the publish command needs. Publishing is
// optional, so these are not part of the base config validation.
func (p PublishConfig) Validate() error {
	if strings.TrimSpace(p.Endpoint) == "" {
		return fmt.Errorf("publish.endpoint is required")
	}
	if strings.TrimSpace(p.Bucket) == "" {
		return fmt.Errorf("publish.bucket is required")
	}
	if p.AccessKey == "" || p.SecretKey == "" {
		return fmt.Errorf("publish credentials are required")
	}
	return nil
}
