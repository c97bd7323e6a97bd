// Package config holds the exporter settings of cmd/mmdexport.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Export       ExportConfig       `yaml:"export"`
	Textures     TexturesConfig     `yaml:"textures"`
	Logging      LoggingConfig      `yaml:"logging"`
	Localization LocalizationConfig `yaml:"localization"`
}

type ExportConfig struct {
	// Format is "pmx" or "pmd". Empty means the output extension decides.
	Format string `yaml:"format"`
	// NamePolicy is "truncate" or "reject".
	NamePolicy string `yaml:"name_policy"`
	// PMXEncoding is "utf16" or "utf8".
	PMXEncoding string `yaml:"pmx_encoding"`
	EyesBone    string `yaml:"eyes_bone"`
	// Placeholder replaces runes Shift-JIS cannot encode. Empty fails the
	// export instead.
	Placeholder string `yaml:"placeholder"`
}

type TexturesConfig struct {
	Enabled bool `yaml:"enabled"`
	Legacy  bool `yaml:"legacy"`
	MaxSize int  `yaml:"max_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type LocalizationConfig struct {
	// Path of a table merged over the built-in one.
	Path string `yaml:"path"`
}

func Default() *Config {
	return &Config{
		Export: ExportConfig{
			NamePolicy:  "truncate",
			PMXEncoding: "utf16",
			EyesBone:    "eyes",
		},
		Textures: TexturesConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the enumerated fields.
func (c *Config) Validate() error {
	switch c.Export.Format {
	case "", "pmx", "pmd":
	default:
		return fmt.Errorf("unknown format %q", c.Export.Format)
	}
	switch c.Export.NamePolicy {
	case "truncate", "reject":
	default:
		return fmt.Errorf("unknown name policy %q", c.Export.NamePolicy)
	}
	switch c.Export.PMXEncoding {
	case "utf16", "utf8":
	default:
		return fmt.Errorf("unknown pmx encoding %q", c.Export.PMXEncoding)
	}
	if len([]rune(c.Export.Placeholder)) > 1 {
		return fmt.Errorf("placeholder %q is not a single character", c.Export.Placeholder)
	}
	if c.Textures.MaxSize < 0 {
		return fmt.Errorf("negative texture size %d", c.Textures.MaxSize)
	}
	return nil
}

// Save writes c in the layout Load reads.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
