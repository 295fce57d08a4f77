package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config models pulse.yaml plus PULSE_* environment overrides.
type Config struct {
	DataDir  string `yaml:"dataDir"`
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"logLevel"`
	RootDB   string `yaml:"rootDB"`
	Context  string `yaml:"context"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:  ".pulse",
		Addr:     ":4000",
		LogLevel: "info",
		RootDB:   "pulse-core",
		Context:  "pulse",
	}
}

// Load reads the config file when present and applies environment
// overrides. A missing file is not an error; defaults carry the service.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for key, target := range map[string]*string{
		"data-dir":  &cfg.DataDir,
		"addr":      &cfg.Addr,
		"log-level": &cfg.LogLevel,
		"root-db":   &cfg.RootDB,
		"context":   &cfg.Context,
	} {
		if value := v.GetString(key); value != "" {
			*target = value
		}
	}

	return cfg, nil
}

var nonWord = regexp.MustCompile(`\W`)

// ProjectPath is the logical datastore location for one project's
// collections. Non-word characters are stripped so the project name is safe
// as a location.
func (c *Config) ProjectPath(projectName string) string {
	return fmt.Sprintf("%s-%s", c.Context, nonWord.ReplaceAllString(projectName, ""))
}

// CorePath is the location of the shared core database holding project
// configuration.
func (c *Config) CorePath() string {
	return c.ProjectPath(c.RootDB)
}
