package engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the overridable subset of Config in YAML form.
type fileConfig struct {
	Languages             []string `yaml:"languages"`
	ReportMatchedLanguage *bool    `yaml:"report_matched_language"`
	FetchTimeout          string   `yaml:"fetch_timeout"`
	CallbackTimeout       string   `yaml:"callback_timeout"`
	YouTube               struct {
		RPS   *float64 `yaml:"rps"`
		Burst *int     `yaml:"burst"`
	} `yaml:"youtube"`
}

// LoadConfigFile overlays values from a YAML file onto c.
// Keys absent from the file leave c unchanged.
func LoadConfigFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return applyConfigYAML(data, c)
}

func applyConfigYAML(data []byte, c *Config) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if len(fc.Languages) > 0 {
		c.Languages = fc.Languages
	}
	if fc.ReportMatchedLanguage != nil {
		c.ReportMatchedLanguage = *fc.ReportMatchedLanguage
	}
	if fc.FetchTimeout != "" {
		d, err := time.ParseDuration(fc.FetchTimeout)
		if err != nil {
			return fmt.Errorf("fetch_timeout: %w", err)
		}
		c.FetchTimeout = d
	}
	if fc.CallbackTimeout != "" {
		d, err := time.ParseDuration(fc.CallbackTimeout)
		if err != nil {
			return fmt.Errorf("callback_timeout: %w", err)
		}
		c.CallbackTimeout = d
	}
	if fc.YouTube.RPS != nil {
		c.YouTubeRPS = *fc.YouTube.RPS
	}
	if fc.YouTube.Burst != nil {
		c.YouTubeBurst = *fc.YouTube.Burst
	}
	return nil
}
