// Package config loads pehashng settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/ZacharyZcR/pehashng/internal/pe"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds the settings shared by the command line and GUI.
type Config struct {
	Backend   string `yaml:"backend"`
	Workers   int    `yaml:"workers"`
	Recursive bool   `yaml:"recursive"`
	SkipNonPE bool   `yaml:"skip_non_pe"`
	Format    string `yaml:"format"`
	Verbose   bool   `yaml:"verbose"`
	// Strict makes parse failures change the exit status.
	Strict bool `yaml:"strict"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Backend: string(pe.DefaultBackend),
		Workers: runtime.NumCPU(),
		Format:  FormatText,
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("配置文件 %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML settings on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("解析YAML失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values.
func (c Config) Validate() error {
	if _, err := pe.ParseBackend(c.Backend); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers 必须大于0: %d", c.Workers)
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("未知的输出格式: %q", c.Format)
	}
	return nil
}

// ParsedBackend returns the validated backend.
func (c Config) ParsedBackend() pe.Backend {
	b, err := pe.ParseBackend(c.Backend)
	if err != nil {
		return pe.DefaultBackend
	}
	return b
}
