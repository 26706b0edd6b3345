package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey           string `json:"api_key" yaml:"api_key"`
	BaseURL          string `json:"base_url" yaml:"base_url"`
	Model            string `json:"model" yaml:"model"`
	LogLevel         string `json:"log_level" yaml:"log_level"`
	InterruptTimeout string `json:"interrupt_timeout" yaml:"interrupt_timeout"`
	PresetsDir       string `json:"presets_dir" yaml:"presets_dir"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conf Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(file, &conf)
	default:
		err = json.Unmarshal(file, &conf)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &conf, nil
}

func (c *Config) Timeout() (time.Duration, error) {
	if c.InterruptTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.InterruptTimeout)
	if err != nil {
		return 0, fmt.Errorf("interrupt_timeout: %w", err)
	}
	return d, nil
}

func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
