package config

import (
	"errors"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr      string
	ModelID         string
	RunnerBaseURL   string
	RunnerAPIKey    string
	RequestTimeout  time.Duration
	GenerateTimeout time.Duration
	TokenizeTimeout time.Duration
	LoadTimeout     time.Duration
	MaxBodyBytes    int64
	LogLevel        string
}

type envConfig struct {
	ListenAddr             string `env:"LISTEN_ADDR" envDefault:":8000"`
	ModelID                string `env:"MODEL_ID" envDefault:"gpt2"`
	RunnerBaseURL          string `env:"RUNNER_BASE_URL" envDefault:"http://127.0.0.1:8081"`
	RunnerAPIKey           string `env:"RUNNER_API_KEY"`
	RequestTimeoutSeconds  int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"25"`
	GenerateTimeoutSeconds int    `env:"GENERATE_TIMEOUT_SECONDS" envDefault:"60"`
	TokenizeTimeoutSeconds int    `env:"TOKENIZE_TIMEOUT_SECONDS" envDefault:"10"`
	LoadTimeoutSeconds     int    `env:"LOAD_TIMEOUT_SECONDS" envDefault:"120"`
	MaxBodyBytes           int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:      strings.TrimSpace(raw.ListenAddr),
		ModelID:         strings.TrimSpace(raw.ModelID),
		RunnerBaseURL:   strings.TrimRight(strings.TrimSpace(raw.RunnerBaseURL), "/"),
		RunnerAPIKey:    strings.TrimSpace(raw.RunnerAPIKey),
		RequestTimeout:  time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		GenerateTimeout: time.Duration(raw.GenerateTimeoutSeconds) * time.Second,
		TokenizeTimeout: time.Duration(raw.TokenizeTimeoutSeconds) * time.Second,
		LoadTimeout:     time.Duration(raw.LoadTimeoutSeconds) * time.Second,
		MaxBodyBytes:    raw.MaxBodyBytes,
		LogLevel:        strings.ToLower(strings.TrimSpace(raw.LogLevel)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.ModelID == "" {
		return errors.New("MODEL_ID must not be empty")
	}
	if c.RunnerBaseURL == "" {
		return errors.New("RUNNER_BASE_URL must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	if c.GenerateTimeout <= 0 {
		return errors.New("GENERATE_TIMEOUT_SECONDS must be > 0")
	}
	if c.TokenizeTimeout <= 0 {
		return errors.New("TOKENIZE_TIMEOUT_SECONDS must be > 0")
	}
	if c.LoadTimeout <= 0 {
		return errors.New("LOAD_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}
	return nil
}
