// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxValidationAttempts bounds the classification retry budget.
const maxValidationAttempts = 10

type Config struct {
	Log           LogConfig           `yaml:"log"`
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	LLM           LLMConfig           `yaml:"llm"`
	Validation    ValidationConfig    `yaml:"validation"`
	Summarization SummarizationConfig `yaml:"summarization"`
	Assembly      AssemblyConfig      `yaml:"assembly"`
	Notify        NotifyConfig        `yaml:"notify"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

type ServerConfig struct {
	Port         string   `yaml:"port"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

type StorageConfig struct {
	S3        S3Config `yaml:"s3"`
	LocalRoot string   `yaml:"local_root"`
}

type S3Config struct {
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

type TranscriptionConfig struct {
	Mode         string   `yaml:"mode"`
	URL          string   `yaml:"url"`
	OutputPrefix string   `yaml:"output_prefix"`
	Concurrency  int      `yaml:"concurrency"`
	PollInterval Duration `yaml:"poll_interval"`
	PollAttempts int      `yaml:"poll_attempts"`
	Extensions   []string `yaml:"extensions"`
}

type LLMConfig struct {
	Provider  string   `yaml:"provider"`
	URL       string   `yaml:"url"`
	APIKey    string   `yaml:"api_key"`
	Model     string   `yaml:"model"`
	Timeout   Duration `yaml:"timeout"`
	// OffTopicMarkers drive the offline mock classifier.
	OffTopicMarkers []string `yaml:"off_topic_markers"`
}

type ValidationConfig struct {
	MaxAttempts     int      `yaml:"max_attempts"`
	BaseDelay       Duration `yaml:"base_delay"`
	ReadConcurrency int      `yaml:"read_concurrency"`
}

type SummarizationConfig struct {
	FileName string `yaml:"file_name"`
}

type AssemblyConfig struct {
	OutputPrefix string `yaml:"output_prefix"`
}

type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// Duration reads Go duration strings ("2s", "1m30s") from YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("ENVIRONMENT", &c.Log.Environment)
	str("PORT", &c.Server.Port)
	str("AWS_REGION", &c.Storage.S3.Region)
	str("S3_ENDPOINT", &c.Storage.S3.Endpoint)
	str("TRANSCRIBE_URL", &c.Transcription.URL)
	str("OUTPUT_PREFIX", &c.Transcription.OutputPrefix)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_GATEWAY_URL", &c.LLM.URL)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_MODEL", &c.LLM.Model)
	str("NOTIFY_WEBHOOK_URL", &c.Notify.WebhookURL)

	for key, apply := range map[string]func(){
		"USE_MOCK_TRANSCRIBE": func() { c.Transcription.Mode = "mock" },
		"USE_MOCK_LLM":        func() { c.LLM.Provider = "mock" },
	} {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if on {
			apply()
		}
	}
	return nil
}

// Validate fills defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(10 * time.Minute)
	}

	switch c.Transcription.Mode {
	case "":
		if c.Transcription.URL == "" {
			c.Transcription.Mode = "mock"
		} else {
			c.Transcription.Mode = "http"
		}
	case "mock":
	case "http":
		if c.Transcription.URL == "" {
			return fmt.Errorf("transcription.url is required in http mode")
		}
	default:
		return fmt.Errorf("transcription.mode %q is not one of http, mock", c.Transcription.Mode)
	}
	if c.Transcription.Concurrency == 0 {
		c.Transcription.Concurrency = 4
	}
	if c.Transcription.PollInterval == 0 {
		c.Transcription.PollInterval = Duration(1500 * time.Millisecond)
	}
	if c.Transcription.PollAttempts == 0 {
		c.Transcription.PollAttempts = 40
	}

	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
	switch c.LLM.Provider {
	case "":
		c.LLM.Provider = "mock"
	case "mock":
	case "gateway":
		if c.LLM.URL == "" || c.LLM.APIKey == "" {
			return fmt.Errorf("llm.url and llm.api_key are required for the gateway provider")
		}
	case "anthropic", "gemini":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for the %s provider", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("llm.provider %q is not one of gateway, anthropic, gemini, mock", c.LLM.Provider)
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = Duration(30 * time.Second)
	}

	if c.Validation.MaxAttempts == 0 {
		c.Validation.MaxAttempts = 3
	}
	if c.Validation.MaxAttempts < 1 || c.Validation.MaxAttempts > maxValidationAttempts {
		return fmt.Errorf("validation.max_attempts must be between 1 and %d", maxValidationAttempts)
	}
	if c.Validation.BaseDelay == 0 {
		c.Validation.BaseDelay = Duration(2 * time.Second)
	}
	if c.Validation.BaseDelay < 0 {
		return fmt.Errorf("validation.base_delay must not be negative")
	}
	if c.Validation.ReadConcurrency == 0 {
		c.Validation.ReadConcurrency = 8
	}

	if c.Summarization.FileName == "" {
		c.Summarization.FileName = "summary/data.txt"
	}
	return nil
}
