package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/conda-publish/internal/ghactions"
	"github.com/bianoble/conda-publish/internal/logging"
)

// Load reads a conda-publish.yaml file, fills unset fields from Default and
// validates the result.
func Load(path string) (*Config, error) {
	file, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Merge(Default(), file)
	if err != nil {
		return nil, err
	}
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return cfg, nil
}

// loadFile parses one file without defaults.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
// An empty channel URL is allowed here; commands that talk to the channel
// require it themselves.
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d, only version 1 is supported", cfg.Version))
	}

	// Channel.
	if cfg.Channel.URL != "" {
		u, err := url.Parse(cfg.Channel.URL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("channel: invalid url %q: %v", cfg.Channel.URL, err))
		case !knownScheme(u.Scheme):
			errs = append(errs, fmt.Sprintf("channel: unsupported url scheme %q, must be one of: http, https, file, s3, gs", u.Scheme))
		}
	}
	if _, err := cfg.ArchSet(); err != nil {
		errs = append(errs, fmt.Sprintf("channel: architectures: %v", err))
	}

	// Indexer.
	switch cfg.Indexer.Type {
	case IndexerBuiltin:
	case IndexerCondaIndex:
		if cfg.Indexer.Python == "" {
			errs = append(errs, "indexer: type 'conda-index' requires 'python'")
		}
	case "":
		errs = append(errs, "indexer: 'type' is required, must be one of: builtin, conda-index")
	default:
		errs = append(errs, fmt.Sprintf("indexer: invalid type '%s', must be one of: builtin, conda-index", cfg.Indexer.Type))
	}

	// Lock.
	if cfg.Lock.Repo == "" {
		errs = append(errs, "lock: 'repo' is required")
	} else if _, _, err := ghactions.SplitRepo(cfg.Lock.Repo); err != nil {
		errs = append(errs, fmt.Sprintf("lock: %v", err))
	}
	if cfg.Lock.Workflow == "" {
		errs = append(errs, "lock: 'workflow' is required")
	}
	if cfg.Lock.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("lock: timeout %s must not be negative", cfg.Lock.Timeout))
	}
	if cfg.Lock.APIURL != "" {
		if u, err := url.Parse(cfg.Lock.APIURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("lock: invalid api_url %q", cfg.Lock.APIURL))
		}
	}

	// Logging.
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging: invalid format '%s', must be one of: text, json", cfg.Logging.Format))
	}
	if !logging.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Sprintf("logging: invalid level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level))
	}

	return errs
}

func knownScheme(s string) bool {
	switch s {
	case "http", "https", "file", "s3", "gs":
		return true
	}
	return false
}
