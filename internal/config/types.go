package config

import (
	"time"

	"github.com/bianoble/conda-publish/internal/channel"
)

// Config represents the conda-publish.yaml configuration file.
// Credentials are never part of it.
type Config struct {
	Version int     `yaml:"version"`
	Channel Channel `yaml:"channel"`
	Indexer Indexer `yaml:"indexer"`
	Lock    Lock    `yaml:"lock"`
	Logging Logging `yaml:"logging"`
	Metrics Metrics `yaml:"metrics"`
}

// Channel locates the published channel.
type Channel struct {
	URL           string   `yaml:"url,omitempty"`
	Architectures []string `yaml:"architectures,omitempty"`
}

// Indexer selects the program that regenerates the channel documents.
type Indexer struct {
	Type   string `yaml:"type,omitempty"` // "builtin", "conda-index"
	Python string `yaml:"python,omitempty"`
	Title  string `yaml:"title,omitempty"`
}

// Lock configures the remote workflow used as the channel lock.
type Lock struct {
	Repo     string        `yaml:"repo,omitempty"`
	Workflow string        `yaml:"workflow,omitempty"`
	Ref      string        `yaml:"ref,omitempty"`
	APIURL   string        `yaml:"api_url,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// Logging configures the slog handler.
type Logging struct {
	Format string `yaml:"format,omitempty"` // "text", "json"
	Level  string `yaml:"level,omitempty"`
}

// Metrics configures the prometheus textfile export.
type Metrics struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// Indexer types.
const (
	IndexerBuiltin    = "builtin"
	IndexerCondaIndex = "conda-index"
)

// Default values.
const (
	DefaultLockRepo     = "ecmwf/reusable-workflows"
	DefaultLockWorkflow = "conda-index-lock.yml"
	DefaultLockRef      = "main"
	DefaultAPIURL       = "https://api.github.com"
	DefaultLockTimeout  = 30 * time.Minute
	DefaultPython       = "python3"
)

// Default returns a Config holding every default value.
func Default() *Config {
	archs := channel.DefaultArchs()
	names := make([]string, len(archs))
	for i, a := range archs {
		names[i] = string(a)
	}
	return &Config{
		Version: 1,
		Channel: Channel{Architectures: names},
		Indexer: Indexer{Type: IndexerBuiltin, Python: DefaultPython},
		Lock: Lock{
			Repo:     DefaultLockRepo,
			Workflow: DefaultLockWorkflow,
			Ref:      DefaultLockRef,
			APIURL:   DefaultAPIURL,
			Timeout:  DefaultLockTimeout,
		},
		Logging: Logging{Format: "text", Level: "info"},
	}
}

// ArchSet builds the architecture enumeration of the channel.
func (c *Config) ArchSet() (*channel.ArchSet, error) {
	return channel.NewArchSet(c.Channel.Architectures...)
}
