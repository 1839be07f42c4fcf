package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/conda-publish/internal/channel"
)

// exampleConfig is a complete conda-publish.yaml.
const exampleConfig = `
version: 1

channel:
  url: https://nexus.example.org/repository/conda/
  architectures: [linux-64, osx-arm64, noarch]

indexer:
  type: conda-index
  python: /opt/conda/bin/python

lock:
  repo: acme/workflows
  workflow: channel-lock.yml
  ref: stable
  timeout: 45m

logging:
  format: json
  level: debug

metrics:
  textfile: /var/lib/node_exporter/conda_publish.prom
`

func TestUnmarshalExampleConfig(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(exampleConfig), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("version = %d, want 1", cfg.Version)
	}
	if cfg.Channel.URL != "https://nexus.example.org/repository/conda/" {
		t.Errorf("channel.url = %q", cfg.Channel.URL)
	}
	if len(cfg.Channel.Architectures) != 3 || cfg.Channel.Architectures[1] != "osx-arm64" {
		t.Errorf("architectures = %v", cfg.Channel.Architectures)
	}
	if cfg.Indexer.Type != IndexerCondaIndex || cfg.Indexer.Python != "/opt/conda/bin/python" {
		t.Errorf("indexer = %+v", cfg.Indexer)
	}
	if cfg.Lock.Repo != "acme/workflows" || cfg.Lock.Workflow != "channel-lock.yml" || cfg.Lock.Ref != "stable" {
		t.Errorf("lock = %+v", cfg.Lock)
	}
	if cfg.Lock.Timeout != 45*time.Minute {
		t.Errorf("lock.timeout = %s, want 45m", cfg.Lock.Timeout)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Textfile == "" {
		t.Error("metrics.textfile not parsed")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if errs := Validate(cfg); len(errs) > 0 {
		t.Fatalf("Default() does not validate: %v", errs)
	}
	if cfg.Lock.Timeout != 30*time.Minute {
		t.Errorf("timeout = %s, want 30m", cfg.Lock.Timeout)
	}
	if cfg.Lock.Workflow != "conda-index-lock.yml" || cfg.Lock.Ref != "main" {
		t.Errorf("lock = %+v", cfg.Lock)
	}
	if cfg.Indexer.Type != IndexerBuiltin {
		t.Errorf("indexer = %q", cfg.Indexer.Type)
	}

	set, err := cfg.ArchSet()
	if err != nil {
		t.Fatal(err)
	}
	if len(set.All()) != 5 || !set.Contains(string(channel.NoArch)) {
		t.Errorf("archs = %v", set)
	}
}

func TestDefaultIsFresh(t *testing.T) {
	a := Default()
	a.Channel.Architectures[0] = "changed"
	if Default().Channel.Architectures[0] != "linux-64" {
		t.Error("Default() shares state between calls")
	}
}
