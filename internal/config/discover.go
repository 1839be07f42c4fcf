package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// FileName is the name of the project configuration file.
const FileName = "conda-publish.yaml"

const configDirName = "conda-publish"

// Environment variables read by the CLI.
const (
	EnvNoInherit  = "CONDA_PUBLISH_NO_INHERIT"
	EnvNexusToken = "NEXUS_TOKEN"
	EnvGHToken    = "GH_TOKEN"
)

// ConfigLevel represents the precedence level of a configuration file.
type ConfigLevel string

const (
	LevelSystem  ConfigLevel = "system"
	LevelUser    ConfigLevel = "user"
	LevelProject ConfigLevel = "project"
)

// ConfigLayerInfo describes a discovered config file and its load status.
type ConfigLayerInfo struct {
	Err    error // non-nil if the file exists but failed to load
	Path   string
	Level  ConfigLevel
	Loaded bool
}

// DiscoverOptions controls how config paths are discovered.
type DiscoverOptions struct {
	// ProjectPath is the project-level config path.
	ProjectPath string

	// ProjectRequired makes a missing project file an error. Set when the
	// path was given explicitly.
	ProjectRequired bool

	// SystemConfigPath overrides the default system config path.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	SystemConfigPath string

	// UserConfigPath overrides the default user config path.
	// Empty means use the OS default. Set to a nonexistent path to skip.
	UserConfigPath string

	// NoInherit skips the system and user layers.
	NoInherit bool
}

// DiscoverPaths returns the ordered list of config file paths to check,
// from lowest precedence (system) to highest (project).
// Paths are deduplicated by resolved absolute path.
func DiscoverPaths(opts DiscoverOptions) []ConfigLayerInfo {
	var layers []ConfigLayerInfo
	seen := make(map[string]bool)

	addLayer := func(level ConfigLevel, path string) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if seen[abs] {
			return
		}
		seen[abs] = true
		layers = append(layers, ConfigLayerInfo{
			Path:  path,
			Level: level,
		})
	}

	if !opts.NoInherit {
		sysPath := opts.SystemConfigPath
		if sysPath == "" {
			sysPath = defaultSystemConfigPath()
		}
		addLayer(LevelSystem, sysPath)

		userPath := opts.UserConfigPath
		if userPath == "" {
			userPath = defaultUserConfigPath()
		}
		addLayer(LevelUser, userPath)
	}

	// Project-level config (always last, highest precedence).
	addLayer(LevelProject, opts.ProjectPath)

	return layers
}

// LoadLayered loads every discovered layer that exists, merges them over
// Default and validates the result. Missing files are skipped unless the
// project file is required.
func LoadLayered(opts DiscoverOptions) (*Config, []ConfigLayerInfo, error) {
	layers := DiscoverPaths(opts)
	configs := []*Config{Default()}

	for i := range layers {
		l := &layers[i]
		cfg, err := loadFile(l.Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && !(l.Level == LevelProject && opts.ProjectRequired) {
				continue
			}
			l.Err = err
			return nil, layers, err
		}
		l.Loaded = true
		configs = append(configs, cfg)
	}

	merged, err := MergeAll(configs)
	if err != nil {
		return nil, layers, err
	}
	if errs := Validate(merged); len(errs) > 0 {
		return nil, layers, &ValidationError{Errors: errs}
	}
	return merged, layers, nil
}

// defaultSystemConfigPath returns the platform-standard system config path.
func defaultSystemConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		pd := os.Getenv("ProgramData")
		if pd == "" {
			pd = `C:\ProgramData`
		}
		return filepath.Join(pd, configDirName, FileName)
	default: // linux, darwin, etc.
		return filepath.Join("/etc", configDirName, FileName)
	}
}

// defaultUserConfigPath returns the platform-standard user config path.
func defaultUserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configDirName, FileName)
}

// NoInheritFromEnv returns true if CONDA_PUBLISH_NO_INHERIT is set to "1" or "true".
func NoInheritFromEnv() bool {
	return envBoolTrue(EnvNoInherit)
}

// Credential returns flagValue, or the value of the environment variable
// env when the flag was not given.
func Credential(flagValue, env string) string {
	if flagValue != "" {
		return flagValue
	}
	return strings.TrimSpace(os.Getenv(env))
}

// envBoolTrue returns true if the env var is set to "1" or "true" (case-insensitive).
func envBoolTrue(key string) bool {
	v := os.Getenv(key)
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true"
}
