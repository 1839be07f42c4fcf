package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bianoble/conda-publish/internal/config"
	"github.com/bianoble/conda-publish/internal/engine"
	"github.com/bianoble/conda-publish/internal/logging"
	"github.com/bianoble/conda-publish/internal/metrics"
)

// loadConfig reads the config layers and applies the global flags on top.
func loadConfig() (*config.Config, error) {
	cfg, _, err := config.LoadLayered(config.DiscoverOptions{
		ProjectPath:     configPath,
		ProjectRequired: rootCmd.PersistentFlags().Changed("config"),
		NoInherit:       noInherit || config.NoInheritFromEnv(),
	})
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", configPath, err)
	}

	cfg, err = config.Merge(cfg, flagOverlay())
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, &config.ValidationError{Errors: errs}
	}
	return cfg, nil
}

// flagOverlay returns the config values given as global flags.
func flagOverlay() *config.Config {
	overlay := &config.Config{
		Channel: config.Channel{URL: channelURL},
		Logging: config.Logging{Format: logFormat, Level: logLevel},
		Metrics: config.Metrics{Textfile: metricsFile},
	}
	if logLevel == "" {
		switch {
		case verbose:
			overlay.Logging.Level = "debug"
		case quiet:
			overlay.Logging.Level = "error"
		}
	}
	return overlay
}

// credentials collects secrets from the flags or the environment.
func credentials() engine.Credentials {
	return engine.Credentials{
		Channel: config.Credential(channelToken, config.EnvNexusToken),
		GitHub:  config.Credential(githubToken, config.EnvGHToken),
	}
}

// session is what one command invocation works with.
type session struct {
	cfg     *config.Config
	engine  *engine.Engine
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// openSession loads the config, sets up logging and metrics, and opens the
// engine. The caller must close the session.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	runID := logging.NewRunID()
	logger := logging.ForRun(logging.Setup(logging.Config{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
	}, os.Stderr), runID)
	rec := metrics.New()

	eng, err := engine.Open(logging.WithRunID(ctx, runID), cfg, credentials(), logger, rec)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, engine: eng, metrics: rec, logger: logger}, nil
}

// close releases the engine and writes the metrics file.
func (s *session) close() {
	if err := s.engine.Close(); err != nil {
		s.logger.Warn("closing channel", "error", err)
	}
	if err := s.metrics.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		errorf("writing metrics: %v", err)
	}
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

func humanSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}
