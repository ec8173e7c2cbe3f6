// Package cli implements the tweetsaver command line.
package cli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/tweetsaver/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tweetsaver",
	Short: "Save posts from X to Obsidian",
	Long: `tweetsaver opens x.com in a Chrome window, adds a save button to every
post and writes saved posts as notes into an Obsidian vault through the
Local REST API plugin. Settings live at http://127.0.0.1:27124 while it runs.`,
	SilenceUsage: true,
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default is the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func newLogger() *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "tweetsaver",
	})
}

// configPath is the --config flag or the default config location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.ConfigPath()
}

// loadConfig reads the config file, creating a default one on first run,
// and applies environment overrides.
func loadConfig(logger *log.Logger) *config.Config {
	path, err := configPath()
	if err != nil {
		logger.Warn("could not locate config dir, using defaults", "err", err)
		cfg := config.Default()
		if _, err := cfg.ApplyEnv(""); err != nil {
			logger.Warn("could not apply environment", "err", err)
		}
		return cfg
	}

	cfg := loadConfigFile(logger, path)

	envPath := config.EnvPath(path)
	changed, err := cfg.ApplyEnv(envPath)
	if err != nil {
		logger.Warn("could not read .env", "path", envPath, "err", err)
	} else if changed {
		logger.Debug("Applied environment overrides")
	}
	return cfg
}

func loadConfigFile(logger *log.Logger, path string) *config.Config {
	cfg, err := config.LoadFile(path)
	if err == nil {
		return cfg
	}
	if !os.IsNotExist(err) {
		logger.Warn("could not load config, using defaults", "path", path, "err", err)
		return config.Default()
	}

	cfg = config.Default()
	if err := cfg.SaveFile(path); err != nil {
		logger.Warn("could not save default config", "err", err)
	} else {
		logger.Info("Created default config", "path", path)
	}
	return cfg
}
