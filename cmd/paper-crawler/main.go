// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-crawler CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-crawler/internal/logging"
	"github.com/pdiddy/paper-crawler/internal/metrics"
	"github.com/pdiddy/paper-crawler/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// Run-wide state set up in PersistentPreRunE.
var (
	logger        = zerolog.Nop()
	loadedSecrets secrets.Secrets
	runMetrics    *metrics.Metrics

	// configErr holds a failure to read an explicitly named config file.
	configErr error
)

// rootCmd is the base command for the paper-crawler CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-crawler",
	Short: "Retrieve conference papers from DBLP and enrich them with abstracts and PDFs",
	Long: `paper-crawler lists the papers of one conference from DBLP for the requested
years, then fills in abstracts and open-access PDF links from Semantic Scholar,
Unpaywall and arXiv, one source after another.

Settings come from flags, then PAPER_CRAWLER_* environment variables, then
paper-crawler.yaml. API keys may also live in a .env file or in .secrets/.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		envFile := viper.GetString("env_file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		log, err := logging.New(logging.Config{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		})
		if err != nil {
			return err
		}
		logger = log
		if f := viper.ConfigFileUsed(); f != "" {
			logger.Info().Str("file", f).Msg("using config file")
		}

		s, err := secrets.Load(viper.GetString("secrets_dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.Debug().Strs("keys", s.Keys()).Msg("loaded secrets")
		}

		if viper.GetString("metrics_file") != "" {
			runMetrics = metrics.New()
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return writeMetrics()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./paper-crawler.yaml or ~/.config/paper-crawler/config.yaml)")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")
	pf.String("metrics-file", "", "write Prometheus metrics to this file when the command finishes")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of secret files")
	pf.String("env-file", ".env", "dotenv file loaded into the environment")

	for key, flag := range map[string]string{
		"log.level":    "log-level",
		"log.format":   "log-format",
		"metrics_file": "metrics-file",
		"secrets_dir":  "secrets-dir",
		"env_file":     "env-file",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-crawler")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-crawler"))
		}
	}

	setConfigDefaults(viper.GetViper())
	viper.SetEnvPrefix("PAPER_CRAWLER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = fmt.Errorf("reading config: %w", err)
		}
	}
}

// writeMetrics flushes the run's collectors when --metrics-file is set.
func writeMetrics() error {
	path := viper.GetString("metrics_file")
	if path == "" || runMetrics == nil {
		return nil
	}
	if err := runMetrics.WriteTextfile(path); err != nil {
		return err
	}
	logger.Info().Str("file", path).Msg("wrote metrics")
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if werr := writeMetrics(); werr != nil {
			logger.Error().Err(werr).Msg("writing metrics")
		}
		stop()
		os.Exit(1)
	}
}
