package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/jwtauth/internal/config"
	"github.com/MrEthical07/jwtauth/internal/logging"
)

// global flags
var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "jwtauth-server",
	Short: "Token issuance and revocation reference server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := logging.Init(logging.Config{Level: logLevel, Format: logFormat})
		return err
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

// loadConfig loads the config file and re-initialises logging from it unless log
// flags were given.
func loadConfig(cmd *cobra.Command) (*config.File, error) {
	f, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	lc := f.Log
	if cmd.Flags().Changed("log-level") {
		lc.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		lc.Format = logFormat
	}
	if _, err := logging.Init(lc); err != nil {
		return nil, err
	}
	return f, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file (YAML); JWTAUTH_* env vars override it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatConsole, "Log format (console, json)")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}
