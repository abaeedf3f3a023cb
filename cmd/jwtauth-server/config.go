package main

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/internal/userdir"
	"github.com/MrEthical07/jwtauth/password"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file and the engine settings it produces",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		hasher, err := password.NewArgon2(f.Password)
		if err != nil {
			return err
		}
		users, err := userdir.New(hasher, f.Users)
		if err != nil {
			return err
		}
		cfg, err := f.EngineConfig(users.Mappings())
		if err != nil {
			return err
		}
		if _, err := jwtauth.NewMatcher(cfg); err != nil {
			return err
		}

		log.Info().
			Strs("scopes", users.Scopes()).
			Int("dispatch_rules", len(cfg.DispatchRequests)).
			Str("revocation_path", cfg.RevocationPath).
			Str("strategy", f.Revocation.Strategy).
			Msg("Configuration is valid.")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	Long: `Prints the configuration after defaults and JWTAUTH_* environment overrides
have been applied. Secrets and password hashes are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(f.Redacted())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print an Argon2id hash for the users section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pc := password.DefaultConfig()
		if cfgFile != "" {
			f, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			pc = f.Password
		}
		hasher, err := password.NewArgon2(pc)
		if err != nil {
			return err
		}
		hash, err := hasher.Hash(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
		return err
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}
