// Package cliutil provides Cobra/Viper wiring shared by every pixback
// subcommand: config file discovery, environment variable binding, and
// logger construction from the resolved configuration.
package cliutil

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvidae/pixback/internal/common/logs"
	"github.com/corvidae/pixback/internal/common/paths"
)

// ConfigOptions holds options for configuration initialization.
type ConfigOptions struct {
	// ConfigFile is the path to the config file, if given via --config.
	ConfigFile string

	// ConfigName is the config file's base name (without extension).
	ConfigName string

	// ConfigType is the config file format (yaml, json, toml).
	ConfigType string

	// EnvPrefix is the prefix for environment variables, e.g. "PIXBACK".
	EnvPrefix string

	// SearchPaths are additional directories to search for the config file.
	SearchPaths []string
}

// DefaultConfigOptions returns the standard search locations for pixback.
func DefaultConfigOptions() ConfigOptions {
	return ConfigOptions{
		ConfigName: "pixback",
		ConfigType: "yaml",
		EnvPrefix:  "PIXBACK",
		SearchPaths: []string{
			"/etc/pixback",
			"$HOME/.config/pixback",
			".",
		},
	}
}

// InitConfig initializes Viper with the given options: it searches for a
// config file, binds prefixed environment variables, and tolerates a
// missing config file (the daemon may be driven entirely by env vars or
// flags, since the router's own config store is the real source of truth
// and is expected to render one of these forms).
func InitConfig(opts ConfigOptions) error {
	if opts.ConfigFile != "" {
		viper.SetConfigFile(paths.Expand(opts.ConfigFile))
	} else {
		viper.SetConfigName(opts.ConfigName)
		viper.SetConfigType(opts.ConfigType)
		for _, p := range opts.SearchPaths {
			viper.AddConfigPath(paths.Expand(p))
		}
	}

	if opts.EnvPrefix != "" {
		viper.SetEnvPrefix(opts.EnvPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// RegisterLogFlags registers the common --log-output/--log-level flags.
func RegisterLogFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log-output", "auto", "Log output destination (auto, stdout, journald)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	_ = viper.BindPFlag("log.output", cmd.PersistentFlags().Lookup("log-output"))
	_ = viper.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))

	viper.SetDefault("log.output", "auto")
	viper.SetDefault("log.level", "info")
}

// RegisterConfigFlag registers the --config flag on a Cobra command.
func RegisterConfigFlag(cmd *cobra.Command, cfgFile *string, defaultPath string) {
	cmd.PersistentFlags().StringVar(cfgFile, "config", "", fmt.Sprintf("config file (default: %s)", defaultPath))
}

// NewLogger builds a Logger from the resolved Viper configuration.
func NewLogger(prefix string) *logs.Logger {
	return logs.New(logs.Config{
		Output: logs.Output(viper.GetString("log.output")),
		Level:  viper.GetString("log.level"),
		Prefix: prefix,
	})
}
