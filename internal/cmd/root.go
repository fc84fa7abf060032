// Package cmd implements pixbackd's Cobra control surface: start, stop,
// restart, status, test, trigger, run, log, repair, version. pixbackd is
// both the daemon and its own control CLI — there is no separate
// remote API process; every subcommand operates on the local on-disk
// control surface instead (status.json, the pid file, the sentinel).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvidae/pixback/internal/common/cliutil"
	"github.com/corvidae/pixback/internal/common/paths"
)

var cfgFile string

// Version/BuildDate/GitCommit are populated via -ldflags at build time.
var (
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pixbackd",
	Short: "pixiv bookmark and follow backup daemon",
	Long: `pixbackd periodically archives a pixiv account's bookmarked and
followed-author works to local storage, running unattended on a home
router or similarly constrained device.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cliutil.RegisterConfigFlag(rootCmd, &cfgFile, "~/.config/pixback/pixback.yaml")
	cliutil.RegisterLogFlags(rootCmd)

	rootCmd.PersistentFlags().String("output-dir", "~/pixback", "Archive output directory")
	_ = viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	viper.SetDefault("output_dir", "~/pixback")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() error {
	opts := cliutil.DefaultConfigOptions()
	opts.ConfigFile = cfgFile
	return cliutil.InitConfig(opts)
}

// outputDir resolves the configured output directory, expanding ~ and
// env vars.
func outputDir() string {
	return paths.Expand(viper.GetString("output_dir"))
}
