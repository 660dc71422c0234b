package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions is shared by all subcommands of one root command.
type rootOptions struct {
	cfgFile string
	viper   *viper.Viper
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{viper: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "tmdb-ratelimit",
		Short: "TMDb proxy with an upstream rate limiter",
		Long: `tmdb-ratelimit keeps calls to The Movie Database API under its published quota.

It combines a token bucket, a sliding window cap and exponential backoff after
upstream errors, or shares a counter through Redis when several processes run.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default ./tmdb-ratelimit.yaml or ./config/tmdb-ratelimit.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")

	// Bind flags to viper
	_ = opts.viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = opts.viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(
		newServeCmd(opts),
		newFetchCmd(opts),
		newProbeCmd(opts),
	)

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}
