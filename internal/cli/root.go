// Package cli implements the radio-sync command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skidoodle/radio-sync/internal/config"
	"github.com/skidoodle/radio-sync/internal/logging"
	"github.com/skidoodle/radio-sync/internal/remote"
)

const appName = "radio-sync"

var v = viper.New()

func init() {
	rootCmd.PersistentFlags().String("config", "", "Read settings from this file (yaml, toml or json)")

	rootCmd.PersistentFlags().String("api", "", "Base URL of the player service")
	lo.Must0(v.BindPFlag(config.APIURL, rootCmd.PersistentFlags().Lookup("api")))

	rootCmd.PersistentFlags().String("token", "", "Bearer token for the player service")
	lo.Must0(v.BindPFlag(config.APIToken, rootCmd.PersistentFlags().Lookup("token")))

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	lo.Must0(v.BindPFlag(config.LogLevel, rootCmd.PersistentFlags().Lookup("log-level")))

	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	lo.Must0(v.BindPFlag(config.LogFormat, rootCmd.PersistentFlags().Lookup("log-format")))
	lo.Must0(rootCmd.RegisterFlagCompletionFunc("log-format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{logging.FormatText, logging.FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	}))
}

// rootCmd defines the entry point of radio-sync.
var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Keep a local view of a shared radio player in sync",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		file := lo.Must(cmd.Flags().GetString("config"))
		if err := config.Setup(v, file); err != nil {
			return err
		}
		return logging.Setup(v.GetString(config.LogLevel), v.GetString(config.LogFormat), os.Stderr)
	},
}

// Execute runs the command named on the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		handleErr(err)
	}
}

func handleErr(err error) {
	if err != nil {
		log.WithError(err).Debug("command failed")
		_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", failStyle.Render("✗"), strings.Trim(err.Error(), " \n"))
		os.Exit(1)
	}
}

// loadConfig is called by every command after the persistent pre-run set up
// viper.
func loadConfig() (*config.Config, error) {
	return config.Load(v)
}

// remoteClient builds a client of the player service from the configuration.
func remoteClient(ctx context.Context, cfg *config.Config) *remote.Client {
	return remote.NewClient(ctx, cfg.API.URL, cfg.API.Token)
}

// commandContext bounds one-shot commands.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 15*time.Second)
}
