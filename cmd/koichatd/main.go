package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/daemon"
	"github.com/matheus3301/koichat/internal/profile"
)

var rootCmd = &cobra.Command{
	Use:          "koichatd",
	Short:        "koichat profile daemon",
	Long:         "Runs the chat core for one profile and serves it on the profile's Unix socket.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runDaemon,
}

var (
	flagProfile  string
	flagLogLevel string
	flagConfig   string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagProfile, "profile", "", "profile name (overrides config default)")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&flagConfig, "config", "", "config file (default ~/.koichat/config.toml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(_ *cobra.Command, _ []string) error {
	profileName := profile.Resolve(flagProfile)
	if err := profile.ValidateName(profileName); err != nil {
		return err
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: profileName,
			ConfigPath:  flagConfig,
			LogLevel:    flagLogLevel,
		}),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zap.DebugLevel)
			return l
		}),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("start daemon for profile %q: %w", profileName, err)
	}

	app.Run()
	return nil
}
