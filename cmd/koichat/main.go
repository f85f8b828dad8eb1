package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/config"
	"github.com/matheus3301/koichat/internal/logging"
	"github.com/matheus3301/koichat/internal/profile"
	"github.com/matheus3301/koichat/internal/tui"
	"github.com/matheus3301/koichat/internal/tui/client"
)

var rootCmd = &cobra.Command{
	Use:          "koichat",
	Short:        "Terminal admin chat for the koi auction",
	Long:         "Opens the chat UI for a profile, starting its daemon if none is running.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runTUI,
}

var (
	flagProfile  string
	flagLogLevel string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagProfile, "profile", "", "profile name (overrides config default)")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level for the UI and an auto-started daemon")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTUI(_ *cobra.Command, _ []string) error {
	profileName := profile.Resolve(flagProfile)
	if err := profile.ValidateName(profileName); err != nil {
		return err
	}

	cfg, err := config.LoadEffective(profile.ConfigPath())
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger, err := logging.NewFile(profile.TUILogPath(profileName), profileName, logging.ParseLevel(flagLogLevel))
	if err != nil {
		return fmt.Errorf("open ui log: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	socketPath := profile.SocketPath(profileName)
	if !client.Probe(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", profileName)
	}
	c, err := client.Ensure(profileName, socketPath, flagLogLevel, 10*time.Second)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	logger.Info("ui starting", zap.String("socket", socketPath))
	app := tui.NewApp(c, profileName, loc, logger)
	return app.Run()
}
