package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/koichat/internal/profile"
	"github.com/matheus3301/koichat/internal/rpc"
)

var rootCmd = &cobra.Command{
	Use:           "koichatctl",
	Short:         "Script a running koichat daemon",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagProfile string
	flagJSON    bool
	flagTimeout time.Duration
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagProfile, "profile", "", "profile name (overrides config default)")
	flags.BoolVar(&flagJSON, "json", false, "output in JSON format")
	flags.DurationVar(&flagTimeout, "timeout", 15*time.Second, "per-call timeout")

	rootCmd.AddCommand(
		newStatusCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newContactsCmd(),
		newOpenCmd(),
		newHistoryCmd(),
		newOlderCmd(),
		newSendCmd(),
		newCloseCmd(),
		newWatchCmd(),
		newProfilesCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// connect dials the daemon of the selected profile.
func connect() (*rpc.Client, string, error) {
	name := profile.Resolve(flagProfile)
	if err := profile.ValidateName(name); err != nil {
		return nil, "", err
	}
	socketPath := profile.SocketPath(name)
	if _, err := os.Stat(socketPath); err != nil {
		return nil, "", fmt.Errorf("daemon for profile %q is not running (start koichatd --profile %s)", name, name)
	}
	c, err := rpc.Dial(socketPath)
	if err != nil {
		return nil, "", fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
	}
	return c, name, nil
}

// withClient runs fn with a connected client and a call timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *rpc.Client) error) error {
	c, _, err := connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()
	return fn(ctx, c)
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
