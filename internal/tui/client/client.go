// Package client finds or starts the profile daemon the TUI talks to.
package client

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/koichat/internal/rpc"
)

// DaemonBinary is the daemon executable started on demand.
const DaemonBinary = "koichatd"

// Probe reports whether a daemon is running and responsive on socketPath.
func Probe(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	c, err := rpc.Dial(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.GetStatus(ctx)
	return err == nil
}

// StartDaemon launches the daemon for profileName in the background.
// A binary next to the running executable is preferred over $PATH.
func StartDaemon(profileName, logLevel string) error {
	bin := DaemonBinary
	if executable, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(executable), DaemonBinary)
		if _, err := os.Stat(sibling); err == nil {
			bin = sibling
		}
	}

	args := []string{"--profile", profileName}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}
	cmd := exec.Command(bin, args...)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// WaitForDaemon polls with a real status call until the daemon answers or
// timeout passes.
func WaitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if Probe(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

// Ensure makes sure a daemon serves socketPath, starting one if needed, and
// returns a connected client.
func Ensure(profileName, socketPath, logLevel string, timeout time.Duration) (*rpc.Client, error) {
	if !Probe(socketPath) {
		if err := StartDaemon(profileName, logLevel); err != nil {
			return nil, fmt.Errorf("start daemon: %w", err)
		}
		if !WaitForDaemon(socketPath, timeout) {
			return nil, fmt.Errorf("daemon for profile %q did not become ready", profileName)
		}
	}
	return rpc.Dial(socketPath)
}
