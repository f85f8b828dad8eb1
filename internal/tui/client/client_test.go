package client

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProbeMissingSocket(t *testing.T) {
	if Probe(filepath.Join(t.TempDir(), "none.sock")) {
		t.Error("Probe() = true for a missing socket")
	}
}

func TestProbeSilentListener(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "koichat-cl-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	sock := filepath.Join(dir, "d.sock")
	lis, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lis.Close() }()
	// Accept and hang up: not a gRPC server.
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	if Probe(sock) {
		t.Error("Probe() = true for a socket that does not speak gRPC")
	}
	if WaitForDaemon(sock, 500*time.Millisecond) {
		t.Error("WaitForDaemon() = true for a dead daemon")
	}
}
