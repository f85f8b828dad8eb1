package daemon

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/chat"
	"github.com/matheus3301/koichat/internal/config"
	"github.com/matheus3301/koichat/internal/lock"
	"github.com/matheus3301/koichat/internal/mockserver"
	"github.com/matheus3301/koichat/internal/profile"
	"github.com/matheus3301/koichat/internal/rpc"
)

// testHome points KOICHAT_HOME at a short /tmp directory and writes a config
// that targets a fresh mock backend.
func testHome(t *testing.T) (home, configPath string) {
	t.Helper()
	// Use /tmp for short socket paths (macOS 104-char limit).
	home, err := os.MkdirTemp("/tmp", "koichat-d-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(home) })
	t.Setenv(profile.EnvHome, home)
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvRealtimeURL, "")

	mock := mockserver.New()
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(func() {
		mock.Close()
		ts.Close()
	})
	mock.AddUser(chat.Contact{ID: 1, FullName: "Koi Admin", Role: "Admin", Status: chat.StatusActive}, "admin", "pw")

	cfg := config.Default()
	cfg.Backend.APIURL = ts.URL
	cfg.Backend.RealtimeURL = config.DeriveRealtimeURL(ts.URL)
	configPath = filepath.Join(home, "config.toml")
	if err := config.Save(configPath, cfg); err != nil {
		t.Fatal(err)
	}
	return home, configPath
}

func startApp(t *testing.T, p Params) *fx.App {
	t.Helper()
	app := fx.New(Module(p), fx.NopLogger)
	if err := app.Err(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return app
}

func stopApp(t *testing.T, app *fx.App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestDaemonLifecycle(t *testing.T) {
	_, configPath := testHome(t)
	p := Params{ProfileName: "test", ConfigPath: configPath, LogLevel: "error"}

	app := startApp(t, p)

	socketPath := profile.SocketPath(p.ProfileName)
	info, err := os.Stat(socketPath)
	if err != nil {
		t.Fatalf("socket not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket perm = %o, want 600", perm)
	}
	if pid, ok := lock.Holder(profile.Dir(p.ProfileName)); !ok || pid != os.Getpid() {
		t.Errorf("Holder() = %d, %v; want %d, true", pid, ok, os.Getpid())
	}

	client, err := rpc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := client.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if st.Profile != "test" || st.LoggedIn {
		t.Errorf("status = %+v, want signed-out profile test", st)
	}

	if _, err := client.Login(ctx, "admin", "pw"); err != nil {
		t.Fatalf("Login error = %v", err)
	}

	stopApp(t, app)
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket left behind after stop: %v", err)
	}
	if _, ok := lock.Holder(profile.Dir(p.ProfileName)); ok {
		t.Error("lock still held after stop")
	}
}

// TestRestartRestoresLogin verifies that stored credentials sign the daemon
// back in on the next start.
func TestRestartRestoresLogin(t *testing.T) {
	_, configPath := testHome(t)
	p := Params{ProfileName: "restore", ConfigPath: configPath, LogLevel: "error"}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app := startApp(t, p)
	client, err := rpc.Dial(profile.SocketPath(p.ProfileName))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Login(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}
	_ = client.Close()
	stopApp(t, app)

	app = startApp(t, p)
	defer stopApp(t, app)
	client, err = rpc.Dial(profile.SocketPath(p.ProfileName))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	st, err := client.GetStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.LoggedIn || st.Account == nil || st.Account.UserID != 1 {
		t.Errorf("status after restart = %+v, want logged in as 1", st)
	}
}

// TestSecondDaemonRefused verifies the profile lock keeps a second daemon
// from starting on the same profile.
func TestSecondDaemonRefused(t *testing.T) {
	_, configPath := testHome(t)
	p := Params{ProfileName: "solo", ConfigPath: configPath, LogLevel: "error"}

	app := startApp(t, p)
	defer stopApp(t, app)

	other := fx.New(Module(Params{ProfileName: "solo", ConfigPath: configPath, SocketPath: filepath.Join(profile.Dir("solo"), "other.sock"), LogLevel: "error"}), fx.NopLogger)
	if err := other.Err(); err == nil {
		t.Fatal("second daemon started on a locked profile")
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{ProfileName: "fxtest"})); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

func TestNewServerUsesSocketOverride(t *testing.T) {
	tmpDir, err := os.MkdirTemp("/tmp", "koichat-srv-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	socketPath := filepath.Join(tmpDir, "d.sock")
	p := Params{ProfileName: "srvtest", SocketPath: socketPath}
	srv, err := NewServer(p, zap.NewNop(), rpc.NewService(rpc.Deps{Profile: "srvtest"}))
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}

	// Verify socket was created inside the temp dir (not ~/.koichat).
	if _, statErr := os.Stat(socketPath); statErr != nil {
		t.Fatalf("socket not created at %s: %v", socketPath, statErr)
	}
	srv.Stop(context.Background())
}

func TestNewServerRejectsLongSocket(t *testing.T) {
	socketPath := filepath.Join("/tmp", strings.Repeat("s", 100), "d.sock")
	if _, err := NewServer(Params{ProfileName: "long", SocketPath: socketPath}, zap.NewNop(), rpc.NewService(rpc.Deps{Profile: "long"})); err == nil {
		t.Fatal("NewServer() accepted a socket path longer than sun_path")
	}
}
