package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matheus3301/koichat/internal/logging"
	"github.com/matheus3301/koichat/internal/mockserver"
)

var rootCmd = &cobra.Command{
	Use:          "koichat-mock",
	Short:        "Local stand-in for the auction chat backend",
	Long:         "Serves the REST and websocket chat API from memory, seeded with demo accounts and history.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runMock,
}

var (
	flagAddr     string
	flagPageSize int
	flagNoSeed   bool
	flagLogLevel string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagAddr, "addr", "127.0.0.1:8080", "listen address")
	flags.IntVar(&flagPageSize, "page-size", 10, "messages per history page")
	flags.BoolVar(&flagNoSeed, "no-seed", false, "start without demo accounts and history")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMock(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewConsole("mock", logging.ParseLevel(flagLogLevel))
	defer func() { _ = logger.Sync() }()

	mock := mockserver.New(
		mockserver.WithPageSize(flagPageSize),
		mockserver.WithLogger(logger.Named("mock")),
	)
	if !flagNoSeed {
		mock.SeedDemo(time.Now())
		logger.Info("seeded demo data",
			zap.String("admin_user", mockserver.DemoAdminUser),
			zap.String("admin_password", mockserver.DemoAdminPassword))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/", mock.Handler())

	srv := &http.Server{
		Addr:              flagAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock backend listening", zap.String("addr", flagAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked websocket connections are closed by mock.Close.
	mock.Close()
	return srv.Shutdown(shutdownCtx)
}
