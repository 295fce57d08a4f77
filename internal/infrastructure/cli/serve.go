package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pulse/internal/infrastructure/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pulse HTTP API",
	RunE:  runServeCmd,
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              svc.cfg.Addr,
		Handler:           httpapi.New(svc.events, svc.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		svc.logger.Info("pulse API listening", "addr", svc.cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	svc.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
