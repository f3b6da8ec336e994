package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
)

const (
	signalChannelBufferSize = 1
	defaultShutdownTimeout  = 30 * time.Second
)

// Drainer refuses new background work and blocks until started work has finished.
type Drainer interface {
	Drain()
}

// StartAsync runs srv in a goroutine. The channel receives a non-nil error only
// if the server stops for a reason other than Shutdown.
func StartAsync(srv *http.Server, log logger.Logger) <-chan error {
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()
	return errChan
}

// RunUntilInterrupt runs the server until interrupted by signal or error.
func RunUntilInterrupt(log logger.Logger, srv *http.Server, runs Drainer, errChan <-chan error) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case serverErr, ok := <-errChan:
		if ok && serverErr != nil {
			log.Error("Server error", logger.Error(serverErr))
			return fmt.Errorf("server error: %w", serverErr)
		}
		return nil
	case sig := <-sigChan:
		return Shutdown(log, srv, runs, sig)
	}
}

// Shutdown stops accepting requests, then waits for in-flight runs.
func Shutdown(log logger.Logger, srv *http.Server, runs Drainer, sig os.Signal) error {
	log.Info("Shutdown signal received", logger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	log.Info("Stopping HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Failed to stop server", logger.Error(err))
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if runs != nil {
		log.Info("Waiting for running tasks")
		runs.Drain()
	}

	log.Info("Server stopped successfully")
	return nil
}
