package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// NewHTTPServer creates a configured HTTP server
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// SetupSignalHandler sets up OS signal handling for SIGINT and SIGTERM
func SetupSignalHandler() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

// WaitForSignal waits for termination signals and returns the received signal
func WaitForSignal(ch chan os.Signal) os.Signal {
	return <-ch
}

// Shutdownable is a component stopped during graceful shutdown.
type Shutdownable interface {
	Shutdown(ctx context.Context) error
}

// ShutdownAll stops components in order. Each one gets an equal share of
// timeout; the first error aborts the sequence.
func ShutdownAll(timeout time.Duration, components ...Shutdownable) error {
	if len(components) == 0 {
		return nil
	}
	share := timeout / time.Duration(len(components))
	for _, comp := range components {
		ctx, cancel := context.WithTimeout(context.Background(), share)
		err := comp.Shutdown(ctx)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}
