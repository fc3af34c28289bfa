package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout          = 5 * time.Second
	readHeaderTimeout        = 10 * time.Second
	listenErrorFormat        = "listen on %s: %w"
	errMessageListenAndServe = "listen and serve"
	errMessageShutdown       = "shutdown"
	logMessageServing        = "review server listening"
	logMessageStopped        = "review server stopped"
	logFieldAddress          = "address"
)

// Serve listens on address and serves handler until ctx is cancelled.
func Serve(ctx context.Context, address string, handler http.Handler, logger *zap.Logger) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf(listenErrorFormat, address, err)
	}
	return ServeListener(ctx, listener, handler, logger)
}

// ServeListener serves handler on listener until ctx is cancelled, then shuts
// the server down gracefully. The listener is closed on return.
func ServeListener(ctx context.Context, listener net.Listener, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpServer := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	group, groupContext := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info(logMessageServing, zap.String(logFieldAddress, listener.Addr().String()))
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: %w", errMessageListenAndServe, err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupContext.Done()
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownContext); err != nil {
			return fmt.Errorf("%s: %w", errMessageShutdown, err)
		}
		return nil
	})

	err := group.Wait()
	logger.Info(logMessageStopped)
	return err
}
