package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to stop the reaper loop
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Drain in-flight requests before the stores go away
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	a.feed.Close()

	err = a.hot.Close()
	if err != nil {
		a.logger.Error("hot-store-close-error", zap.Error(err))
	}

	err = a.durable.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.catalogCache.Close()

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
