package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kestrel-sir/api"
	"kestrel-sir/config"
	"kestrel-sir/core/store"
	"kestrel-sir/core/utils"
)

// Run wires the whole service together and blocks until shutdown.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := utils.NewLogger()
	defer logger.Sync()

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return err
	}

	composition, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}
	for _, w := range composition.workers {
		w.StartWithContext(ctx)
	}

	server := api.NewServer(cfg, composition.serverDeps, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, w := range composition.workers {
		_ = w.StopWithContext(shutdownCtx)
	}
	return httpServer.Shutdown(shutdownCtx)
}
