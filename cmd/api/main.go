package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/novaops/nova-control/internal/app"
	"github.com/novaops/nova-control/internal/config"
	"github.com/novaops/nova-control/internal/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	log := logger.New()
	cfg := config.LoadConfig()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("startup failed")
	}
	defer application.Close()

	if err := application.Retention.Start(); err != nil {
		log.WithError(err).Fatal("retention scheduler failed to start")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return application.Server.Shutdown(shutdownCtx)
	})

	log.Info("nova-control is running")
	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server exited with error")
	}
}
