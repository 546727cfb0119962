package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tyrowin/securetalk/internal/api"
	"github.com/Tyrowin/securetalk/internal/config"
	"github.com/Tyrowin/securetalk/internal/server"
	"github.com/Tyrowin/securetalk/internal/session"
	"github.com/Tyrowin/securetalk/internal/store"
	"github.com/Tyrowin/securetalk/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := logger.Init(logger.Options{})
		l.Fatal().Err(err).Msg("loading configuration")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening database")
	}
	defer st.Close()

	sessions := session.NewStore()
	hub := server.NewHub(cfg, st, sessions, log)
	go hub.Run()

	e := api.NewRouter(st, sessions, hub, log)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("hub shutdown")
	}

	log.Info().Msg("shutdown complete")
}
