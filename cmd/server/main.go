package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/spell-duel-backend/internal/app"
	"github.com/DoyleJ11/spell-duel-backend/internal/broadcast"
	"github.com/DoyleJ11/spell-duel-backend/internal/history"
	"github.com/DoyleJ11/spell-duel-backend/internal/httpapi"
	"github.com/DoyleJ11/spell-duel-backend/internal/hub"
	"github.com/DoyleJ11/spell-duel-backend/internal/registry"
	"github.com/DoyleJ11/spell-duel-backend/internal/room"
	"github.com/DoyleJ11/spell-duel-backend/internal/session"
	"github.com/DoyleJ11/spell-duel-backend/internal/ws"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := app.NewLogger(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}

	os.Exit(exitCode(logger, run(cfg, logger)))
}

// exitCode logs a failed run and flushes the logger before the process exits.
func exitCode(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("server exited", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg app.Config, logger *zap.Logger) (err error) {
	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rec history.Recorder = history.NopRecorder{}
	var matches httpapi.MatchLister
	if cfg.DatabaseURL != "" {
		pg, perr := history.OpenPostgres(cfg.DatabaseURL)
		if perr != nil {
			return perr
		}
		defer func() { err = multierr.Append(err, pg.Close()) }()
		rec, matches = pg, pg
		logger.Info("match history enabled")
	}
	writer := history.NewWriter(rec, cfg.HistoryQueue, logger.Named("history"))

	reg := registry.New()
	bc := broadcast.New(reg, logger.Named("broadcast"))
	h := hub.NewHub(ctx, room.Deps{Registry: reg, Broadcaster: bc, History: writer, Log: logger})
	sm := session.New(reg, h, bc, logger, cfg.DefaultRuleset)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:       h,
			Sessions:  sm,
			Matches:   matches,
			CORSAllow: cfg.CORSAllow,
			WS: ws.Options{
				ReadTimeout:    cfg.WSReadTimeout,
				WriteTimeout:   cfg.WSWriteTimeout,
				PingInterval:   cfg.WSPingInterval,
				OutboxSize:     cfg.OutboxSize,
				OriginPatterns: cfg.OriginPatterns(),
			},
			Log: logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		// websocket handlers hijack their connections; this ends them on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddr), zap.String("ruleset", cfg.DefaultRuleset))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return writer.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutdown start")

		shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer stop()
		err := srv.Shutdown(shutdownCtx)
		h.Shutdown()
		return err
	})

	err = g.Wait()
	logger.Info("server shutdown complete")
	return err
}
