package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	router "github.com/dkeye/camrelay/internal/adapters/http"
	"github.com/dkeye/camrelay/internal/adapters/rtc"
	"github.com/dkeye/camrelay/internal/app"
	"github.com/dkeye/camrelay/internal/app/orch"
	"github.com/dkeye/camrelay/internal/config"
	"github.com/dkeye/camrelay/internal/core"
	"github.com/dkeye/camrelay/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("camrelay failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg)

	ice, err := rtc.NewClientConfig(cfg.ICEServers, cfg.ICETransportPolicy)
	if err != nil {
		return fmt.Errorf("ice config: %w", err)
	}

	reg := app.NewRegistry()
	promReg := metrics.NewRegistry()
	m := metrics.New(promReg, func() metrics.Stats {
		s := reg.Stats()
		return metrics.Stats{Cameras: s.Cameras, Viewers: s.Viewers}
	})
	o := orch.New(reg, core.NewHub(), app.SimplePolicy{}, m)

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, ICE: ice, Metrics: m, Gatherer: promReg})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("camrelay server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}

// setupLogger switches to JSON output in release mode and applies the
// configured level.
func setupLogger(cfg *config.Config) {
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
