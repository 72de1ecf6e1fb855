// Command server runs the asr-runner HTTP service: the OpenAI-compatible
// transcription surface backed by the bounded-queue scheduler and the
// release-before-load model swap protocol.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/austery/asr-runner/pkg/envconfig"
	"github.com/austery/asr-runner/pkg/inference/factory"
	"github.com/austery/asr-runner/pkg/inference/registry"
	"github.com/austery/asr-runner/pkg/logging"
	"github.com/austery/asr-runner/pkg/metrics"
	"github.com/austery/asr-runner/pkg/middleware"
	"github.com/austery/asr-runner/pkg/scheduling"
)

func initLogger() *slog.Logger {
	return logging.NewLogger(envconfig.LogLevel())
}

var log = initLogger()

// exitFunc is used for Fatal-like exits.
var exitFunc = func(code int) { os.Exit(code) }

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	for name, v := range envconfig.AsMap() {
		log.Debug("config", "name", name, "value", v.Value)
	}

	reg := registry.New()

	initialSpec, err := resolveInitialSpec(reg)
	if err != nil {
		log.Error("failed to resolve startup model", "error", err)
		exitFunc(1)
		return
	}

	sched := scheduling.New(log, reg, factory.New(log), envconfig.MaxQueueSize())
	if err := sched.Start(ctx, initialSpec); err != nil {
		log.Error("failed to start scheduler", "error", err)
		exitFunc(1)
		return
	}
	log.Info("scheduler started", "model", initialSpec.Alias, "engine", initialSpec.EngineType)

	mux := http.NewServeMux()
	handler := scheduling.NewHandler(log, sched, reg)
	handler.RegisterRoutes(mux)

	if !envconfig.DisableMetrics() {
		mux.Handle("GET /metrics", metrics.NewHandler(sched))
		log.Info("metrics endpoint enabled", "path", "/metrics")
	}

	var rootHandler http.Handler = mux
	rootHandler = middleware.CorsMiddleware(envconfig.AllowedOrigins(), rootHandler)

	addr := fmt.Sprintf("%s:%s", envconfig.Host(), envconfig.Port())
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           rootHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// workers coordinates the listener goroutine and the shutdown watcher:
	// whichever exits first cancels workerCtx for the other.
	workers, workerCtx := errgroup.WithContext(ctx)

	workers.Go(func() error {
		log.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	workers.Go(func() error {
		<-workerCtx.Done()
		log.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
			return httpServer.Close()
		}
		return nil
	})

	if err := workers.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	log.Info("waiting for scheduler to drain")
	sched.Stop()
	log.Info("asr-runner stopped")
}

// resolveInitialSpec determines the startup ModelSpec from ENGINE_TYPE and
// MODEL_ID. MODEL_ID is tried as a registry lookup first (alias or model
// id); if that fails, a spec is synthesised directly from ENGINE_TYPE so an
// operator can boot against an unregistered local model path.
func resolveInitialSpec(reg *registry.Registry) (registry.ModelSpec, error) {
	modelID := envconfig.ModelID()
	if spec, err := reg.Lookup(modelID); err == nil {
		return spec, nil
	}

	engineType := registry.EngineType(envconfig.EngineType())
	switch engineType {
	case registry.EngineFunASR, registry.EngineMLX:
		return registry.ModelSpec{
			Alias:       modelID,
			ModelID:     modelID,
			EngineType:  engineType,
			Description: "startup model (resolved at load time)",
		}, nil
	default:
		return registry.ModelSpec{}, fmt.Errorf("main: unrecognized ENGINE_TYPE %q and MODEL_ID %q is not a known alias", engineType, modelID)
	}
}
