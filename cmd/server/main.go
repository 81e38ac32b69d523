package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/stickers/internal/api"
	"github.com/inamate/stickers/internal/checkout"
	"github.com/inamate/stickers/internal/config"
	"github.com/inamate/stickers/internal/interaction"
	"github.com/inamate/stickers/internal/live"
	mw "github.com/inamate/stickers/internal/middleware"
	"github.com/inamate/stickers/internal/scene"
	"github.com/inamate/stickers/internal/session"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checkoutService, err := checkout.NewService(cfg.CheckoutSecret, cfg.CheckoutTTL)
	if err != nil {
		slog.Error("create checkout service", "error", err)
		os.Exit(1)
	}

	// Sessions created over the API always use the server's canvas and limits.
	newSession := func(sc session.Config) (*session.Session, error) {
		if sc.CanvasWidth == 0 && sc.CanvasHeight == 0 {
			sc.CanvasWidth, sc.CanvasHeight = cfg.CanvasWidth, cfg.CanvasHeight
		}
		return session.New(sc, session.Options{
			Scene: scene.Options{
				MinSize:     cfg.MinStickerSize,
				MinOverlap:  cfg.MinOverlap,
				MaxStickers: cfg.MaxStickers,
			},
			Interaction: interaction.Options{
				HandleRadius:       cfg.HandleRadius,
				RotateHandleOffset: cfg.RotateHandleOffset,
				NudgeStep:          cfg.NudgeStep,
				NudgeStepLarge:     cfg.NudgeStepLarge,
				RotationSnap:       cfg.RotationSnap,
			},
			HistoryDepth:       cfg.HistoryDepth,
			DefaultStickerSize: cfg.DefaultStickerSize,
		})
	}

	registry := live.NewRegistry(newSession, cfg.SessionIdleTTL)
	registryDone := make(chan struct{})
	go func() {
		registry.Run(ctx)
		close(registryDone)
	}()

	handler := api.NewHandler(registry, checkoutService, originPatterns(cfg.Origins()))

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)

	handler.Register(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(cfg.Origins())(r), // preflights match no route
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Close sessions first so websocket clients disconnect.
		cancel()
		<-registryDone

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "canvas", fmt.Sprintf("%vx%v", cfg.CanvasWidth, cfg.CanvasHeight))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// originPatterns turns allowed origins into the host patterns the websocket
// origin check expects.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			patterns = append(patterns, o)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
