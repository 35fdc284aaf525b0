package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/fiscalis"
)

func main() {
	envPath := flag.String("env", "", "Path to .env file (optional)")
	addr := flag.String("addr", ":8080", "Listen address")
	staticDir := flag.String("static-dir", "static", "Directory of static assets served at /static/ and /")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := fiscalis.LoadConfig(*envPath)

	svc, err := fiscalis.New(cfg)
	if err != nil {
		slog.Error("creating service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	apiKey := os.Getenv("FISCALIS_API_KEY")
	corsOrigins := os.Getenv("FISCALIS_CORS_ORIGINS")

	h := newHandler(svc, *staticDir)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(*staticDir))))
	mux.HandleFunc("GET /", h.handleIndex)

	// Middleware chain: recovery -> cors -> auth -> logging -> request-id -> mux
	var handler http.Handler = mux
	handler = requestIDMiddleware(handler)
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the chat stream is consumed server-side but may run long
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
