// ABOUTME: Serve command: wires storage, hub, assistant, auth, and HTTP routes
// ABOUTME: Runs the server until the shutdown signal, then drains gracefully

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fatih/color"

	"github.com/2389/campus-chat/internal/api"
	"github.com/2389/campus-chat/internal/assistant"
	"github.com/2389/campus-chat/internal/auth"
	"github.com/2389/campus-chat/internal/config"
	"github.com/2389/campus-chat/internal/hub"
	"github.com/2389/campus-chat/internal/store"
	"github.com/2389/campus-chat/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Model:    %s\n", cfg.OpenAI.Model)
	fmt.Println()

	logger.Info("starting campus-chat",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	// Storage
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	// Core services
	h := hub.New(logger)
	gateway := assistant.NewOpenAIGateway(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.RequestTimeout)
	svc := assistant.NewService(st, gateway, logger)
	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	// HTTP surface: public routes at the top level, everything else behind
	// the auth middleware
	apiServer := api.NewServer(st, h, svc, verifier, cfg.Auth.TokenTTL, logger)
	wsServer := ws.NewServer(st, h, svc, logger)

	protected := http.NewServeMux()
	apiServer.RegisterRoutes(protected)
	wsServer.RegisterRoutes(protected)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	apiServer.RegisterPublicRoutes(mux)
	mux.Handle("/", auth.Middleware(st, verifier)(protected))

	server := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Closing the hub ends every live WebSocket writer; Shutdown then drains
	// the plain HTTP requests
	h.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
