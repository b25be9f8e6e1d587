// Package main provides the MCP server entry point for prepme.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mike-a-ellis/prepme-rag/internal/config"
	mcpserver "github.com/mike-a-ellis/prepme-rag/internal/mcp"
	"github.com/mike-a-ellis/prepme-rag/internal/session"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(os.Getenv("PREPME_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	port := getEnv("PORT", "8080")
	serverMode := getEnv("SERVER_MODE", "false") == "true"

	// Stdout carries the MCP stream in stdio mode, so logs always go to stderr
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	sess, err := session.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to open session: %v", err)
	}
	defer sess.Close()

	if err := cfg.RequireGeneration(); err != nil {
		logger.Warn("ask_documents is unavailable", "error", err)
	}

	// Create MCP server
	server := mcpserver.NewServer(&mcpserver.Config{
		Backend:     sess,
		DefaultTopK: cfg.TopK,
	})

	// /mcp, /health and the landing page
	mux := mcpserver.NewMux(server, sess, &mcpserver.HTTPHandlerOptions{Stateless: true})
	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if serverMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients
	// Also start HTTP health endpoint in background for local testing
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting prepme MCP server (stdio mode)", "store", sess.Config().Store.Backend)
	if err := server.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
