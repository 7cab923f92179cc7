package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/flame5nz/flame5/internal/auth"
	"github.com/flame5nz/flame5/internal/cart"
	"github.com/flame5nz/flame5/internal/checkout"
	"github.com/flame5nz/flame5/internal/middleware"
	"github.com/flame5nz/flame5/internal/service"
	"github.com/flame5nz/flame5/internal/storage/sqlite"
	"github.com/flame5nz/flame5/pkg/logging"
)

const sessionDuration = 24 * time.Hour

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	logging.Setup()

	addr := getEnv("ADDR", ":8080")
	dbPath := getEnv("DB_PATH", "./data/flame5.db")
	staticPath := getEnv("STATIC_PATH", "./web")
	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		slog.Error("SESSION_SECRET is required")
		os.Exit(1)
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	cartStore, err := cart.New(context.Background(), store)
	if err != nil {
		slog.Error("Failed to load cart", "error", err)
		os.Exit(1)
	}

	sessions := auth.NewSessionManager(sessionSecret, sessionDuration)
	verifier := auth.NewVerifier(auth.LogSender{}, sessions)
	wizard := checkout.New(cartStore, verifier, store, store)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(), middleware.CORS())

	service.New(cartStore, wizard).Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Everything else is the static page; unknown paths fall back to
	// index.html so in-page anchors survive a reload.
	staticDir, err := filepath.Abs(staticPath)
	if err != nil {
		slog.Error("Failed to resolve static path", "error", err)
		os.Exit(1)
	}
	router.NoRoute(func(c *gin.Context) {
		urlPath := c.Request.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(staticDir, filepath.Clean(urlPath))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			c.File(filepath.Join(staticDir, "index.html"))
			return
		}
		c.File(filePath)
	})
	slog.Info("Serving static files", "path", staticDir)

	// h2c so HTTP/2 works without TLS behind the usual reverse proxy.
	handler := h2c.NewHandler(router, &http2.Server{})

	slog.Info("Server starting", "address", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
