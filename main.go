package main

import (
	"context"
	"io/fs"
	"log"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duckpond/duckpond/pkg/config"
	"github.com/duckpond/duckpond/pkg/dispatch"
	"github.com/duckpond/duckpond/pkg/handlers"
	"github.com/duckpond/duckpond/pkg/mcp"
	mcptools "github.com/duckpond/duckpond/pkg/mcp/tools"
	"github.com/duckpond/duckpond/pkg/metadata"
	"github.com/duckpond/duckpond/pkg/middleware"
	"github.com/duckpond/duckpond/pkg/store"
	"github.com/duckpond/duckpond/ui"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	st, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer st.Close()

	meta := metadata.NewService(st, logger)
	if err := meta.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("Failed to prepare metadata table", zap.Error(err))
	}

	dispatcher := dispatch.New(st, meta, cfg.DefaultRowLimit, cfg.MaxRowLimit, logger)

	mcpServer := mcp.NewServer("duckpond", cfg.Version, logger)
	mcptools.RegisterAll(mcpServer.MCP(), &mcptools.Deps{
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewTablesHandler(st, meta, cfg, logger).RegisterRoutes(mux)
	handlers.NewUploadHandler(st, meta, cfg, logger).RegisterRoutes(mux)
	handlers.NewDownloadHandler(st, logger).RegisterRoutes(mux)
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)

	distFS, err := fs.Sub(ui.DistFS(), "dist")
	if err != nil {
		logger.Fatal("Failed to mount embedded UI", zap.Error(err))
	}
	mux.Handle("/", http.FileServerFS(distFS))

	handler := middleware.RequestLogger(logger)(mux)
	addr := cfg.BindAddr + ":" + cfg.Port

	logger.Info("Starting duckpond",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.DatabasePath))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// buildLogger constructs the zap logger from configuration: development
// encoding locally, JSON elsewhere.
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var zapCfg zap.Config
	if cfg.Env == "local" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
