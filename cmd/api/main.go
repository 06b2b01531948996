package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"socialqueue/internal/app"
	"socialqueue/internal/config"
	"socialqueue/internal/observability"
)

func main() {
	_ = godotenv.Load()

	logger := observability.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load_config_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	runtime, err := app.Build(cfg, logger, app.Options{RunMigrations: true})
	if err != nil {
		logger.Error("bootstrap_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer runtime.Close()

	logger.Info("server_start", map[string]any{"addr": runtime.Addr, "env": cfg.Env})
	if err := http.ListenAndServe(runtime.Addr, runtime.Handler); err != nil {
		logger.Error("server_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
