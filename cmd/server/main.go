package main

import (
	"flag"
	"log"
	"net/http"

	"motido/internal/config"
	"motido/internal/observability"
	"motido/internal/serverapp"
)

func main() {
	configPath := flag.String("config", "motido.yml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := observability.NewLogger("motido", nil, observability.ParseLevel(cfg.Logging.Level))

	handler, err := serverapp.NewHandler(serverapp.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	logger.Info("listening", "addr", cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, handler))
}
