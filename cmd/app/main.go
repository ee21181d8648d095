package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"SigPull/internal/di"
	"SigPull/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	log.Info().
		Str("env", cfg.Environment).
		Str("backend", cfg.Backend.Type).
		Msg("starting sigpull")

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app initialization failed")
	}

	// blocks until SIGINT/SIGTERM
	if err := app.Run(); err != nil {
		log.Error().Err(err).Msg("app exited with error")
		os.Exit(1)
	}
}
