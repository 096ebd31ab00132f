package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"auth-portal/app"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
