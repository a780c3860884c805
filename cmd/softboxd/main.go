package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/dokzlo13/softboxd/internal/app"
	"github.com/dokzlo13/softboxd/internal/config"
)

func main() {
	configPath := flag.StringP("config", "c", "softboxd.yaml", "Path to configuration file")
	resetConfig := flag.Bool("reset-config", false, "Clear the stored network config and boot into configuration mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	log.Info().Str("config", *configPath).Msg("Starting softboxd")

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	if *resetConfig {
		log.Info().Msg("Clearing stored network config (--reset-config)")
		if err := application.ResetNetworkConfig(); err != nil {
			log.Warn().Err(err).Msg("Failed to clear network config")
		}
	}

	if err := application.Run(app.SignalContext()); err != nil {
		log.Error().Err(err).Msg("softboxd stopped with error")
		os.Exit(1)
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
