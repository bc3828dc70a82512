package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"Naly/internal/di"
	"Naly/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	boot := log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("config load failed")
	}
	boot.Info().
		Str("env", cfg.Environment).
		Str("llm", cfg.LLM.Provider).
		Bool("kafka", cfg.Kafka.Enabled).
		Bool("clickhouse", cfg.ClickHouse.Enabled).
		Bool("redis", cfg.Redis.Enabled).
		Msg("config loaded")

	app, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Fatal().Err(err).Msg("app initialization failed")
	}

	if err := app.Run(); err != nil {
		boot.Error().Err(err).Msg("app error")
		os.Exit(1)
	}
}
