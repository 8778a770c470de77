package main

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	v1handlers "github.com/marginote/marginote/internal/api/v1/handlers"
	"github.com/marginote/marginote/internal/api/v1/routes"
	"github.com/marginote/marginote/internal/config"
	"github.com/marginote/marginote/internal/infrastructure/redis"
	"github.com/marginote/marginote/internal/llm"
	"github.com/marginote/marginote/internal/services/ask"
	"github.com/marginote/marginote/internal/services/session"
	"github.com/marginote/marginote/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer st.Close()

	client, err := llm.New(llm.Config{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.LLMTimeout,
		Retry: llm.RetryPolicy{
			MaxAttempts:       cfg.LLMMaxAttempts,
			InitialDelay:      cfg.LLMInitialDelay,
			MaxDelay:          cfg.LLMMaxDelay,
			BackoffMultiplier: cfg.LLMBackoffMultiplier,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build completion client")
	}

	sessions, err := session.NewService(cfg.SessionSecret, cfg.APIKey, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session service")
	}

	cache := redis.NewService(cfg.RedisURL, cfg.RedisPassword)
	if cache != nil {
		defer cache.Close()
	}

	askService := ask.NewService(st, client, cache)
	handlers := v1handlers.New(st, askService, sessions)

	router := mux.NewRouter()
	routes.RegisterV1Routes(router, cfg, handlers, sessions)

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("model", cfg.OpenAIModel).
		Bool("cache", cache != nil).
		Msg("Server starting")
	if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
		log.Fatal().Err(err).Msg("ListenAndServe error")
	}
}
