package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/api"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/config"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/embedding"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/retrieval"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/store"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	// The credential is required up front, not lazily on the first search.
	apiKey, err := cfg.APIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Error resolving embedding credential")
	}

	client, err := embedding.NewClient(&cfg.Embedder, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	base := store.NewBase(cfg.StorePath)
	count, err := base.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading knowledge base")
	}
	if count == 0 {
		log.Warn().Msg("Knowledge base is empty; searches will return guidance until ingestion runs")
	}

	server := api.NewServer(api.ServerConfig{
		Retriever:      retrieval.NewRetriever(base, client),
		Base:           base,
		RequestTimeout: cfg.Server.RequestTimeout(),
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout() + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Retrieval server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
