package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/chunker"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/config"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/embedding"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/helper"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/parser"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/store"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	dryRun := flag.Bool("dry-run", false, "Extract and chunk only, do not embed or persist")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ch := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.MinChunkChars)

	if *dryRun {
		runDryRun(cfg, ch)
		return
	}

	apiKey, err := cfg.APIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Error resolving embedding credential")
	}

	client, err := embedding.NewClient(&cfg.Embedder, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	builder := store.NewBuilder(cfg.StorePath, ch, client)
	stats, err := builder.Run(context.Background(), cfg.Sources)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	log.Info().
		Int("documents", stats.Documents).
		Int("skipped_documents", stats.SkippedDocuments).
		Int("chunks", stats.Chunks).
		Int("skipped_chunks", stats.SkippedChunks).
		Str("store", cfg.StorePath).
		Msg("Ingestion complete")
}

type dryRunEntry struct {
	Source   string `json:"source"`
	Path     string `json:"path"`
	Chars    int    `json:"chars"`
	Windows  int    `json:"windows"`
	Retained int    `json:"retained"`
	Error    string `json:"error,omitempty"`
}

// runDryRun reports what ingestion would do without spending embedding calls.
func runDryRun(cfg *config.Config, ch chunker.Chunker) {
	report := make([]dryRunEntry, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		entry := dryRunEntry{Source: src.ID, Path: src.Path}
		raw, err := parser.Extract(src.Path)
		if err != nil {
			entry.Error = err.Error()
			report = append(report, entry)
			continue
		}
		text := parser.Normalize(raw)
		entry.Chars = len(text)
		for range ch.Windows(text) {
			entry.Windows++
		}
		for range ch.Chunks(text) {
			entry.Retained++
		}
		report = append(report, entry)
	}
	helper.PrettyPrint(report)
}
