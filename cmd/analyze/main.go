package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freeeve/tactics/internal/analysis"
	"github.com/freeeve/tactics/internal/engine"
	"github.com/freeeve/tactics/internal/logx"
	"github.com/freeeve/tactics/internal/store"
	"github.com/freeeve/tactics/internal/tactics"
)

func main() {
	defaultStockfish := "stockfish"
	if envPath := os.Getenv("STOCKFISH_PATH"); envPath != "" {
		defaultStockfish = envPath
	}

	var (
		dbDir         = flag.String("db", "./data/tactics", "Database directory")
		source        = flag.String("source", "", "Only analyze games from this source (empty = all)")
		maxGames      = flag.Int("max-games", 0, "Stop after this many games (0 = unlimited)")
		offset        = flag.Int("offset", 0, "Starting offset into the unanalyzed game stream")
		chunkSize     = flag.Int("chunk-size", 50, "Games fetched per page")
		workers       = flag.Int("workers", 2, "Worker count; one engine process per worker")
		stockfishPath = flag.String("stockfish", defaultStockfish, "Path to UCI engine executable")
		depth         = flag.Int("depth", 12, "Engine search depth per position")
		multiPV       = flag.Int("multipv", 1, "Candidate lines requested per position")
		hashMB        = flag.Int("hash", 128, "Engine hash MB per worker")
		threads       = flag.Int("threads", 1, "Engine threads per worker")
		moveTimeout   = flag.Duration("move-timeout", 30*time.Second, "Hard cap per engine call")
		skipPlies     = flag.Int("skip-plies", 12, "Opening plies excluded from analysis")
		severity      = flag.String("severity", "coarse", "Severity preset: coarse or fine")
		logLevel      = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	logger := logx.NewLogger(*logLevel)

	preset, err := tactics.ParsePreset(*severity)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid severity preset")
	}

	st, err := store.Open(*dbDir)
	if err != nil {
		logger.Fatal().Err(err).Str("db", *dbDir).Msg("open store")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher, err := analysis.New(analysis.Config{
		Logger: logger.With().Str("component", "dispatcher").Logger(),
		NewEvaluator: func(workerID int) (analysis.Evaluator, error) {
			return engine.New(engine.Config{
				Path:        *stockfishPath,
				Logger:      logger.With().Int("worker_id", workerID).Logger(),
				Depth:       *depth,
				MultiPV:     *multiPV,
				HashMB:      *hashMB,
				Threads:     *threads,
				MoveTimeout: *moveTimeout,
			})
		},
		Source:    *source,
		Offset:    *offset,
		MaxGames:  *maxGames,
		ChunkSize: *chunkSize,
		Workers:   *workers,
		SkipPlies: *skipPlies,
		Preset:    preset,
	}, st)
	if err != nil {
		logger.Fatal().Err(err).Msg("create dispatcher")
	}

	summary, err := dispatcher.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}

	logger.Info().
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("no_findings", summary.NoFindings).
		Int("moves_updated", summary.MovesUpdated).
		Int("moves_unmatched", summary.MovesUnmatched).
		Int("findings", summary.Findings).
		Msg("run summary")
}
