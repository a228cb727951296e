package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/notnil/chess"

	"github.com/freeeve/tactics/internal/logx"
	"github.com/freeeve/tactics/internal/store"
)

func main() {
	defaultRatingMin := 0
	if envRating := os.Getenv("TACTICS_RATING_MIN"); envRating != "" {
		if rating, err := strconv.Atoi(envRating); err == nil {
			defaultRatingMin = rating
		}
	}

	var (
		dbDir     = flag.String("db", "./data/tactics", "Database directory")
		inputPath = flag.String("pgn", "", "Path to PGN file (supports .zst)")
		source    = flag.String("source", "main", "Provenance bucket for imported games")
		ratingMin = flag.Int("rating-min", defaultRatingMin, "Rating floor for games (0 = no filter)")
		maxGames  = flag.Int("max-games", 0, "Maximum games to import (0 = unlimited)")
		logLevel  = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: ingest --pgn <file.pgn[.zst]> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := logx.NewLogger(*logLevel)
	logger.Info().
		Str("pgn", *inputPath).
		Str("db", *dbDir).
		Str("source", *source).
		Int("rating_min", *ratingMin).
		Msg("starting ingest")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(*dbDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer st.Close()

	f, err := os.Open(*inputPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open pgn file")
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(*inputPath, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			logger.Fatal().Err(err).Msg("open zstd reader")
		}
		defer dec.Close()
		reader = dec
	}

	var imported, skipped, duplicates int64
	startTime := time.Now()
	lastLog := time.Now()

	scanner := chess.NewScanner(reader)

gameLoop:
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			logger.Info().Msg("interrupted, stopping ingest")
			break gameLoop
		default:
		}

		if *maxGames > 0 && imported >= int64(*maxGames) {
			logger.Info().Int64("games", imported).Msg("reached max games limit")
			break gameLoop
		}

		game := scanner.Next()
		if game == nil {
			continue
		}

		white := tagValue(game, "White")
		black := tagValue(game, "Black")
		if *ratingMin > 0 {
			if parseRating(tagValue(game, "WhiteElo")) < *ratingMin ||
				parseRating(tagValue(game, "BlackElo")) < *ratingMin {
				skipped++
				continue
			}
		}

		moves := game.Moves()
		positions := game.Positions()
		if len(moves) == 0 || len(positions) != len(moves)+1 {
			skipped++
			continue
		}

		result := game.Outcome().String()
		sans := make([]string, len(moves))
		recs := make([]store.MoveRecord, len(moves))
		san := chess.AlgebraicNotation{}
		uciNotation := chess.UCINotation{}
		for i, mv := range moves {
			sans[i] = san.Encode(positions[i], mv)
			color := store.ColorWhite
			if positions[i].Turn() == chess.Black {
				color = store.ColorBlack
			}
			recs[i] = store.MoveRecord{
				MoveNumber: i/2 + 1,
				Color:      color,
				FENBefore:  positions[i].String(),
				SAN:        sans[i],
				UCI:        uciNotation.Encode(positions[i], mv),
			}
		}

		rec := store.GameRecord{
			ID:     store.GameID(white, black, result, sans),
			Source: *source,
			White:  white,
			Black:  black,
			Result: result,
			PGN:    game.String(),
			Plies:  len(moves),
		}

		stored, err := st.PutGame(rec)
		if err != nil {
			logger.Fatal().Err(err).Str("game_id", rec.ID).Msg("store game")
		}
		if !stored {
			duplicates++
			continue
		}
		if err := st.PutMoveRecords(rec.ID, recs); err != nil {
			logger.Fatal().Err(err).Str("game_id", rec.ID).Msg("store move records")
		}
		imported++

		if time.Since(lastLog) > 10*time.Second {
			elapsed := time.Since(startTime)
			logger.Info().
				Int64("imported", imported).
				Int64("skipped", skipped).
				Int64("duplicates", duplicates).
				Float64("games_per_sec", float64(imported)/elapsed.Seconds()).
				Msg("ingest progress")
			lastLog = time.Now()
		}
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		logger.Error().Err(err).Msg("pgn scanner error")
	}

	elapsed := time.Since(startTime)
	logger.Info().
		Int64("imported", imported).
		Int64("skipped", skipped).
		Int64("duplicates", duplicates).
		Dur("elapsed", elapsed).
		Msg("ingest complete")
}

func tagValue(game *chess.Game, key string) string {
	if tp := game.GetTagPair(key); tp != nil {
		return tp.Value
	}
	return ""
}

func parseRating(s string) int {
	if s == "" || s == "?" || s == "-" {
		return 0
	}
	r, _ := strconv.Atoi(s)
	return r
}
