// Package analysis drives the tactical-analysis pipeline: it pages through
// unanalyzed games, fans them out to a bounded pool of workers that each own
// one engine process, and commits results as they complete.
package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/tactics/internal/engine"
	"github.com/freeeve/tactics/internal/store"
	"github.com/freeeve/tactics/internal/tactics"
)

// Evaluator is the per-worker engine surface. An evaluator is stateful and
// owned by exactly one worker for its lifetime.
type Evaluator interface {
	Evaluate(ctx context.Context, fen string) ([]engine.Line, error)
	Close() error
}

// EvaluatorFactory builds the evaluator for one worker. Factories let tests
// substitute a scripted evaluator for the real engine process.
type EvaluatorFactory func(workerID int) (Evaluator, error)

// Config configures a dispatcher run.
type Config struct {
	Logger       zerolog.Logger
	NewEvaluator EvaluatorFactory
	Source       string // provenance bucket to draw from ("" = all)
	Offset       int    // starting offset into the filtered game stream
	MaxGames     int    // stop after submitting this many games (0 = unlimited)
	ChunkSize    int    // games fetched per page
	Workers      int    // pool size; one engine process per worker
	SkipPlies    int    // opening plies excluded from analysis
	Preset       tactics.Preset
}

// Summary is the user-visible outcome of one run.
type Summary struct {
	Attempted      int
	Succeeded      int
	Failed         int
	NoFindings     int // games marked analyzed with zero tactical findings
	MovesUpdated   int
	MovesUnmatched int
	Findings       int // moves that received a tag other than none
}

// Dispatcher orchestrates one analysis run over the game store.
type Dispatcher struct {
	cfg Config
	log zerolog.Logger
	st  *store.Store
}

// New validates the config and applies defaults.
func New(cfg Config, st *store.Store) (*Dispatcher, error) {
	if cfg.NewEvaluator == nil {
		return nil, fmt.Errorf("evaluator factory required")
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 50
	}
	return &Dispatcher{cfg: cfg, log: cfg.Logger, st: st}, nil
}

// Run executes the paging loop until the source is exhausted, MaxGames is
// reached, or ctx is cancelled. Cancellation stops new submissions but lets
// in-flight results drain and commit. Returns a non-nil error only for setup
// failures; per-game failures are logged, counted, and left pending for the
// next run.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	snapshot, err := d.st.AnalyzedSet()
	if err != nil {
		return Summary{}, fmt.Errorf("load analyzed set: %w", err)
	}

	jobs := make(chan store.GameRecord, d.cfg.ChunkSize)
	results := make(chan gameResult)

	var pool errgroup.Group
	started := 0
	for i := 0; i < d.cfg.Workers; i++ {
		ev, err := d.cfg.NewEvaluator(i)
		if err != nil {
			d.log.Error().Err(err).Int("worker_id", i).Msg("failed to create evaluator")
			continue
		}
		started++
		w := &worker{
			id:        i,
			log:       d.log.With().Int("worker_id", i).Logger(),
			eval:      ev,
			skipPlies: d.cfg.SkipPlies,
			preset:    d.cfg.Preset,
		}
		pool.Go(func() error {
			defer w.eval.Close()
			for g := range jobs {
				results <- w.analyzeGame(ctx, g)
			}
			return nil
		})
	}
	if started == 0 {
		close(jobs)
		pool.Wait()
		close(results)
		return Summary{}, fmt.Errorf("no evaluator could be started")
	}

	d.log.Info().
		Str("source", d.cfg.Source).
		Int("workers", started).
		Int("chunk_size", d.cfg.ChunkSize).
		Int("offset", d.cfg.Offset).
		Int("max_games", d.cfg.MaxGames).
		Int("already_analyzed", len(snapshot)).
		Str("severity", d.cfg.Preset.String()).
		Msg("dispatcher started")

	// Single collector: results arrive in completion order, and committing
	// from one goroutine keeps a single writer per game.
	var summary Summary
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			d.commit(res, &summary)
		}
	}()

	var pageErr error
	offset := d.cfg.Offset
	processed := 0

pageLoop:
	for d.cfg.MaxGames == 0 || processed < d.cfg.MaxGames {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("cancelled, draining in-flight games")
			break pageLoop
		default:
		}

		limit := d.cfg.ChunkSize
		if d.cfg.MaxGames > 0 && d.cfg.MaxGames-processed < limit {
			limit = d.cfg.MaxGames - processed
		}
		page, err := d.st.UnanalyzedPage(snapshot, offset, limit, d.cfg.Source)
		if err != nil {
			pageErr = fmt.Errorf("fetch page: %w", err)
			break
		}
		if len(page) == 0 {
			d.log.Info().Int("processed", processed).Msg("game source exhausted")
			break
		}

		for _, g := range page {
			// Blocks when every worker is busy: the intended throttle
			// against buffering more than one page in flight.
			select {
			case jobs <- g:
			case <-ctx.Done():
				d.log.Info().Msg("cancelled, draining in-flight games")
				break pageLoop
			}
		}
		offset += len(page)
		processed += len(page)
	}

	close(jobs)
	pool.Wait()
	close(results)
	<-collectorDone

	d.log.Info().
		Int("attempted", summary.Attempted).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("no_findings", summary.NoFindings).
		Int("moves_updated", summary.MovesUpdated).
		Int("moves_unmatched", summary.MovesUnmatched).
		Int("findings", summary.Findings).
		Msg("dispatcher finished")

	return summary, pageErr
}

// commit applies one completed game: move updates first, marker after. A
// game whose analysis failed is left pending for a future run; a game with
// zero findings is still a completed analysis.
func (d *Dispatcher) commit(res gameResult, sum *Summary) {
	sum.Attempted++

	if res.err != nil {
		sum.Failed++
		d.log.Warn().Err(res.err).Str("game_id", res.gameID).Msg("analysis failed, game left pending")
		return
	}

	if len(res.updates) > 0 {
		matched, unmatched, err := d.st.ApplyMoveUpdates(res.gameID, res.updates)
		if err != nil {
			sum.Failed++
			d.log.Error().Err(err).Str("game_id", res.gameID).Msg("result write failed, game left pending")
			return
		}
		sum.MovesUpdated += matched
		sum.MovesUnmatched += unmatched
		if unmatched > 0 {
			d.log.Warn().
				Str("game_id", res.gameID).
				Int("unmatched", unmatched).
				Msg("updates without a matching move record")
		}
	}

	if err := d.st.MarkAnalyzed(res.gameID); err != nil {
		sum.Failed++
		d.log.Error().Err(err).Str("game_id", res.gameID).Msg("mark analyzed failed, game left pending")
		return
	}

	sum.Succeeded++
	sum.Findings += res.findings
	if res.findings == 0 {
		sum.NoFindings++
	}

	d.log.Debug().
		Str("game_id", res.gameID).
		Int("moves", len(res.updates)).
		Int("findings", res.findings).
		Msg("game committed")
}
