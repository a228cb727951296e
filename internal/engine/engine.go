// Package engine wraps one long-lived UCI engine process behind a
// synchronous Evaluate call. A Client is stateful and owned by exactly one
// worker at a time; it is never safe for concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freeeve/uci"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidPosition means the FEN could not be parsed. No engine call is
	// made; the caller must not push the move at all.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrEngineUnavailable means the engine process crashed, desynced, or
	// exceeded the per-call timeout. The client restarts the process before
	// serving the next Evaluate.
	ErrEngineUnavailable = errors.New("engine unavailable")
)

// Kind discriminates how a Line's Value is to be read.
type Kind uint8

const (
	KindNone Kind = iota
	KindCentipawn
	KindMate
)

// MateValueCP anchors forced-mate scores on the centipawn scale so they can
// be compared against ordinary evaluations. A mate in N maps to
// ±(MateValueCP - 10N).
const MateValueCP = 10000

// Line is one candidate line from the engine. Value is from the side to
// move's perspective: centipawns for KindCentipawn, distance to mate for
// KindMate (negative = the side to move gets mated).
type Line struct {
	Kind  Kind
	Value int
	PV    []string
}

// Centipawns projects the line's score onto a single signed centipawn scale.
func (l Line) Centipawns() int {
	switch l.Kind {
	case KindCentipawn:
		return l.Value
	case KindMate:
		if l.Value >= 0 {
			return MateValueCP - l.Value*10
		}
		return -MateValueCP - l.Value*10
	}
	return 0
}

// Config configures one engine client.
type Config struct {
	Path        string
	Logger      zerolog.Logger
	Depth       int           // search depth per position
	MultiPV     int           // candidate lines requested per position
	HashMB      int           // engine hash table size
	Threads     int           // engine threads
	MoveTimeout time.Duration // hard cap per Evaluate call
}

// Client owns one engine subprocess with an explicit lifecycle:
// New, Evaluate..., Close.
type Client struct {
	cfg    Config
	log    zerolog.Logger
	engine *uci.Engine
	broken bool
}

// New starts the engine process and applies its options.
func New(cfg Config) (*Client, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("engine path required")
	}
	if cfg.Depth == 0 {
		cfg.Depth = 12
	}
	if cfg.MultiPV == 0 {
		cfg.MultiPV = 1
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 128
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	if cfg.MoveTimeout == 0 {
		cfg.MoveTimeout = 30 * time.Second
	}

	c := &Client{cfg: cfg, log: cfg.Logger}
	if err := c.start(); err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	return c, nil
}

func (c *Client) start() error {
	eng, err := uci.NewEngine(c.cfg.Path)
	if err != nil {
		return err
	}
	opts := uci.Options{
		Hash:    c.cfg.HashMB,
		Threads: c.cfg.Threads,
		MultiPV: c.cfg.MultiPV,
		Ponder:  false,
		OwnBook: false,
	}
	if err := eng.SetOptions(opts); err != nil {
		eng.Close()
		return err
	}
	c.engine = eng
	c.broken = false
	return nil
}

// Close stops the engine process.
func (c *Client) Close() error {
	if c.engine != nil {
		c.engine.Close()
		c.engine = nil
	}
	return nil
}

// Evaluate runs a depth-bounded search on fen and returns one Line per
// requested MultiPV candidate, best first. Blocks for at most MoveTimeout.
//
// A client that previously failed restarts its process once at the top of
// the call; if the restart fails the call returns ErrEngineUnavailable and
// the next call tries again.
func (c *Client) Evaluate(ctx context.Context, fen string) ([]Line, error) {
	if _, err := chess.FEN(fen); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}

	if c.broken || c.engine == nil {
		c.log.Warn().Msg("restarting engine process")
		c.Close()
		if err := c.start(); err != nil {
			return nil, fmt.Errorf("%w: restart: %v", ErrEngineUnavailable, err)
		}
	}

	if err := c.engine.SetFEN(fen); err != nil {
		c.broken = true
		return nil, fmt.Errorf("%w: set fen: %v", ErrEngineUnavailable, err)
	}

	type searchResult struct {
		results *uci.Results
		err     error
	}
	// The goroutine gets its own copy of the engine handle: abandon() nils
	// c.engine on timeout or cancellation while the search may still be
	// unwinding.
	eng := c.engine
	done := make(chan searchResult, 1)
	go func() {
		res, err := eng.GoDepth(c.cfg.Depth, uci.HighestDepthOnly)
		done <- searchResult{res, err}
	}()

	timer := time.NewTimer(c.cfg.MoveTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.abandon()
		return nil, ctx.Err()
	case <-timer.C:
		c.abandon()
		return nil, fmt.Errorf("%w: search exceeded %s", ErrEngineUnavailable, c.cfg.MoveTimeout)
	case r := <-done:
		if r.err != nil {
			c.broken = true
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, r.err)
		}
		lines := linesFromResults(r.results)
		if len(lines) == 0 {
			c.broken = true
			return nil, fmt.Errorf("%w: no results from engine", ErrEngineUnavailable)
		}
		return lines, nil
	}
}

// abandon kills a wedged engine process. The search goroutine unblocks once
// the process dies; its late result is discarded via the buffered channel.
func (c *Client) abandon() {
	c.broken = true
	c.Close()
}

func linesFromResults(res *uci.Results) []Line {
	if res == nil {
		return nil
	}
	lines := make([]Line, 0, len(res.Results))
	for _, r := range res.Results {
		ln := Line{Kind: KindCentipawn, Value: r.Score, PV: r.BestMoves}
		if r.Mate {
			ln.Kind = KindMate
		}
		lines = append(lines, ln)
	}
	return lines
}
