package tablebase

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/loldot/lolbot/internal/board"
	"github.com/loldot/lolbot/internal/records"
)

// RescoreConfig controls which records are relabelled and with what.
type RescoreConfig struct {
	MinPieces int
	MaxPieces int

	WinEval  int16
	LossEval int16
	DrawEval int16

	// Workers is the number of probes in flight.
	Workers int
}

// DefaultRescoreConfig relabels 3..5 piece positions with +/-200 cp.
func DefaultRescoreConfig() RescoreConfig {
	return RescoreConfig{
		MinPieces: 3,
		MaxPieces: 5,
		WinEval:   200,
		LossEval:  -200,
		DrawEval:  0,
		Workers:   4,
	}
}

// RescoreResult counts what Rescore did.
type RescoreResult struct {
	Eligible int
	Rescored int
	Wins     int
	Draws    int
	Losses   int

	// Invalid boards could not be probed at all.
	Invalid int

	// Unavailable probes got no verdict from the oracle.
	Unavailable int
}

// Skipped is the number of eligible records left unchanged.
func (r RescoreResult) Skipped() int {
	return r.Invalid + r.Unavailable
}

// Labels returns the wdl and eval labels for a white-relative outcome.
func (cfg RescoreConfig) Labels(o Outcome) (float32, int16) {
	switch o {
	case WhiteWins:
		return 1.0, cfg.WinEval
	case WhiteLoses:
		return 0.0, cfg.LossEval
	default:
		return 0.5, cfg.DrawEval
	}
}

// probePosition is the board the oracle sees: pieces and side to move only.
func probePosition(r records.Record) *board.Position {
	return board.NewPositionFromBitboards(r.Position().Pieces, r.SideToMove())
}

// Rescore relabels records whose piece count is within the configured range
// using verdicts from oracle. Records are modified in place. Invalid boards
// and unavailable verdicts are counted and skipped. Only a cancelled context
// stops the run early, in which case its error is returned.
func Rescore(ctx context.Context, recs []records.Record, pieceCount func(records.Record) int,
	oracle Prober, cfg RescoreConfig) (RescoreResult, error) {
	var (
		res RescoreResult
		mu  sync.Mutex
	)

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range recs {
		n := pieceCount(recs[i])
		if n < cfg.MinPieces || n > cfg.MaxPieces {
			continue
		}
		res.Eligible++

		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			r := &recs[i]
			pos := probePosition(*r)
			if err := pos.Validate(); err != nil {
				klog.V(1).Infof("[Rescore] invalid board at index %d, skipping probe: %v", i, err)
				mu.Lock()
				res.Invalid++
				mu.Unlock()
				return nil
			}

			verdict, err := oracle.Probe(gctx, pos)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				klog.V(1).Infof("[Rescore] no verdict at index %d: %v", i, err)
				mu.Lock()
				res.Unavailable++
				mu.Unlock()
				return nil
			}

			outcome := verdict.WhiteOutcome(pos.SideToMove)
			r.WDL, r.Eval = cfg.Labels(outcome)
			klog.V(2).Infof("[Rescore] index %d: %s (%s to move) -> %s", i, verdict.WDL, pos.SideToMove, outcome)

			mu.Lock()
			defer mu.Unlock()
			res.Rescored++
			switch outcome {
			case WhiteWins:
				res.Wins++
			case WhiteLoses:
				res.Losses++
			default:
				res.Draws++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
