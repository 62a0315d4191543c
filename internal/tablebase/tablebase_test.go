package tablebase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loldot/lolbot/internal/board"
	"github.com/loldot/lolbot/internal/records"
	"github.com/loldot/lolbot/internal/storage"
)

// fakeProber answers from a map keyed by ProbeKey and counts calls.
type fakeProber struct {
	mu      sync.Mutex
	answers map[string]WDL
	calls   int
}

func (f *fakeProber) Probe(_ context.Context, pos *board.Position) (ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	wdl, ok := f.answers[ProbeKey(pos)]
	if !ok {
		return ProbeResult{}, errors.Wrap(ErrUnavailable, "missing table")
	}
	return ProbeResult{WDL: wdl, Category: wdl.String()}, nil
}

func (f *fakeProber) MaxPieces() int { return 5 }

func mustPos(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	require.NoError(t, err)
	return pos
}

func TestNoopProber(t *testing.T) {
	prober := NoopProber{}
	assert.Equal(t, 0, prober.MaxPieces())

	_, err := prober.Probe(context.Background(), board.NewPosition())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestCountPieces(t *testing.T) {
	assert.Equal(t, 32, CountPieces(board.NewPosition()))
}

func TestProbeKey(t *testing.T) {
	a := mustPos(t, "8/8/8/8/8/8/1Q6/K6k w - - 0 1")
	b := mustPos(t, "8/8/8/8/8/8/1Q6/K6k w - - 17 60")
	c := mustPos(t, "8/8/8/8/8/8/1Q6/K6k b - - 0 1")

	assert.Equal(t, "8/8/8/8/8/8/1Q6/K6k w", ProbeKey(a))
	assert.Equal(t, ProbeKey(a), ProbeKey(b))
	assert.NotEqual(t, ProbeKey(a), ProbeKey(c))
}

func TestWhiteOutcome(t *testing.T) {
	tests := []struct {
		wdl  WDL
		stm  board.Color
		want Outcome
	}{
		{WDLWin, board.White, WhiteWins},
		{WDLWin, board.Black, WhiteLoses},
		{WDLCursedWin, board.White, WhiteWins},
		{WDLDraw, board.Black, Drawn},
		{WDLBlessedLoss, board.White, WhiteLoses},
		{WDLLoss, board.Black, WhiteWins},
	}
	for _, tc := range tests {
		got := ProbeResult{WDL: tc.wdl}.WhiteOutcome(tc.stm)
		assert.Equal(t, tc.want, got, "%s with %s to move", tc.wdl, tc.stm)
	}
}

func TestLichessProber(t *testing.T) {
	var gotFEN string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFEN = r.URL.Query().Get("fen")
		switch {
		case strings.Contains(gotFEN, "1Q6"):
			w.Write([]byte(`{"category":"win","dtz":3,"moves":[]}`))
		case strings.Contains(gotFEN, "1R6"):
			w.Write([]byte(`{"category":"unknown","dtz":null}`))
		case strings.Contains(gotFEN, "1N6"):
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Write([]byte(`{"category":"draw","dtz":0}`))
		}
	}))
	defer srv.Close()

	cfg := DefaultLichessConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxPieces = 5
	lp := NewLichessProber(cfg)
	ctx := context.Background()

	res, err := lp.Probe(ctx, mustPos(t, "8/8/8/8/8/8/1Q6/K6k w - - 0 1"))
	require.NoError(t, err)
	assert.Equal(t, WDLWin, res.WDL)
	assert.Equal(t, 3, res.DTZ)
	assert.Equal(t, "8/8/8/8/8/8/1Q6/K6k_w_-_-_0_1", gotFEN)

	res, err = lp.Probe(ctx, mustPos(t, "8/8/8/8/8/8/8/K6k b - - 0 1"))
	require.NoError(t, err)
	assert.Equal(t, WDLDraw, res.WDL)

	_, err = lp.Probe(ctx, mustPos(t, "8/8/8/8/8/8/1R6/K6k w - - 0 1"))
	assert.True(t, errors.Is(err, ErrUnavailable), "unknown category")

	_, err = lp.Probe(ctx, mustPos(t, "8/8/8/8/8/8/1N6/K6k w - - 0 1"))
	assert.True(t, errors.Is(err, ErrUnavailable), "rate limited")

	_, err = lp.Probe(ctx, board.NewPosition())
	assert.True(t, errors.Is(err, ErrUnavailable), "too many pieces")
}

func TestCategoryToWDL(t *testing.T) {
	tests := map[string]WDL{
		"win":          WDLWin,
		"maybe-win":    WDLWin,
		"syzygy-win":   WDLWin,
		"cursed-win":   WDLCursedWin,
		"draw":         WDLDraw,
		"blessed-loss": WDLBlessedLoss,
		"maybe-loss":   WDLLoss,
		"loss":         WDLLoss,
	}
	for cat, want := range tests {
		got, ok := categoryToWDL(cat)
		assert.True(t, ok, cat)
		assert.Equal(t, want, got, cat)
	}
	_, ok := categoryToWDL("unknown")
	assert.False(t, ok)
}

func TestCachedProber(t *testing.T) {
	inner := &fakeProber{answers: map[string]WDL{"8/8/8/8/8/8/1Q6/K6k w": WDLWin}}
	cp := NewCachedProber(inner, 4)
	ctx := context.Background()
	pos := mustPos(t, "8/8/8/8/8/8/1Q6/K6k w - - 0 1")

	for i := 0; i < 3; i++ {
		res, err := cp.Probe(ctx, pos)
		require.NoError(t, err)
		assert.Equal(t, WDLWin, res.WDL)
	}
	assert.Equal(t, 1, inner.calls)
	assert.InDelta(t, 66.67, cp.HitRate(), 0.01)

	missing := mustPos(t, "8/8/8/8/8/8/1R6/K6k w - - 0 1")
	for i := 0; i < 2; i++ {
		_, err := cp.Probe(ctx, missing)
		assert.True(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, 3, inner.calls, "failures are not cached")
	assert.Equal(t, 1, cp.CacheSize())

	// Castling and en passant do not change the cache key.
	_, err := cp.Probe(ctx, mustPos(t, "8/8/8/8/8/8/1Q6/K6k w - e3 4 9"))
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, uint64(3), cp.Stats().Hits)
	assert.Equal(t, uint64(1), cp.Stats().Writes)

	small := NewCachedProber(&fakeProber{answers: map[string]WDL{
		"8/8/8/8/8/8/1Q6/K6k w": WDLWin,
		"8/8/8/8/8/8/1Q6/K6k b": WDLDraw,
		"8/8/8/8/8/8/1R6/K6k w": WDLWin,
	}}, 2)
	for _, fen := range []string{"8/8/8/8/8/8/1Q6/K6k w", "8/8/8/8/8/8/1Q6/K6k b", "8/8/8/8/8/8/1R6/K6k w"} {
		_, err := small.Probe(ctx, mustPos(t, fen))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, small.CacheSize(), "half the entries are evicted when full")

	cp.Clear()
	assert.Equal(t, 0, cp.CacheSize())
	assert.Equal(t, float64(0), cp.HitRate())
}

func TestPersistentProber(t *testing.T) {
	store, err := storage.OpenInMemoryProbeStore()
	require.NoError(t, err)
	defer store.Close()

	inner := &fakeProber{answers: map[string]WDL{"8/8/8/8/8/8/1q6/K6k w": WDLLoss}}
	pp := NewPersistentProber(inner, store)
	ctx := context.Background()
	pos := mustPos(t, "8/8/8/8/8/8/1q6/K6k w - - 0 1")

	res, err := pp.Probe(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, WDLLoss, res.WDL)

	// A fresh prober over the same store never reaches the oracle.
	pp2 := NewPersistentProber(NoopProber{}, store)
	res, err = pp2.Probe(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, WDLLoss, res.WDL)
	assert.Equal(t, "loss", res.Category)
	assert.Equal(t, uint64(1), pp2.Stats().Hits)

	assert.Equal(t, uint64(1), pp.Stats().Misses)
	assert.Equal(t, uint64(1), pp.Stats().Writes)
	require.NoError(t, pp.Flush())
	require.NoError(t, pp2.Flush())

	stats, err := store.LoadStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Writes)
}

func recordFor(t *testing.T, fen string, eval int16, wdl float32) records.Record {
	t.Helper()
	return records.FromPosition(mustPos(t, fen), eval, wdl)
}

func TestRescore(t *testing.T) {
	oracle := &fakeProber{answers: map[string]WDL{
		// white to move, white queen up: win for the mover
		"8/8/8/8/8/8/1Q6/K6k w": WDLWin,
		// black to move, white queen up: loss for the mover
		"8/8/8/8/8/8/1Q6/K6k b": WDLLoss,
		// black to move, black queen up: win for the mover
		"8/8/8/8/8/8/1q6/K6k b": WDLWin,
		"8/8/8/8/8/8/1N6/K6k w": WDLDraw,
	}}

	recs := []records.Record{
		recordFor(t, "8/8/8/8/8/8/1Q6/K6k w - - 0 1", 50, 0.6),
		recordFor(t, "8/8/8/8/8/8/1Q6/K6k b - - 0 1", 50, 0.6),
		recordFor(t, "8/8/8/8/8/8/1q6/K6k b - - 0 1", 50, 0.6),
		recordFor(t, "8/8/8/8/8/8/1N6/K6k w - - 0 1", 50, 0.6),
		recordFor(t, "8/8/8/8/8/8/1R6/K6k w - - 0 1", 50, 0.6), // no table
		recordFor(t, "8/8/8/8/8/8/8/K6k w - - 0 1", 50, 0.6),   // 2 pieces
		recordFor(t, board.StartFEN, 50, 0.6),                  // 32 pieces
		recordFor(t, "8/8/8/8/8/8/1K6/K6k w - - 0 1", 50, 0.6), // two white kings
	}
	before := append([]records.Record(nil), recs...)

	cfg := DefaultRescoreConfig()
	res, err := Rescore(context.Background(), recs, records.Record.PieceCount, oracle, cfg)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Eligible)
	assert.Equal(t, 4, res.Rescored)
	assert.Equal(t, 2, res.Wins)
	assert.Equal(t, 1, res.Losses)
	assert.Equal(t, 1, res.Draws)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 1, res.Unavailable)
	assert.Equal(t, 2, res.Skipped())

	assert.Equal(t, float32(1.0), recs[0].WDL)
	assert.Equal(t, int16(200), recs[0].Eval)
	assert.Equal(t, float32(1.0), recs[1].WDL, "mover loss with black to move is a white win")
	assert.Equal(t, int16(200), recs[1].Eval)
	assert.Equal(t, float32(0.0), recs[2].WDL, "mover win with black to move is a white loss")
	assert.Equal(t, int16(-200), recs[2].Eval)
	assert.Equal(t, float32(0.5), recs[3].WDL)
	assert.Equal(t, int16(0), recs[3].Eval)

	for _, i := range []int{4, 5, 6, 7} {
		assert.Equal(t, before[i], recs[i], "record %d must be untouched", i)
	}
}

func TestRescoreLoss(t *testing.T) {
	oracle := &fakeProber{answers: map[string]WDL{"8/8/8/8/8/8/1q6/K6k w": WDLLoss}}
	recs := []records.Record{recordFor(t, "8/8/8/8/8/8/1q6/K6k w - - 0 1", 10, 0.5)}

	res, err := Rescore(context.Background(), recs, records.Record.PieceCount, oracle, DefaultRescoreConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Losses)
	assert.Equal(t, float32(0.0), recs[0].WDL)
	assert.Equal(t, int16(-200), recs[0].Eval)
}

func TestRescoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs := []records.Record{recordFor(t, "8/8/8/8/8/8/1Q6/K6k w - - 0 1", 0, 0.5)}
	_, err := Rescore(ctx, recs, records.Record.PieceCount, &fakeProber{}, DefaultRescoreConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
