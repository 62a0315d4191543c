package tablebase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/loldot/lolbot/internal/board"
)

// DefaultLichessURL is the public standard-chess tablebase endpoint.
const DefaultLichessURL = "https://tablebase.lichess.ovh/standard"

// LichessConfig configures the HTTP oracle.
type LichessConfig struct {
	BaseURL   string
	Timeout   time.Duration
	MaxPieces int
}

// DefaultLichessConfig returns the public endpoint settings.
func DefaultLichessConfig() LichessConfig {
	return LichessConfig{
		BaseURL:   DefaultLichessURL,
		Timeout:   5 * time.Second,
		MaxPieces: 7, // Lichess supports up to 7-piece tablebases
	}
}

// LichessProber uses the Lichess tablebase API for online lookups.
// Note: This requires network access and has rate limits.
type LichessProber struct {
	client    *http.Client
	baseURL   string
	maxPieces int
}

// NewLichessProber creates a new Lichess-based tablebase prober.
func NewLichessProber(cfg LichessConfig) *LichessProber {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLichessURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &LichessProber{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxPieces: cfg.MaxPieces,
	}
}

// Lichess API response structure
type lichessResponse struct {
	Category string `json:"category"`
	DTZ      *int   `json:"dtz"`
}

func (lp *LichessProber) Probe(ctx context.Context, pos *board.Position) (ProbeResult, error) {
	if n := CountPieces(pos); n > lp.maxPieces {
		return ProbeResult{}, errors.Wrapf(ErrUnavailable, "%d pieces, lichess supports %d", n, lp.maxPieces)
	}

	// Lichess accepts underscores in place of spaces
	fen := strings.ReplaceAll(pos.ToFEN(), " ", "_")
	reqURL := fmt.Sprintf("%s?fen=%s", lp.baseURL, url.QueryEscape(fen))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return ProbeResult{}, errors.Wrap(err, "build lichess request")
	}
	resp, err := lp.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ProbeResult{}, ctx.Err()
		}
		return ProbeResult{}, errors.Wrapf(ErrUnavailable, "lichess request: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return ProbeResult{}, errors.Wrap(ErrUnavailable, "lichess rate limit")
	default:
		return ProbeResult{}, errors.Wrapf(ErrUnavailable, "lichess status %d", resp.StatusCode)
	}

	var result lichessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ProbeResult{}, errors.Wrapf(ErrUnavailable, "decode lichess response: %v", err)
	}

	wdl, ok := categoryToWDL(result.Category)
	if !ok {
		return ProbeResult{}, errors.Wrapf(ErrUnavailable, "lichess category %q", result.Category)
	}

	res := ProbeResult{WDL: wdl, Category: result.Category}
	if result.DTZ != nil {
		res.DTZ = *result.DTZ
	}
	klog.V(2).Infof("[Lichess] %s: %s", pos.ToFEN(), result.Category)
	return res, nil
}

func (lp *LichessProber) MaxPieces() int {
	return lp.maxPieces
}

// categoryToWDL maps a Lichess category to a side-to-move verdict.
// "unknown" and unrecognised categories have no verdict.
func categoryToWDL(category string) (WDL, bool) {
	switch category {
	case "win", "syzygy-win", "maybe-win":
		return WDLWin, true
	case "cursed-win":
		return WDLCursedWin, true
	case "draw":
		return WDLDraw, true
	case "blessed-loss":
		return WDLBlessedLoss, true
	case "loss", "syzygy-loss", "maybe-loss":
		return WDLLoss, true
	default:
		return WDLDraw, false
	}
}
