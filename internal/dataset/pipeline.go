package dataset

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/loldot/lolbot/internal/records"
	"github.com/loldot/lolbot/internal/tablebase"
)

const (
	// InputSuffix selects the evaluated game dumps in the input folder.
	InputSuffix = ".pgn.evals.bin"

	// OutputName is the default output file name inside the input folder.
	OutputName = "preprocessed_positions.bin"
)

// Config controls a preprocessing run.
type Config struct {
	InputDir   string
	OutputPath string // defaults to InputDir/OutputName

	// Suffixes of the files to load. Defaults to InputSuffix and its
	// zstd-compressed variant.
	Suffixes []string

	Workers int

	Rescore       bool
	RescoreConfig tablebase.RescoreConfig

	// Progress, when set, is called once per loaded file.
	Progress func(records.FileResult)
}

// DefaultConfig returns the settings used by nnue-prep.
func DefaultConfig(inputDir string) Config {
	return Config{
		InputDir:      inputDir,
		Suffixes:      []string{InputSuffix, InputSuffix + records.ZstdSuffix},
		Workers:       runtime.NumCPU(),
		Rescore:       true,
		RescoreConfig: tablebase.DefaultRescoreConfig(),
	}
}

func (c Config) outputPath() string {
	if c.OutputPath != "" {
		return c.OutputPath
	}
	return filepath.Join(c.InputDir, OutputName)
}

// Summary reports every stage of a preprocessing run.
type Summary struct {
	Files       []string
	Load        records.LoadReport
	Loaded      int
	MateRemoved int
	Rescore     tablebase.RescoreResult
	Duplicates  int
	Unique      int
	Categories  Counts
	OutputPath  string
	OutputBytes int64
	Elapsed     time.Duration
}

// Process runs the full pipeline: enumerate, truncate and load, mate filter,
// optional rescoring, dedupe, rebalance, write and verify.
//
// A nil oracle disables rescoring. Per-file load failures are reported in
// the summary and do not fail the run; an empty result is an error.
func Process(ctx context.Context, cfg Config, oracle tablebase.Prober) (Summary, error) {
	start := time.Now()
	var sum Summary

	suffixes := cfg.Suffixes
	if len(suffixes) == 0 {
		suffixes = []string{InputSuffix}
	}
	files, err := records.FindFiles(cfg.InputDir, suffixes...)
	if err != nil {
		return sum, err
	}
	// Never read our own output back in.
	out := cfg.outputPath()
	files = slices.DeleteFunc(files, func(p string) bool {
		return filepath.Clean(p) == filepath.Clean(out)
	})
	sum.Files = files
	klog.Infof("[Prep] found %d %s files in %s", len(files), strings.Join(suffixes, "|"), cfg.InputDir)

	recs, report := records.LoadAll(files, cfg.Workers, cfg.Progress)
	sum.Load = report
	sum.Loaded = len(recs)
	klog.Infof("[Prep] loaded %d records: %d files ok, %d failed, %d skipped",
		len(recs), report.Loaded, report.Failed, report.Skipped)
	if len(recs) == 0 {
		return sum, errors.Errorf("no records loaded from %s", cfg.InputDir)
	}

	recs, sum.MateRemoved = FilterMateScores(recs, records.Record.PieceCount)
	klog.Infof("[Prep] removed %d mate-score records with %d+ pieces", sum.MateRemoved, SparsePieceLimit)

	if cfg.Rescore && oracle != nil {
		sum.Rescore, err = tablebase.Rescore(ctx, recs, records.Record.PieceCount, oracle, cfg.RescoreConfig)
		if err != nil {
			return sum, errors.Wrap(err, "rescore")
		}
		klog.Infof("[Prep] rescored %d of %d eligible (wins %d, draws %d, losses %d, skipped %d)",
			sum.Rescore.Rescored, sum.Rescore.Eligible, sum.Rescore.Wins, sum.Rescore.Draws,
			sum.Rescore.Losses, sum.Rescore.Skipped())
	}

	recs, sum.Duplicates = Dedupe(recs)
	sum.Unique = len(recs)
	klog.Infof("[Prep] removed %d duplicates, %d unique", sum.Duplicates, sum.Unique)

	recs, sum.Categories = Rebalance(recs)
	for c := Category(0); c < NumCategories; c++ {
		klog.V(1).Infof("[Prep] %-16s %d", c, sum.Categories[c])
	}

	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if err := records.WriteFile(out, recs); err != nil {
		return sum, err
	}
	sum.OutputPath = out

	info, err := os.Stat(out)
	if err != nil {
		return sum, errors.Wrapf(records.ErrIO, "stat %s: %v", out, err)
	}
	sum.OutputBytes = info.Size()
	if !strings.HasSuffix(out, records.ZstdSuffix) {
		if want := int64(len(recs)) * records.Size; sum.OutputBytes != want {
			return sum, errors.Wrapf(records.ErrIO, "%s is %d bytes, want %d", out, sum.OutputBytes, want)
		}
	}

	sum.Elapsed = time.Since(start)
	klog.Infof("[Prep] wrote %d records to %s in %s", len(recs), out, sum.Elapsed)
	return sum, nil
}
