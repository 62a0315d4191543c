// nnue-prep turns a folder of evaluated game dumps into one deduplicated,
// rebalanced training file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/loldot/lolbot/internal/dataset"
	"github.com/loldot/lolbot/internal/records"
	"github.com/loldot/lolbot/internal/storage"
	"github.com/loldot/lolbot/internal/tablebase"
)

var (
	flagDir     = flag.String("dir", ".", "folder containing *.pgn.evals.bin files")
	flagOut     = flag.String("out", "", "output file, defaults to <dir>/"+dataset.OutputName)
	flagWorkers = flag.Int("workers", 0, "files loaded in parallel, 0 means one per CPU")
	flagRescore = flag.Bool("rescore", true, "relabel 3-5 piece positions with tablebase verdicts")
	flagTBURL   = flag.String("tb-url", tablebase.DefaultLichessURL, "tablebase HTTP endpoint")
	flagTBCache = flag.String("tb-cache", "", "tablebase verdict cache directory, defaults to the user cache dir")
	flagTBProbe = flag.Int("tb-workers", 4, "tablebase probes in flight")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Width(22).Foreground(lipgloss.Color("8"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dir := must.M1(filepath.Abs(*flagDir))
	cfg := dataset.DefaultConfig(dir)
	cfg.OutputPath = *flagOut
	if *flagWorkers > 0 {
		cfg.Workers = *flagWorkers
	}
	cfg.Rescore = *flagRescore
	cfg.RescoreConfig.Workers = *flagTBProbe

	files := must.M1(records.FindFiles(dir, cfg.Suffixes...))
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("loading"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	cfg.Progress = func(records.FileResult) { _ = bar.Add(1) }

	sum, tbStats, err := run(ctx, cfg)
	_ = bar.Finish()
	if err != nil {
		klog.Exitf("preprocessing %s failed: %+v", dir, err)
	}
	printSummary(sum, tbStats)
}

// run wires the tablebase oracle chain when rescoring is on and processes the
// folder. The verdict store is closed before returning.
func run(ctx context.Context, cfg dataset.Config) (dataset.Summary, *storage.CacheStats, error) {
	if !cfg.Rescore {
		sum, err := dataset.Process(ctx, cfg, nil)
		return sum, nil, err
	}

	store, err := storage.OpenProbeStore(*flagTBCache)
	if err != nil {
		return dataset.Summary{}, nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			klog.Warningf("closing tablebase cache: %v", err)
		}
	}()

	lcfg := tablebase.DefaultLichessConfig()
	lcfg.BaseURL = *flagTBURL
	persistent := tablebase.NewPersistentProber(tablebase.NewLichessProber(lcfg), store)
	oracle := tablebase.NewCachedProber(persistent, 1<<16)

	sum, err := dataset.Process(ctx, cfg, oracle)
	stats := persistent.Stats()
	if ferr := persistent.Flush(); ferr != nil {
		klog.Warningf("saving tablebase cache stats: %v", ferr)
	}
	return sum, &stats, err
}

func printSummary(sum dataset.Summary, tbStats *storage.CacheStats) {
	row := func(label string, value any) {
		fmt.Println(labelStyle.Render(label) + fmt.Sprint(value))
	}

	fmt.Println(titleStyle.Render("Preprocessing summary"))
	row("files", len(sum.Files))
	row("truncated files", sum.Load.Truncated)
	row("skipped files", sum.Load.Skipped)
	if sum.Load.Failed > 0 {
		row("failed files", warnStyle.Render(fmt.Sprint(sum.Load.Failed)))
		for _, err := range sum.Load.Errors() {
			fmt.Println("  " + warnStyle.Render(err.Error()))
		}
	}
	row("records loaded", sum.Loaded)
	row("mate scores removed", sum.MateRemoved)
	if sum.Rescore.Eligible > 0 {
		row("tablebase eligible", sum.Rescore.Eligible)
		row("rescored", fmt.Sprintf("%d (W %d / D %d / L %d)",
			sum.Rescore.Rescored, sum.Rescore.Wins, sum.Rescore.Draws, sum.Rescore.Losses))
		row("rescore skipped", sum.Rescore.Skipped())
	}
	if tbStats != nil {
		row("tablebase cache", fmt.Sprintf("%d hits, %d misses (%.1f%%)",
			tbStats.Hits, tbStats.Misses, tbStats.HitRate()))
	}
	row("duplicates removed", sum.Duplicates)
	row("unique records", sum.Unique)
	for c := dataset.Category(0); c < dataset.NumCategories; c++ {
		row("  "+c.String(), sum.Categories[c])
	}
	row("output", sum.OutputPath)
	row("output size", fmt.Sprintf("%d bytes", sum.OutputBytes))
	row("elapsed", sum.Elapsed.Round(time.Millisecond))
}
