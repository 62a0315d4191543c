// nnue-eval scores FEN positions with a trained weight blob.
//
// Positions come from -fen or, one per line, from stdin. Each line of output
// is "<fen>: <cp> cp (wdl <p>)" with the score from the side to move's point
// of view, or "<fen>: ERROR" when the line cannot be evaluated.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"

	"github.com/loldot/lolbot/internal/nnue"
	"github.com/loldot/lolbot/internal/storage"
)

// defaultWeightsName is looked up in the data directory when -weights is empty.
const defaultWeightsName = "lolbot.nnue"

var (
	flagWeights     = flag.String("weights", "", "weight blob, defaults to <data dir>/nnue/"+defaultWeightsName)
	flagHidden      = flag.Int("hidden", nnue.DefaultHidden, "hidden layer width")
	flagInputs      = flag.Int("inputs", nnue.PieceFeatures, "input features, 768 or 769")
	flagScale       = flag.Float64("scale", nnue.DefaultScale, "centipawns per logit unit")
	flagPerspective = flag.String("perspective", "absolute", "feature perspective: absolute or mover")
	flagFEN         = flag.String("fen", "", "evaluate a single position instead of reading stdin")
	flagInspect     = flag.Bool("inspect", false, "print blob statistics and exit")
)

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg := nnue.DefaultConfig()
	cfg.Hidden = *flagHidden
	cfg.Inputs = *flagInputs
	cfg.Scale = float32(*flagScale)
	cfg.Perspective = must.M1(nnue.ParsePerspective(*flagPerspective))

	path := *flagWeights
	if path == "" {
		path = filepath.Join(must.M1(storage.GetNNUEDir()), defaultWeightsName)
	}
	net, err := nnue.LoadNetwork(path, cfg)
	if err != nil {
		klog.Exitf("loading %s: %+v", path, err)
	}
	klog.V(1).Infof("loaded %s: %d inputs, %d hidden, %s perspective", path, cfg.Inputs, cfg.Hidden, cfg.Perspective)

	if *flagInspect {
		inspect(os.Stdout, path, net)
		return
	}

	if *flagFEN != "" {
		evaluateLine(os.Stdout, net, *flagFEN)
		return
	}
	must.M(evaluateAll(os.Stdin, os.Stdout, net))
}

func inspect(w io.Writer, path string, net *nnue.Network) {
	cfg := net.Config()
	fmt.Fprintln(w, titleStyle.Render(filepath.Base(path)))
	fmt.Fprintf(w, "architecture %d -> %d -> 1 (%s, scale %g)\n", cfg.Inputs, cfg.Hidden, cfg.Perspective, cfg.Scale)
	fmt.Fprintf(w, "blob size    %d bytes\n", nnue.ExpectedSize(cfg.Hidden, cfg.Inputs))
	for _, s := range net.Weights().Stats() {
		fmt.Fprintln(w, s)
	}
}

// evaluateAll evaluates every non-empty line of r.
func evaluateAll(r io.Reader, w io.Writer, net *nnue.Network) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		evaluateLine(w, net, line)
	}
	return scanner.Err()
}

func evaluateLine(w io.Writer, net *nnue.Network, fen string) {
	eval, err := net.EvaluateFEN(fen)
	if err != nil {
		klog.V(1).Infof("%q: %v", fen, err)
		fmt.Fprintf(w, "%s: ERROR\n", fen)
		return
	}
	fmt.Fprintf(w, "%s: %d cp (wdl %.4f)\n", fen, eval.Centipawns, eval.WDL)
}
