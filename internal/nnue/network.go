package nnue

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"

	"github.com/loldot/lolbot/internal/board"
	"github.com/loldot/lolbot/internal/records"
)

// Network evaluates positions with a fixed set of weights. It is immutable
// after construction and safe for concurrent use.
type Network struct {
	cfg Config
	w   *Weights

	// columns[f] holds the weights from input f into every hidden neuron,
	// so sparse inputs touch contiguous memory.
	columns [][]float32
}

// NewNetwork checks the weights against cfg and builds a network.
func NewNetwork(cfg Config, w *Weights) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if w.Hidden != cfg.Hidden || w.Inputs != cfg.Inputs {
		return nil, errors.Wrapf(ErrConfigMismatch, "weights are %dx%d, config wants %dx%d",
			w.Hidden, w.Inputs, cfg.Hidden, cfg.Inputs)
	}
	if err := w.check(); err != nil {
		return nil, err
	}

	n := &Network{cfg: cfg, w: w, columns: make([][]float32, cfg.Inputs)}
	flat := make([]float32, cfg.Inputs*cfg.Hidden)
	for f := 0; f < cfg.Inputs; f++ {
		col := flat[f*cfg.Hidden : (f+1)*cfg.Hidden]
		for h := 0; h < cfg.Hidden; h++ {
			col[h] = w.Weight(h, f)
		}
		n.columns[f] = col
	}
	return n, nil
}

// LoadNetwork reads a weight blob shaped by cfg.
func LoadNetwork(path string, cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w, err := LoadWeights(path, cfg.Hidden, cfg.Inputs)
	if err != nil {
		return nil, err
	}
	return NewNetwork(cfg, w)
}

// Config returns the network configuration.
func (n *Network) Config() Config {
	return n.cfg
}

// Weights returns the underlying weights. Callers must not modify them.
func (n *Network) Weights() *Weights {
	return n.w
}

// clippedReLU clamps to [0, 1].
func clippedReLU(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// ForwardInfer returns the raw output logit for a dense input vector.
func (n *Network) ForwardInfer(x []float32) (float32, error) {
	if len(x) != n.cfg.Inputs {
		return 0, errors.Wrapf(ErrConfigMismatch, "feature width %d, network expects %d", len(x), n.cfg.Inputs)
	}

	out := n.w.OutB
	for h := 0; h < n.cfg.Hidden; h++ {
		row := n.w.HiddenW[h*n.cfg.Inputs : (h+1)*n.cfg.Inputs]
		sum := n.w.HiddenB[h]
		for f, v := range x {
			if v != 0 {
				sum += row[f] * v
			}
		}
		out += n.w.OutW[h] * clippedReLU(sum)
	}
	return out, nil
}

// ForwardTrain returns sigmoid(ForwardInfer(x)), the training-time output.
func (n *Network) ForwardTrain(x []float32) (float32, error) {
	logit, err := n.ForwardInfer(x)
	if err != nil {
		return 0, err
	}
	return sigmoid(logit), nil
}

// inferSparse evaluates a one-hot input given by its active indices.
func (n *Network) inferSparse(active []int) float32 {
	hidden := make([]float32, n.cfg.Hidden)
	copy(hidden, n.w.HiddenB)
	for _, f := range active {
		for h, wt := range n.columns[f] {
			hidden[h] += wt
		}
	}
	return n.output(hidden)
}

func (n *Network) output(hidden []float32) float32 {
	out := n.w.OutB
	for h, v := range hidden {
		out += n.w.OutW[h] * clippedReLU(v)
	}
	return out
}

// Evaluation is the result of evaluating one position.
type Evaluation struct {
	// Logit is the raw network output in the configured perspective.
	Logit float32

	// White is the score in centipawns from white's point of view.
	White float32

	// Centipawns is the rounded score from the side to move's point of view.
	Centipawns int

	// WDL is the probability that white wins, sigmoid of the white logit.
	WDL float32
}

func (n *Network) evaluation(logit float32, stm board.Color) Evaluation {
	whiteLogit := logit
	if n.cfg.Perspective == Mover && stm == board.Black {
		whiteLogit = -logit
	}
	white := whiteLogit * n.cfg.Scale
	mover := white
	if stm == board.Black {
		mover = -white
	}
	return Evaluation{
		Logit:      logit,
		White:      white,
		Centipawns: roundToInt(mover),
		WDL:        sigmoid(whiteLogit),
	}
}

// roundToInt rounds half away from zero.
func roundToInt(x float32) int {
	if x < 0 {
		return -int(math32.Floor(-x + 0.5))
	}
	return int(math32.Floor(x + 0.5))
}

// Evaluate scores a position.
func (n *Network) Evaluate(pos *board.Position) (Evaluation, error) {
	active, err := ActiveFeatures(pos, n.cfg.Inputs, n.cfg.Perspective)
	if err != nil {
		return Evaluation{}, err
	}
	return n.evaluation(n.inferSparse(active), pos.SideToMove), nil
}

// EvaluateRecord scores the position stored in a record.
func (n *Network) EvaluateRecord(r records.Record) (Evaluation, error) {
	if n.cfg.Perspective == Absolute {
		x, err := EncodeRecord(r, n.cfg.Inputs, Absolute)
		if err != nil {
			return Evaluation{}, err
		}
		logit, err := n.ForwardInfer(x)
		if err != nil {
			return Evaluation{}, err
		}
		return n.evaluation(logit, r.SideToMove()), nil
	}
	return n.Evaluate(r.Position())
}

// EvaluateFEN parses and scores a FEN string.
func (n *Network) EvaluateFEN(fen string) (Evaluation, error) {
	pos, err := board.ParseFEN(fen)
	if err != nil {
		return Evaluation{}, err
	}
	return n.Evaluate(pos)
}

// WDLToCentipawns converts a white-win probability to centipawns using
// 400*ln(p/(1-p)), with p clamped to [0.001, 0.999].
func WDLToCentipawns(p float32) float32 {
	p = max(0.001, min(0.999, p))
	return 400 * math32.Log(p/(1-p))
}

// CentipawnsToWDL is sigmoid(cp/410), the labelling used for training data.
func CentipawnsToWDL(cp float32) float32 {
	return sigmoid(cp / DefaultScale)
}
