package nnue

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

// Weights holds the float32 parameters of a Hidden x Inputs network.
//
// Blob layout (little-endian f32, no header):
//
//	hidden_w [Hidden*Inputs]  row-major, row h holds the weights into neuron h
//	hidden_b [Hidden]
//	out_w    [Hidden]
//	out_b    [1]
type Weights struct {
	Hidden int
	Inputs int

	HiddenW []float32
	HiddenB []float32
	OutW    []float32
	OutB    float32
}

// NewWeights allocates zero weights.
func NewWeights(hidden, inputs int) *Weights {
	return &Weights{
		Hidden:  hidden,
		Inputs:  inputs,
		HiddenW: make([]float32, hidden*inputs),
		HiddenB: make([]float32, hidden),
		OutW:    make([]float32, hidden),
	}
}

// ExpectedSize is the blob length in bytes for the given shape.
func ExpectedSize(hidden, inputs int) int {
	return 4 * (hidden*inputs + 2*hidden + 1)
}

// Weight returns the weight from input f into hidden neuron h.
func (w *Weights) Weight(h, f int) float32 {
	return w.HiddenW[h*w.Inputs+f]
}

// SetWeight sets the weight from input f into hidden neuron h.
func (w *Weights) SetWeight(h, f int, v float32) {
	w.HiddenW[h*w.Inputs+f] = v
}

func (w *Weights) check() error {
	if len(w.HiddenW) != w.Hidden*w.Inputs || len(w.HiddenB) != w.Hidden || len(w.OutW) != w.Hidden {
		return errors.Wrapf(ErrConfigMismatch, "tensor lengths %d/%d/%d do not match %dx%d",
			len(w.HiddenW), len(w.HiddenB), len(w.OutW), w.Hidden, w.Inputs)
	}
	return nil
}

// EncodeWeights serializes the weights into the blob layout.
func EncodeWeights(w *Weights) ([]byte, error) {
	if err := w.check(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, ExpectedSize(w.Hidden, w.Inputs))
	buf = appendFloats(buf, w.HiddenW)
	buf = appendFloats(buf, w.HiddenB)
	buf = appendFloats(buf, w.OutW)
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(w.OutB))
	return buf, nil
}

func appendFloats(buf []byte, vals []float32) []byte {
	for _, v := range vals {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// DecodeWeights parses a blob for a network of the given shape. A blob of
// the wrong length is rejected with ErrConfigMismatch.
func DecodeWeights(b []byte, hidden, inputs int) (*Weights, error) {
	if hidden <= 0 || inputs <= 0 {
		return nil, errors.Wrapf(ErrConfigMismatch, "invalid shape %dx%d", hidden, inputs)
	}
	if want := ExpectedSize(hidden, inputs); len(b) != want {
		return nil, errors.Wrapf(ErrConfigMismatch, "blob is %d bytes, want %d for %dx%d",
			len(b), want, hidden, inputs)
	}

	w := NewWeights(hidden, inputs)
	off := readFloats(b, 0, w.HiddenW)
	off = readFloats(b, off, w.HiddenB)
	off = readFloats(b, off, w.OutW)
	w.OutB = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	return w, nil
}

func readFloats(b []byte, off int, dst []float32) int {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		off += 4
	}
	return off
}

// ReadWeights reads a blob from r.
func ReadWeights(r io.Reader, hidden, inputs int) (*Weights, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "failed to read weights")
	}
	return DecodeWeights(buf.Bytes(), hidden, inputs)
}

// LoadWeights loads a blob from a file.
func LoadWeights(path string, hidden, inputs int) (*Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open weights file")
	}
	defer f.Close()

	w, err := ReadWeights(f, hidden, inputs)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return w, nil
}

// SaveWeights writes the blob to a file.
func SaveWeights(path string, w *Weights) error {
	b, err := EncodeWeights(w)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrap(err, "failed to write weights file")
	}
	return nil
}

// InitRandom fills the weights with small reproducible values.
func (w *Weights) InitRandom(seed uint64) {
	state := seed
	next := func() float32 {
		state = state*6364136223846793005 + 1442695040888963407
		return float32(int16(state>>48)) / 32768 // [-1, 1)
	}

	for i := range w.HiddenW {
		w.HiddenW[i] = next() * 0.1
	}
	for i := range w.HiddenB {
		w.HiddenB[i] = next() * 0.1
	}
	for i := range w.OutW {
		w.OutW[i] = next()
	}
	w.OutB = next() * 0.1
}

// TensorStats summarizes one tensor of the blob.
type TensorStats struct {
	Name string
	Len  int
	Min  float32
	Max  float32
	Mean float32
}

func (s TensorStats) String() string {
	return fmt.Sprintf("%-8s n=%-6d min=%+.5f max=%+.5f mean=%+.5f", s.Name, s.Len, s.Min, s.Max, s.Mean)
}

// Stats returns min, max and mean for each tensor in blob order.
func (w *Weights) Stats() []TensorStats {
	return []TensorStats{
		tensorStats("hidden_w", w.HiddenW),
		tensorStats("hidden_b", w.HiddenB),
		tensorStats("out_w", w.OutW),
		tensorStats("out_b", []float32{w.OutB}),
	}
}

func tensorStats(name string, vals []float32) TensorStats {
	s := TensorStats{Name: name, Len: len(vals)}
	if len(vals) == 0 {
		return s
	}
	s.Min, s.Max = vals[0], vals[0]
	var sum float64
	for _, v := range vals {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += float64(v)
	}
	s.Mean = float32(sum / float64(len(vals)))
	return s
}
