// Package nnue implements the small evaluation network used by lolbot: a
// single clipped-ReLU hidden layer over 768 piece planes (optionally plus a
// side-to-move scalar) and one output neuron.
package nnue

import (
	"strings"

	"github.com/pkg/errors"
)

// Network architecture constants
const (
	NumColors     = 2
	NumPieceTypes = 6
	NumSquares    = 64

	// PieceFeatures is the number of one-hot piece planes.
	PieceFeatures = NumColors * NumPieceTypes * NumSquares // 768

	// PieceAndSideFeatures adds a side-to-move scalar at index 768.
	PieceAndSideFeatures = PieceFeatures + 1 // 769

	// SideToMoveFeature is the index of the side-to-move scalar.
	SideToMoveFeature = PieceFeatures

	DefaultHidden = 16
	DefaultScale  = 410
)

// ErrConfigMismatch reports weights or features whose shape does not match
// the network configuration.
var ErrConfigMismatch = errors.New("network configuration mismatch")

// Perspective selects how a position is presented to the network.
type Perspective uint8

const (
	// Absolute encodes the board as is. The network output is white-relative.
	Absolute Perspective = iota

	// Mover mirrors the board and swaps colours when black is to move, so
	// the network always sees the side to move as white. The output is
	// relative to the side to move.
	Mover
)

// String returns the flag spelling of the perspective.
func (p Perspective) String() string {
	if p == Mover {
		return "mover"
	}
	return "absolute"
}

// ParsePerspective parses "absolute" or "mover".
func ParsePerspective(s string) (Perspective, error) {
	switch strings.ToLower(s) {
	case "absolute", "white", "":
		return Absolute, nil
	case "mover", "stm":
		return Mover, nil
	}
	return Absolute, errors.Errorf("unknown perspective %q", s)
}

// Config describes the network shape and output scaling.
type Config struct {
	Hidden      int
	Inputs      int
	Scale       float32
	Perspective Perspective
}

// DefaultConfig is the 768 -> 16 -> 1 network with absolute perspective.
func DefaultConfig() Config {
	return Config{
		Hidden:      DefaultHidden,
		Inputs:      PieceFeatures,
		Scale:       DefaultScale,
		Perspective: Absolute,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Hidden <= 0 {
		return errors.Wrapf(ErrConfigMismatch, "hidden size must be positive, got %d", c.Hidden)
	}
	if c.Inputs != PieceFeatures && c.Inputs != PieceAndSideFeatures {
		return errors.Wrapf(ErrConfigMismatch, "inputs must be %d or %d, got %d",
			PieceFeatures, PieceAndSideFeatures, c.Inputs)
	}
	if c.Scale <= 0 {
		return errors.Wrapf(ErrConfigMismatch, "scale must be positive, got %g", c.Scale)
	}
	return nil
}
