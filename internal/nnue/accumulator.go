package nnue

import "github.com/loldot/lolbot/internal/board"

// Accumulator holds the pre-activation hidden sums of one position so that
// moving a piece only touches the changed feature columns.
type Accumulator struct {
	Values []float32

	// Active is the sorted feature list the values were built from.
	Active []int

	// Track if accumulator is computed
	Computed bool
}

// NewAccumulator allocates an accumulator for net.
func NewAccumulator(net *Network) *Accumulator {
	return &Accumulator{Values: make([]float32, net.cfg.Hidden)}
}

// Refresh recomputes the sums from scratch for the given active features.
func (acc *Accumulator) Refresh(net *Network, active []int) {
	copy(acc.Values, net.w.HiddenB)
	for _, f := range active {
		acc.Add(net, f)
	}
	acc.Active = sortedCopy(active)
	acc.Computed = true
}

// RefreshPosition recomputes the sums for a position.
func (acc *Accumulator) RefreshPosition(net *Network, pos *board.Position) error {
	active, err := ActiveFeatures(pos, net.cfg.Inputs, net.cfg.Perspective)
	if err != nil {
		return err
	}
	acc.Refresh(net, active)
	return nil
}

// Add adds the column of feature f. It does not update Active.
func (acc *Accumulator) Add(net *Network, f int) {
	for h, wt := range net.columns[f] {
		acc.Values[h] += wt
	}
}

// Remove subtracts the column of feature f. It does not update Active.
func (acc *Accumulator) Remove(net *Network, f int) {
	for h, wt := range net.columns[f] {
		acc.Values[h] -= wt
	}
}

// Update moves the accumulator to pos by applying only the feature
// differences. An uncomputed accumulator is refreshed instead.
func (acc *Accumulator) Update(net *Network, pos *board.Position) error {
	next, err := ActiveFeatures(pos, net.cfg.Inputs, net.cfg.Perspective)
	if err != nil {
		return err
	}
	if !acc.Computed {
		acc.Refresh(net, next)
		return nil
	}

	next = sortedCopy(next)
	added, removed := diffFeatures(acc.Active, next)
	for _, f := range removed {
		acc.Remove(net, f)
	}
	for _, f := range added {
		acc.Add(net, f)
	}
	acc.Active = next
	return nil
}

// Read returns the output logit for the accumulated sums.
func (acc *Accumulator) Read(net *Network) float32 {
	return net.output(acc.Values)
}

func (acc *Accumulator) copyFrom(src *Accumulator) {
	copy(acc.Values, src.Values)
	acc.Active = append(acc.Active[:0], src.Active...)
	acc.Computed = src.Computed
}

// AccumulatorStack keeps one accumulator per ply for make/unmake style walks.
type AccumulatorStack struct {
	net   *Network
	stack []*Accumulator
	top   int
}

// NewAccumulatorStack creates a stack with room for depth plies.
func NewAccumulatorStack(net *Network, depth int) *AccumulatorStack {
	if depth < 1 {
		depth = 1
	}
	s := &AccumulatorStack{net: net, stack: make([]*Accumulator, depth)}
	for i := range s.stack {
		s.stack[i] = NewAccumulator(net)
	}
	return s
}

// Push copies the current accumulator one level up.
func (s *AccumulatorStack) Push() {
	if s.top+1 >= len(s.stack) {
		s.stack = append(s.stack, NewAccumulator(s.net))
	}
	s.stack[s.top+1].copyFrom(s.stack[s.top])
	s.top++
}

// Pop restores the previous accumulator.
func (s *AccumulatorStack) Pop() {
	if s.top > 0 {
		s.top--
	}
}

// Current returns the current accumulator.
func (s *AccumulatorStack) Current() *Accumulator {
	return s.stack[s.top]
}

// Depth is the number of pushes not yet popped.
func (s *AccumulatorStack) Depth() int {
	return s.top
}

// Reset resets the stack to initial state.
func (s *AccumulatorStack) Reset() {
	s.top = 0
	s.stack[0].Computed = false
	s.stack[0].Active = s.stack[0].Active[:0]
}

// Evaluate brings the current accumulator to pos and scores it.
func (s *AccumulatorStack) Evaluate(pos *board.Position) (Evaluation, error) {
	acc := s.Current()
	if err := acc.Update(s.net, pos); err != nil {
		return Evaluation{}, err
	}
	return s.net.evaluation(acc.Read(s.net), pos.SideToMove), nil
}
