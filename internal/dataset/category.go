package dataset

import (
	"fmt"

	"github.com/loldot/lolbot/internal/records"
)

// Category buckets a record by how close its eval is to zero and which side
// its WDL label favours. The declared order is the output order of
// Rebalance.
type Category uint8

const (
	NearEqualLow  Category = iota // |eval| <= 100, wdl < 0.5
	NearEqualHigh                 // |eval| <= 100, wdl >= 0.5
	DecisiveLow                   // |eval| > 100, wdl < 0.5
	DecisiveHigh                  // |eval| > 100, wdl >= 0.5

	NumCategories = 4
)

// AlmostEqual reports whether the category is one of the near-equal ones.
func (c Category) AlmostEqual() bool {
	return c == NearEqualLow || c == NearEqualHigh
}

// OutcomeLow reports whether the WDL label is below 0.5.
func (c Category) OutcomeLow() bool {
	return c == NearEqualLow || c == DecisiveLow
}

func (c Category) String() string {
	switch c {
	case NearEqualLow:
		return "near-equal/low"
	case NearEqualHigh:
		return "near-equal/high"
	case DecisiveLow:
		return "decisive/low"
	case DecisiveHigh:
		return "decisive/high"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// Categorize assigns a record to its category. A NaN WDL is not below 0.5
// and lands in a high category.
func Categorize(r records.Record) Category {
	eval := int(r.Eval)
	almostEqual := eval <= NearEqualThreshold && eval >= -NearEqualThreshold
	low := r.WDL < 0.5

	switch {
	case almostEqual && low:
		return NearEqualLow
	case almostEqual:
		return NearEqualHigh
	case low:
		return DecisiveLow
	default:
		return DecisiveHigh
	}
}

// Buckets holds records per category, each in input order.
type Buckets [NumCategories][]records.Record

// Counts holds the number of records per category.
type Counts [NumCategories]int

// Total returns the sum of all categories.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Partition splits records into categories, keeping relative order.
func Partition(recs []records.Record) Buckets {
	var b Buckets
	for _, r := range recs {
		c := Categorize(r)
		b[c] = append(b[c], r)
	}
	return b
}

// Counts returns the size of each bucket.
func (b *Buckets) Counts() Counts {
	var c Counts
	for i := range b {
		c[i] = len(b[i])
	}
	return c
}

// Concat joins the buckets in category order.
func (b *Buckets) Concat() []records.Record {
	out := make([]records.Record, 0, b.Counts().Total())
	for i := range b {
		out = append(out, b[i]...)
	}
	return out
}

// Rebalance reorders records by category. Every input record appears exactly
// once in the output.
func Rebalance(recs []records.Record) ([]records.Record, Counts) {
	b := Partition(recs)
	return b.Concat(), b.Counts()
}
