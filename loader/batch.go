package loader

import "github.com/hupe1980/experience"

// Batch is a consecutive run of examples.
type Batch struct {
	// Index is the batch number.
	Index int
	// Start is the dataset index of Rows[0].
	Start int
	Rows  []experience.Row
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int { return len(b.Rows) }

// Rewards returns the batch rewards in row order.
func (b *Batch) Rewards() []float32 {
	out := make([]float32, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r.Reward
	}
	return out
}

// States returns the flattened states of all rows, row after row.
func (b *Batch) States() []float32 {
	var out []float32
	for _, r := range b.Rows {
		out = append(out, r.State.Float32s()...)
	}
	return out
}

// VisitCounts returns the flattened visit counts of all rows, row after row.
func (b *Batch) VisitCounts() []float32 {
	var out []float32
	for _, r := range b.Rows {
		out = append(out, r.VisitCounts.Float32s()...)
	}
	return out
}

// WinRate returns the fraction of decided games (non-zero rewards). It is
// the loss of a value estimator that always predicts a draw.
func (b *Batch) WinRate() float64 {
	if len(b.Rows) == 0 {
		return 0
	}
	decided := 0
	for _, r := range b.Rows {
		if r.Reward != 0 {
			decided++
		}
	}
	return float64(decided) / float64(len(b.Rows))
}
