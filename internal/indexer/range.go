package indexer

import (
	"errors"
	"fmt"
)

// BlockRange is an inclusive block span.
type BlockRange struct {
	From uint64
	To   uint64
}

// Len is the number of blocks in the range.
func (br BlockRange) Len() uint64 {
	return br.To - br.From + 1
}

func (br BlockRange) String() string {
	return fmt.Sprintf("[%d,%d]", br.From, br.To)
}

// SplitRange cuts [from, to] into consecutive batches of at most batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, errors.New("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is before from block %d", to, from)
	}

	out := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		out = append(out, BlockRange{From: start, To: end})
		if end == to {
			return out, nil
		}
	}
}

// SyncWindow returns the span still to index given the chain head. The upper
// bound stays confirmations blocks behind latest and never passes toBlock
// (0 means unbounded). ok is false when nothing is ready yet.
func SyncWindow(from, latest, confirmations, toBlock uint64) (BlockRange, bool) {
	if latest < confirmations {
		return BlockRange{}, false
	}
	to := latest - confirmations
	if toBlock != 0 && toBlock < to {
		to = toBlock
	}
	if from > to {
		return BlockRange{}, false
	}
	return BlockRange{From: from, To: to}, true
}
