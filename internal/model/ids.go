package model

import "strconv"

const (
	ZeroAddress = "0x0000000000000000000000000000000000000000"
	ZeroHash    = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

// EventID builds the immutable-record key "{txHash}-{logIndex}".
func EventID(txHash string, logIndex uint64) string {
	return txHash + "-" + strconv.FormatUint(logIndex, 10)
}

// Cursor is the position of the last event folded into the store.
type Cursor struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
	TxHash      string `json:"tx_hash,omitempty"`
}

// Before reports whether c sorts strictly before (block, logIndex).
func (c Cursor) Before(block, logIndex uint64) bool {
	if c.BlockNumber != block {
		return c.BlockNumber < block
	}
	return c.LogIndex < logIndex
}

// Checkpoint is the scanner's resume point, stored next to the entities.
type Checkpoint struct {
	LastScannedBlock uint64 `json:"last_scanned_block"`
	UpdatedAt        string `json:"updated_at"`
}
