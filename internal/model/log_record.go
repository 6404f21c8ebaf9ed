package model

import (
	"encoding/json"
	"strings"
)

// LogRecord is the normalized representation of a chain log as fetched from the node.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Topic0 returns the lowercase event signature topic, or "" for anonymous logs.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return strings.ToLower(lr.Topics[0])
}

// Less orders records by block number, then log index.
func (lr LogRecord) Less(other LogRecord) bool {
	if lr.BlockNumber != other.BlockNumber {
		return lr.BlockNumber < other.BlockNumber
	}
	return lr.LogIndex < other.LogIndex
}

// UnmarshalJSON decodes a LogRecord and normalizes hex casing.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type Alias LogRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*lr = LogRecord(a)
	lr.Address = strings.ToLower(lr.Address)
	lr.TxHash = strings.ToLower(lr.TxHash)
	return nil
}

// DecodeErrorFor builds a DecodeError describing why lr could not be decoded.
func (lr LogRecord) DecodeErrorFor(err error) DecodeError {
	return DecodeError{
		ChainID:     lr.ChainID,
		BlockNumber: lr.BlockNumber,
		TxHash:      lr.TxHash,
		LogIndex:    lr.LogIndex,
		Address:     lr.Address,
		Topic0:      lr.Topic0(),
		Error:       err.Error(),
	}
}

// DecodeError is one line of the decode errors JSONL: where the log sat and why
// it could not be decoded.
type DecodeError struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
