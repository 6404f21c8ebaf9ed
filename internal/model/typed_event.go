package model

import (
	"encoding/json"
	"fmt"
)

// TypedEvent is a decoded protocol event with its chain position.
type TypedEvent struct {
	ChainID     uint64      `json:"chain_id"`
	BlockNumber uint64      `json:"block_number"`
	BlockHash   string      `json:"block_hash"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp"`
	Decoded     interface{} `json:"decoded"`
	Raw         *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// Record converts the event into its JSON record form, the shape the engine consumes.
func (e TypedEvent) Record() (TypedEventRecord, error) {
	payload, err := json.Marshal(e.Decoded)
	if err != nil {
		return TypedEventRecord{}, fmt.Errorf("marshal %s payload: %w", e.EventName, err)
	}
	return TypedEventRecord{
		ChainID:     e.ChainID,
		BlockNumber: e.BlockNumber,
		BlockHash:   e.BlockHash,
		TxHash:      e.TxHash,
		LogIndex:    e.LogIndex,
		Address:     e.Address,
		EventName:   e.EventName,
		Timestamp:   e.Timestamp,
		Decoded:     payload,
		Raw:         e.Raw,
	}, nil
}
