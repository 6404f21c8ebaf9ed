// Package storage holds the JSONL files the indexer exchanges between its stages:
// raw logs from run, typed events from decode, decode errors.
package storage

import "musdScope/internal/model"

// Storage defines a sink for raw log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) PutLogBatch([]model.LogRecord) error { return nil }
