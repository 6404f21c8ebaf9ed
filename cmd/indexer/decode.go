package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"musdScope/internal/config"
	"musdScope/internal/contracts"
	"musdScope/internal/model"
	"musdScope/internal/storage"
)

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs JSONL into typed events JSONL",
		RunE:  runDecode,
	}
	cmd.Flags().String("in", "", "input raw logs JSONL")
	cmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	decoder, err := contracts.NewDecoder()
	if err != nil {
		return err
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	outWriter, err := storage.NewWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	var errWriter *storage.Writer
	if cfg.Errors != "" {
		if errWriter, err = storage.NewWriter(cfg.Errors, false); err != nil {
			return err
		}
		defer errWriter.Close()
	}

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	var total, decoded, skipped, removed, failed int
	err = storage.ReadLines(inputFile, func(_ int, line []byte) error {
		total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			return writeDecodeError(errWriter, model.DecodeError{Error: err.Error()})
		}
		if record.Removed {
			removed++
			return nil
		}
		if !decoder.CanDecode(record.Topic0()) {
			skipped++
			return nil
		}

		event, err := decoder.Decode(record)
		if err != nil {
			failed++
			logger.Warn("decode failed", zap.String("tx_hash", record.TxHash), zap.Uint64("log_index", record.LogIndex), zap.Error(err))
			return writeDecodeError(errWriter, record.DecodeErrorFor(err))
		}
		out, err := event.Record()
		if err != nil {
			return err
		}
		if err := outWriter.Write(out); err != nil {
			return err
		}
		decoded++
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("removed", removed),
		zap.Int("failed", failed),
	)
	return nil
}

func writeDecodeError(w *storage.Writer, errRecord model.DecodeError) error {
	if w == nil {
		return nil
	}
	return w.Write(errRecord)
}
