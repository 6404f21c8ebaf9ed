package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"musdScope/internal/chain"
	"musdScope/internal/config"
	"musdScope/internal/contracts"
	"musdScope/internal/engine"
	"musdScope/internal/model"
	"musdScope/internal/publish"
	"musdScope/internal/storage"
)

func newReduceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reduce",
		Short: "Fold typed events JSONL into the entity store",
		RunE:  runReduce,
	}
	cmd.Flags().String("in", "", "input typed events JSONL")
	cmd.Flags().String("rpc", "", "optional RPC URL for pool and token reads")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts for reads")
	cmd.Flags().Duration("retry-backoff", 0, "initial retry backoff for reads")
	cmd.Flags().Bool("dedup", true, "skip events at or before the stored cursor instead of failing")
	cmd.Flags().Bool("reset-open-on-reopen", false, "restamp openedAt when a closed SuperStake position reopens")
	cmd.Flags().String("nats-url", "", "NATS URL for entity change publication (empty disables)")
	addStoreFlags(cmd.Flags())
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func runReduce(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReduce(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	engineCfg := engine.Config{
		Logger:            logger,
		RejectReplays:     !cfg.Dedup,
		ResetOpenOnReopen: cfg.ResetOpenOnReopen,
	}
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		engineCfg.Reader = contracts.NewReader(chainClient, contracts.ReaderConfig{MaxRetries: cfg.MaxRetries, RetryDelay: cfg.RetryBackoff}, logger)
	} else {
		logger.Warn("no rpc configured, pool reserves and symbols will not be read")
	}
	if cfg.NATSURL != "" {
		pub, nc, err := publish.Connect(ctx, cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		engineCfg.Sink = pub
	}
	eng := engine.New(st, engineCfg)

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	logger.Info("reduce start", zap.String("in", cfg.In), zap.String("store", cfg.Store.Backend), zap.Bool("rpc", cfg.RPCURL != ""))

	var total, applied, skipped int
	err = storage.ReadLines(inputFile, func(n int, line []byte) error {
		total++
		var rec model.TypedEventRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		ok, err := eng.Apply(ctx, rec)
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if ok {
			applied++
		} else {
			skipped++
		}
		return nil
	})
	if err != nil {
		return err
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}
	logger.Info("reduce complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
		zap.Uint64("active_users", stats.ActiveUsers),
		zap.Uint64("total_pools", stats.TotalPools),
		zap.Uint64("total_swaps", stats.TotalSwaps),
	)
	return nil
}
