package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"musdScope/internal/chain"
	"musdScope/internal/config"
	"musdScope/internal/contracts"
	"musdScope/internal/engine"
	"musdScope/internal/indexer"
	"musdScope/internal/observability"
	"musdScope/internal/publish"
	"musdScope/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "mUSD, RWA pool and SuperStake state indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Sync protocol state from the chain",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "RPC URL")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means confirmed head")
	runCmd.Flags().String("musd", "", "mUSD contract address")
	runCmd.Flags().String("superstake", "", "SuperStake contract address")
	runCmd.Flags().String("factory", "", "RWAPoolFactory contract address")
	runCmd.Flags().StringSlice("pool", nil, "pool addresses to follow before they are discovered (comma-separated)")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().Uint64("confirmations", 0, "blocks to stay behind the head")
	runCmd.Flags().Bool("follow", false, "keep polling for new blocks")
	runCmd.Flags().Duration("poll-interval", 5*time.Second, "head polling interval in follow mode")
	runCmd.Flags().String("raw-out", "", "optional JSONL path receiving every fetched raw log")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Bool("dedup", true, "skip events at or before the stored cursor instead of failing")
	runCmd.Flags().Bool("reset-open-on-reopen", false, "restamp openedAt when a closed SuperStake position reopens")
	runCmd.Flags().String("metrics-addr", ":9102", "address for /metrics, /healthz and /readyz (empty disables)")
	runCmd.Flags().String("nats-url", "", "NATS URL for entity change publication (empty disables)")
	addStoreFlags(runCmd.Flags())
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)
	root.AddCommand(newDecodeCmd())
	root.AddCommand(newReduceCmd())
	root.AddCommand(newQueryCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	static, factory, err := contractAddresses(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	decoder, err := contracts.NewDecoder()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	sources := indexer.NewSources(static, factory)

	engineCfg := engine.Config{
		Reader:            contracts.NewReader(chainClient, contracts.ReaderConfig{MaxRetries: cfg.MaxRetries, RetryDelay: cfg.RetryBackoff}, logger),
		Registry:          sources,
		Recorder:          metrics,
		Logger:            logger,
		RejectReplays:     !cfg.Dedup,
		ResetOpenOnReopen: cfg.ResetOpenOnReopen,
	}
	health := map[string]observability.Pinger{"store": st}
	if cfg.NATSURL != "" {
		pub, nc, err := publish.Connect(ctx, cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		engineCfg.Sink = pub
		health["nats"] = natsPinger{nc}
	}
	eng := engine.New(st, engineCfg)

	var tee storage.Storage = storage.Nop{}
	if cfg.RawOut != "" {
		tee = storage.NewJsonlStorage(cfg.RawOut)
	}

	runner, err := indexer.NewRunner(indexer.RunConfig{
		FromBlock:     cfg.FromBlock,
		ToBlock:       cfg.ToBlock,
		BatchSize:     cfg.BatchSize,
		Confirmations: cfg.Confirmations,
		Follow:        cfg.Follow,
		PollInterval:  cfg.PollInterval,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
	}, indexer.Deps{
		Chain:   chainClient,
		Decoder: decoder,
		Engine:  eng,
		Store:   st,
		Sources: sources,
		Tee:     tee,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info("indexer start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("static_addresses", len(static)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Uint64("confirmations", cfg.Confirmations),
		zap.Bool("follow", cfg.Follow),
		zap.String("store", cfg.Store.Backend),
		zap.Bool("dedup", cfg.Dedup),
		zap.Bool("nats", cfg.NATSURL != ""),
	)

	checker := observability.NewHealthChecker(health)
	checker.SetReady(true)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return observability.Serve(gctx, cfg.MetricsAddr, observability.NewMux(metrics, checker), logger)
		})
	}
	g.Go(func() error {
		defer cancel()
		return runner.Run(gctx)
	})
	return g.Wait()
}

func contractAddresses(cfg config.Config) ([]common.Address, common.Address, error) {
	var factory common.Address
	raw := []string{cfg.MUSDAddress, cfg.SuperStakeAddress, cfg.FactoryAddress}
	static, err := indexer.ParseAddresses(append(raw, cfg.Pools...))
	if err != nil {
		return nil, factory, err
	}
	if cfg.FactoryAddress != "" {
		if factory, err = indexer.ParseAddress(cfg.FactoryAddress); err != nil {
			return nil, factory, err
		}
	}
	return static, factory, nil
}

type natsPinger struct {
	nc *nats.Conn
}

func (p natsPinger) Ping(context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats: %s", p.nc.Status())
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
