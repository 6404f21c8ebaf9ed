package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"musdScope/internal/calc"
	"musdScope/internal/config"
	"musdScope/internal/store"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Print stored entities as JSON",
	}
	addStoreFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().Int("limit", 50, "maximum rows for list queries")
	cmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	sub := []struct {
		use, short string
		args       int
		fn         func(ctx context.Context, st *store.Store, arg string, limit int) (interface{}, error)
	}{
		{"stats", "Protocol-wide aggregates", 0, queryStats},
		{"user <address>", "User balances and liquidity positions", 1, queryUser},
		{"pool <address>", "Pool state", 1, func(ctx context.Context, st *store.Store, addr string, _ int) (interface{}, error) {
			return st.Pool(ctx, addr)
		}},
		{"pools", "All pools", 0, func(ctx context.Context, st *store.Store, _ string, _ int) (interface{}, error) {
			return st.Pools(ctx)
		}},
		{"position <address>", "SuperStake position", 1, func(ctx context.Context, st *store.Store, addr string, _ int) (interface{}, error) {
			return st.SuperStakePosition(ctx, addr)
		}},
		{"history <address>", "SuperStake history, newest first", 1, func(ctx context.Context, st *store.Store, addr string, limit int) (interface{}, error) {
			return st.SuperStakeHistory(ctx, addr, limit)
		}},
		{"snapshots <address>", "mUSD position snapshots, newest first", 1, func(ctx context.Context, st *store.Store, addr string, limit int) (interface{}, error) {
			return st.MUSDPositions(ctx, addr, limit)
		}},
		{"swaps <pool>", "Pool swaps, newest first", 1, func(ctx context.Context, st *store.Store, addr string, limit int) (interface{}, error) {
			return st.SwapsByPool(ctx, addr, limit)
		}},
		{"cursor", "Last applied event and scanned block", 0, queryCursor},
	}

	for _, s := range sub {
		s := s
		cmd.AddCommand(&cobra.Command{
			Use:   s.use,
			Short: s.short,
			Args:  cobra.ExactArgs(s.args),
			RunE: func(c *cobra.Command, args []string) error {
				arg := ""
				if len(args) > 0 {
					arg = strings.ToLower(strings.TrimSpace(args[0]))
				}
				return runQuery(c, arg, s.fn)
			},
		})
	}
	return cmd
}

func runQuery(cmd *cobra.Command, arg string, fn func(context.Context, *store.Store, string, int) (interface{}, error)) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuery(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := fn(ctx, st, arg, cfg.Limit)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func queryStats(ctx context.Context, st *store.Store, _ string, _ int) (interface{}, error) {
	stats, err := st.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"stats":           stats,
		"mint_percentage": calc.ToPercentage(stats.MintPercentageBps),
	}, nil
}

func queryUser(ctx context.Context, st *store.Store, addr string, _ int) (interface{}, error) {
	user, err := st.User(ctx, addr)
	if err != nil {
		return nil, err
	}
	lps, err := st.LiquidityPositionsByUser(ctx, addr)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"user":                user,
		"liquidity_positions": lps,
	}, nil
}

func queryCursor(ctx context.Context, st *store.Store, _ string, _ int) (interface{}, error) {
	cursor, found, err := st.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	scanned, scannedOK, err := st.LoadCheckpoint(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if found {
		out["cursor"] = cursor
	}
	if scannedOK {
		out["last_scanned_block"] = scanned
	}
	return out, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
