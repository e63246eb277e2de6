package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityCore/internal/config"
	"liquidityCore/internal/model"
	"liquidityCore/internal/scenario"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "poolctl",
		Short:        "Concentrated-liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay an operation script against a local pool",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("pool", "", "pool address")
	simulateCmd.Flags().String("token0", "", "token0 address (must sort below token1)")
	simulateCmd.Flags().String("token1", "", "token1 address")
	simulateCmd.Flags().Uint32("fee", 3000, "fee in parts per million")
	simulateCmd.Flags().Int("tick-spacing", 60, "tick spacing")
	simulateCmd.Flags().Uint32("start-time", 1, "scenario start timestamp (unix seconds)")
	simulateCmd.Flags().String("ops", "", "input operations JSONL")
	simulateCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	simulateCmd.Flags().String("snapshot", "", "optional snapshot output path")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for events and snapshot")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against a saved pool snapshot",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("snapshot", "", "pool snapshot path")
	quoteCmd.Flags().Bool("zero-for-one", true, "swap direction")
	quoteCmd.Flags().String("amount", "", "exact input amount")
	quoteCmd.Flags().String("sqrt-price-limit", "", "optional price limit (Q64.96 decimal)")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch live pool state over RPC",
		RunE:  runFetch,
	}

	fetchCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	fetchCmd.Flags().String("pool", "", "pool address")
	fetchCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	fetchCmd.Flags().String("out", "./data/pool_state.json", "output JSON path")
	fetchCmd.Flags().String("pg-dsn", "", "optional Postgres DSN")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Ops == "" {
		return fmt.Errorf("ops file is required")
	}
	if !common.IsHexAddress(cfg.Pool) || !common.IsHexAddress(cfg.Token0) || !common.IsHexAddress(cfg.Token1) {
		return fmt.Errorf("pool, token0 and token1 addresses are required")
	}

	opsFile, err := os.Open(cfg.Ops)
	if err != nil {
		return fmt.Errorf("open ops file: %w", err)
	}
	defer opsFile.Close()

	ops, err := scenario.ParseOps(opsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := scenario.NewRunner(scenario.RunConfig{
		PoolAddress: common.HexToAddress(cfg.Pool),
		Token0:      common.HexToAddress(cfg.Token0),
		Token1:      common.HexToAddress(cfg.Token1),
		Fee:         cfg.Fee,
		TickSpacing: cfg.TickSpacing,
		StartTime:   cfg.StartTime,
	}, storage.NewJsonlStorage(cfg.Out), logger)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("pool", cfg.Pool),
		zap.Int("ops", len(ops)),
		zap.String("out", cfg.Out),
	)

	if err := runner.Run(ctx, ops); err != nil {
		return err
	}

	var snap *model.PoolSnapshot
	if cfg.Snapshot != "" || cfg.PGDSN != "" {
		if snap, err = runner.Pool().Snapshot(); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}

	if cfg.Snapshot != "" {
		store := &storage.FileSnapshotStore{Path: cfg.Snapshot}
		if err := store.Save(snap); err != nil {
			return err
		}
		logger.Info("snapshot saved", zap.String("path", cfg.Snapshot))
	}

	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		if err := pg.PutEventBatch(ctx, runner.Events()); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		if err := pg.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}
		logger.Info("postgres persisted", zap.Int("events", len(runner.Events())))
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
