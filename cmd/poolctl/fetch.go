package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityCore/internal/chain"
	"liquidityCore/internal/config"
	"liquidityCore/internal/model"
	"liquidityCore/internal/storage/postgres"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Pool) {
		return fmt.Errorf("pool address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	state, err := chain.FetchPoolState(ctx, client, common.HexToAddress(cfg.Pool), cfg.Block, chain.ReadConfig{
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("pool state fetched",
		zap.String("pool", state.Address),
		zap.Uint64("chain_id", state.ChainID),
		zap.Uint64("block", state.BlockNumber),
		zap.Int32("tick", state.Tick),
	)

	if cfg.Out != "" {
		if err := writePoolState(cfg.Out, state); err != nil {
			return err
		}
		logger.Info("pool state written", zap.String("path", cfg.Out))
	}

	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()

		if err := pg.UpsertPoolStates(ctx, []model.PoolState{state}); err != nil {
			return fmt.Errorf("store pool state: %w", err)
		}
		logger.Info("pool state persisted")
	}

	return nil
}

func writePoolState(path string, state model.PoolState) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pool state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write pool state: %w", err)
	}
	return nil
}
