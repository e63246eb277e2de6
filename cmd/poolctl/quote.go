package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityCore/internal/config"
	"liquidityCore/internal/ledger"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/tickmath"
)

type quoteResult struct {
	Pool         string `json:"pool"`
	ZeroForOne   bool   `json:"zero_for_one"`
	AmountIn     string `json:"amount_in"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Snapshot == "" {
		return fmt.Errorf("snapshot path is required")
	}
	if cfg.Amount == "" {
		return fmt.Errorf("amount is required")
	}

	amount, err := uint256.FromDecimal(cfg.Amount)
	if err != nil {
		return fmt.Errorf("bad amount: %w", err)
	}

	var limit *uint256.Int
	if cfg.SqrtPriceLimitX96 != "" {
		limit, err = uint256.FromDecimal(cfg.SqrtPriceLimitX96)
		if err != nil {
			return fmt.Errorf("bad sqrt price limit: %w", err)
		}
	} else if cfg.ZeroForOne {
		limit = new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1)
	} else {
		limit = new(uint256.Int).Sub(tickmath.MaxSqrtRatio, uint256.NewInt(1))
	}

	store := &storage.FileSnapshotStore{Path: cfg.Snapshot}
	snap, found, err := store.Load()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("snapshot not found: %s", cfg.Snapshot)
	}

	// Quoting never settles, so a throwaway ledger suffices.
	p, err := pool.FromSnapshot(snap, ledger.NewMemory(), logger, nil)
	if err != nil {
		return err
	}

	amount0, amount1, err := p.Quote(cfg.ZeroForOne, amount, limit)
	if err != nil {
		return err
	}

	price, tick, _, _, _ := p.Slot0()
	result := quoteResult{
		Pool:         snap.Address,
		ZeroForOne:   cfg.ZeroForOne,
		AmountIn:     amount.Dec(),
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: price.Dec(),
		Tick:         int32(tick),
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))

	logger.Debug("quote complete", zap.String("amount0", result.Amount0), zap.String("amount1", result.Amount1))
	return nil
}
