package scenario

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/ledger"
	"liquidityCore/internal/model"
	"liquidityCore/internal/pool"
	"liquidityCore/internal/storage"
	"liquidityCore/internal/tickmath"
)

// RunConfig holds runtime settings for a scenario replay.
type RunConfig struct {
	PoolAddress common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int
	StartTime   uint32
}

// Runner applies scripted operations to a single pool and records the
// resulting events. Time only moves via explicit advance ops, so replays are
// deterministic.
type Runner struct {
	cfg     RunConfig
	ledger  *ledger.Memory
	pool    *pool.Pool
	storage storage.Storage
	logger  *zap.Logger

	now      uint32
	sequence uint64
	events   []model.Event
}

// NewRunner builds a Runner and its pool.
func NewRunner(cfg RunConfig, storageSink storage.Storage, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StartTime == 0 {
		cfg.StartTime = 1
	}

	r := &Runner{
		cfg:     cfg,
		ledger:  ledger.NewMemory(),
		storage: storageSink,
		logger:  logger,
		now:     cfg.StartTime,
	}

	p, err := pool.New(pool.Config{
		Address:     cfg.PoolAddress,
		Token0:      cfg.Token0,
		Token1:      cfg.Token1,
		Fee:         cfg.Fee,
		TickSpacing: cfg.TickSpacing,
		Ledger:      r.ledger,
		Logger:      logger,
		Clock:       func() uint32 { return r.now },
	})
	if err != nil {
		return nil, err
	}
	r.pool = p
	return r, nil
}

// Pool exposes the pool under replay, mainly for inspection after Run.
func (r *Runner) Pool() *pool.Pool { return r.pool }

// Events returns the events recorded so far, in order.
func (r *Runner) Events() []model.Event { return r.events }

// Run applies every op in order, failing fast on the first error, then
// flushes the recorded events.
func (r *Runner) Run(ctx context.Context, ops []Op) error {
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}

	for i, op := range ops {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := r.apply(op); err != nil {
			return fmt.Errorf("op %d (%s): %w", i+1, op.Op, err)
		}
	}

	if err := r.storage.PutEventBatch(r.events); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	r.logger.Info("scenario complete",
		zap.Int("ops", len(ops)),
		zap.Int("events", len(r.events)),
	)
	return nil
}

func (r *Runner) apply(op Op) error {
	switch op.Op {
	case OpAdvance:
		r.now += op.Seconds
		return nil
	case OpCredit:
		return r.applyCredit(op)
	case OpInitialize:
		return r.applyInitialize(op)
	case OpMint:
		return r.applyMint(op)
	case OpBurn:
		return r.applyBurn(op)
	case OpCollect:
		return r.applyCollect(op)
	case OpSwap:
		return r.applySwap(op)
	case OpFlash:
		return r.applyFlash(op)
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

func (r *Runner) applyCredit(op Op) error {
	account := common.HexToAddress(op.Account)
	amount0, err := parseAmount(op.Amount0)
	if err != nil {
		return err
	}
	amount1, err := parseAmount(op.Amount1)
	if err != nil {
		return err
	}
	if !amount0.IsZero() {
		r.ledger.Credit(r.cfg.Token0, account, amount0)
	}
	if !amount1.IsZero() {
		r.ledger.Credit(r.cfg.Token1, account, amount1)
	}
	return nil
}

func (r *Runner) applyInitialize(op Op) error {
	price, err := uint256.FromDecimal(op.SqrtPriceX96)
	if err != nil {
		return fmt.Errorf("bad sqrt_price_x96: %w", err)
	}
	if err := r.pool.Initialize(price); err != nil {
		return err
	}

	_, tick, _, _, _ := r.pool.Slot0()
	r.record(model.EventInitialize, model.InitializeEventData{
		SqrtPriceX96: op.SqrtPriceX96,
		Tick:         int32(tick),
	})
	return nil
}

func (r *Runner) applyMint(op Op) error {
	account := common.HexToAddress(op.Account)
	amount, err := uint256.FromDecimal(op.Amount)
	if err != nil {
		return fmt.Errorf("bad amount: %w", err)
	}

	payer := r.payer(account)
	amount0, amount1, err := r.pool.Mint(account, int(op.TickLower), int(op.TickUpper), amount, payer, nil)
	if err != nil {
		return err
	}

	r.record(model.EventMint, model.MintEventData{
		Owner:     account.Hex(),
		TickLower: op.TickLower,
		TickUpper: op.TickUpper,
		Amount:    amount.Dec(),
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
	})
	return nil
}

func (r *Runner) applyBurn(op Op) error {
	account := common.HexToAddress(op.Account)
	amount, err := uint256.FromDecimal(op.Amount)
	if err != nil {
		return fmt.Errorf("bad amount: %w", err)
	}

	amount0, amount1, err := r.pool.Burn(account, int(op.TickLower), int(op.TickUpper), amount)
	if err != nil {
		return err
	}

	r.record(model.EventBurn, model.BurnEventData{
		Owner:     account.Hex(),
		TickLower: op.TickLower,
		TickUpper: op.TickUpper,
		Amount:    amount.Dec(),
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
	})
	return nil
}

func (r *Runner) applyCollect(op Op) error {
	account := common.HexToAddress(op.Account)
	recipient := account
	if op.Recipient != "" {
		recipient = common.HexToAddress(op.Recipient)
	}
	requested0, err := parseAmountDefaultMax(op.Amount0)
	if err != nil {
		return err
	}
	requested1, err := parseAmountDefaultMax(op.Amount1)
	if err != nil {
		return err
	}

	amount0, amount1, err := r.pool.Collect(account, recipient, int(op.TickLower), int(op.TickUpper), requested0, requested1)
	if err != nil {
		return err
	}

	r.record(model.EventCollect, model.CollectEventData{
		Owner:     account.Hex(),
		Recipient: recipient.Hex(),
		TickLower: op.TickLower,
		TickUpper: op.TickUpper,
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
	})
	return nil
}

func (r *Runner) applySwap(op Op) error {
	account := common.HexToAddress(op.Account)
	recipient := account
	if op.Recipient != "" {
		recipient = common.HexToAddress(op.Recipient)
	}
	amountIn, err := uint256.FromDecimal(op.Amount)
	if err != nil {
		return fmt.Errorf("bad amount: %w", err)
	}
	limit, err := swapLimit(op.SqrtPriceLimitX96, op.ZeroForOne)
	if err != nil {
		return err
	}

	payer := r.payer(account)
	amount0, amount1, err := r.pool.Swap(recipient, op.ZeroForOne, amountIn, limit, payer, nil)
	if err != nil {
		return err
	}

	price, tick, _, _, _ := r.pool.Slot0()
	r.record(model.EventSwap, model.SwapEventData{
		Recipient:    recipient.Hex(),
		ZeroForOne:   op.ZeroForOne,
		Amount0:      amount0.String(),
		Amount1:      amount1.String(),
		SqrtPriceX96: price.Dec(),
		Liquidity:    r.pool.Liquidity().Dec(),
		Tick:         int32(tick),
	})
	return nil
}

func (r *Runner) applyFlash(op Op) error {
	account := common.HexToAddress(op.Account)
	amount0, err := parseAmount(op.Amount0)
	if err != nil {
		return err
	}
	amount1, err := parseAmount(op.Amount1)
	if err != nil {
		return err
	}

	balance0Before := r.ledger.BalanceOf(r.cfg.Token0, r.cfg.PoolAddress)
	balance1Before := r.ledger.BalanceOf(r.cfg.Token1, r.cfg.PoolAddress)

	repayer := &ledger.FlashRepayer{
		Ledger:  r.ledger,
		Account: account,
		Pool:    r.cfg.PoolAddress,
		Token0:  r.cfg.Token0,
		Token1:  r.cfg.Token1,
		Amount0: amount0,
		Amount1: amount1,
	}
	if err := r.pool.Flash(account, amount0, amount1, repayer, nil); err != nil {
		return err
	}

	paid0 := new(uint256.Int).Sub(r.ledger.BalanceOf(r.cfg.Token0, r.cfg.PoolAddress), balance0Before)
	paid1 := new(uint256.Int).Sub(r.ledger.BalanceOf(r.cfg.Token1, r.cfg.PoolAddress), balance1Before)
	r.record(model.EventFlash, model.FlashEventData{
		Recipient: account.Hex(),
		Amount0:   amount0.Dec(),
		Amount1:   amount1.Dec(),
		Paid0:     paid0.Dec(),
		Paid1:     paid1.Dec(),
	})
	return nil
}

func (r *Runner) payer(account common.Address) *ledger.Payer {
	return &ledger.Payer{
		Ledger:  r.ledger,
		Account: account,
		Pool:    r.cfg.PoolAddress,
		Token0:  r.cfg.Token0,
		Token1:  r.cfg.Token1,
	}
}

func (r *Runner) record(name string, payload interface{}) {
	r.sequence++
	r.events = append(r.events, model.Event{
		Sequence:  r.sequence,
		Timestamp: r.now,
		Pool:      r.cfg.PoolAddress.Hex(),
		Name:      name,
		Payload:   payload,
	})
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return v, nil
}

func parseAmountDefaultMax(s string) (*uint256.Int, error) {
	if s == "" {
		// Collect everything owed when no cap is given.
		return new(uint256.Int).SetAllOne(), nil
	}
	return parseAmount(s)
}

func swapLimit(s string, zeroForOne bool) (*uint256.Int, error) {
	if s == "" {
		if zeroForOne {
			return new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1), nil
		}
		return new(uint256.Int).Sub(tickmath.MaxSqrtRatio, uint256.NewInt(1)), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("bad sqrt_price_limit_x96: %w", err)
	}
	return v, nil
}
