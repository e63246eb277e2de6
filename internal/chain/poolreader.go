package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

// ReadConfig controls retries for pool reads.
type ReadConfig struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// FetchPoolState reads a pool's immutable parameters and current slot0 at a
// block height (zero means latest). Each call retries with exponential
// backoff.
func FetchPoolState(ctx context.Context, client *Client, pool common.Address, blockNumber uint64, cfg ReadConfig, logger *zap.Logger) (model.PoolState, error) {
	if client == nil {
		return model.PoolState{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return model.PoolState{}, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	var blockPtr *big.Int
	if blockNumber == 0 {
		latest, err := client.LatestBlockNumber(ctx)
		if err != nil {
			return model.PoolState{}, fmt.Errorf("get latest block: %w", err)
		}
		blockNumber = latest
	}
	blockPtr = new(big.Int).SetUint64(blockNumber)

	call := func(method string) ([]interface{}, error) {
		var values []interface{}
		err := withRetry(ctx, cfg.MaxRetries, cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			values, err = callPoolMethod(ctx, client, pool, parsed, method, blockPtr)
			if err != nil {
				logger.Warn("pool read failed", zap.String("method", method), zap.String("pool", pool.Hex()), zap.Error(err))
			}
			return err
		})
		return values, err
	}

	state := model.PoolState{
		ChainID:     chainID.Uint64(),
		Address:     pool.Hex(),
		BlockNumber: blockNumber,
	}

	values, err := call("token0")
	if err != nil {
		return model.PoolState{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token0: %w", err)
	}
	state.Token0 = token0.Hex()

	values, err = call("token1")
	if err != nil {
		return model.PoolState{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("token1: %w", err)
	}
	state.Token1 = token1.Hex()

	values, err = call("fee")
	if err != nil {
		return model.PoolState{}, err
	}
	feeInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("fee: %w", err)
	}
	state.Fee = uint32(feeInt.Uint64())

	values, err = call("tickSpacing")
	if err != nil {
		return model.PoolState{}, err
	}
	spacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick spacing: %w", err)
	}
	spacing, err := int24FromBig(spacingInt)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("tick spacing: %w", err)
	}
	state.TickSpacing = spacing

	values, err = call("liquidity")
	if err != nil {
		return model.PoolState{}, err
	}
	liq, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("liquidity: %w", err)
	}
	state.Liquidity = liq.String()

	values, err = call("slot0")
	if err != nil {
		return model.PoolState{}, err
	}
	if len(values) < 2 {
		return model.PoolState{}, fmt.Errorf("slot0: unexpected result arity %d", len(values))
	}
	sqrt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("slot0 sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return model.PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}
	state.SqrtPriceX96 = sqrt.String()
	state.Tick = tick

	return state, nil
}

func callPoolMethod(ctx context.Context, client *Client, pool common.Address, parsed abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pool, Data: data}
	resp, err := client.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
