// Package ledger provides the in-memory asset ledger the engine settles
// against when running standalone, plus callback helpers that pay for pool
// operations from a funded account.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInsufficientBalance is returned when a transfer exceeds the sender's
// balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

type account struct {
	asset  common.Address
	holder common.Address
}

// Memory is a thread-safe in-memory balance ledger.
type Memory struct {
	mu       sync.Mutex
	balances map[account]*uint256.Int
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[account]*uint256.Int)}
}

// BalanceOf returns a copy of the holder's balance of the asset.
func (m *Memory) BalanceOf(asset, holder common.Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[account{asset, holder}]
	if !ok {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(balance)
}

// Transfer moves amount of asset between holders.
func (m *Memory) Transfer(asset, from, to common.Address, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.balances[account{asset, from}]
	if !ok || source.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s of %s from %s", ErrInsufficientBalance, amount.Dec(), asset.Hex(), from.Hex())
	}
	source.Sub(source, amount)

	dest, ok := m.balances[account{asset, to}]
	if !ok {
		dest = new(uint256.Int)
		m.balances[account{asset, to}] = dest
	}
	dest.Add(dest, amount)
	return nil
}

// Credit creates amount of asset in the holder's balance out of nothing.
// This is the funding primitive for scenarios and tests.
func (m *Memory) Credit(asset, holder common.Address, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance, ok := m.balances[account{asset, holder}]
	if !ok {
		balance = new(uint256.Int)
		m.balances[account{asset, holder}] = balance
	}
	balance.Add(balance, amount)
}
