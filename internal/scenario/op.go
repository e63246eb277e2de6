// Package scenario replays a JSONL operation script against a local pool
// backed by the in-memory ledger, emitting an event per applied operation.
package scenario

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Op is one scripted operation. Which fields apply depends on Op; amounts
// are decimal strings.
type Op struct {
	Op                string `json:"op"`
	Account           string `json:"account,omitempty"`
	Recipient         string `json:"recipient,omitempty"`
	TickLower         int32  `json:"tick_lower,omitempty"`
	TickUpper         int32  `json:"tick_upper,omitempty"`
	Amount            string `json:"amount,omitempty"`
	Amount0           string `json:"amount0,omitempty"`
	Amount1           string `json:"amount1,omitempty"`
	ZeroForOne        bool   `json:"zero_for_one,omitempty"`
	SqrtPriceX96      string `json:"sqrt_price_x96,omitempty"`
	SqrtPriceLimitX96 string `json:"sqrt_price_limit_x96,omitempty"`
	Seconds           uint32 `json:"seconds,omitempty"`
}

// Supported op names.
const (
	OpCredit     = "credit"
	OpInitialize = "initialize"
	OpMint       = "mint"
	OpBurn       = "burn"
	OpCollect    = "collect"
	OpSwap       = "swap"
	OpFlash      = "flash"
	OpAdvance    = "advance"
)

// ParseOps reads a JSONL script. Blank lines are skipped; a malformed line
// fails the whole parse with its line number.
func ParseOps(r io.Reader) ([]Op, error) {
	var ops []Op
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var op Op
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("parse op line %d: %w", lineNo, err)
		}
		if op.Op == "" {
			return nil, fmt.Errorf("parse op line %d: missing op name", lineNo)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ops: %w", err)
	}
	return ops, nil
}
