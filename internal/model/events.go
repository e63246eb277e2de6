package model

import "encoding/json"

// Event names emitted by the engine.
const (
	EventInitialize = "initialize"
	EventMint       = "mint"
	EventBurn       = "burn"
	EventCollect    = "collect"
	EventSwap       = "swap"
	EventFlash      = "flash"
)

// Event is one completed pool operation enriched with metadata. Sequence is
// per-run and strictly increasing; amounts are decimal strings.
type Event struct {
	Sequence  uint64      `json:"sequence"`
	Timestamp uint32      `json:"timestamp"`
	Pool      string      `json:"pool"`
	Name      string      `json:"name"`
	Payload   interface{} `json:"payload"`
}

// EventRecord is the JSON representation used when reading events back.
type EventRecord struct {
	Sequence  uint64          `json:"sequence"`
	Timestamp uint32          `json:"timestamp"`
	Pool      string          `json:"pool"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
}

// InitializeEventData is the initialize payload.
type InitializeEventData struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// SwapEventData is the swap payload.
type SwapEventData struct {
	Recipient    string `json:"recipient"`
	ZeroForOne   bool   `json:"zero_for_one"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// MintEventData is the mint payload.
type MintEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// BurnEventData is the burn payload.
type BurnEventData struct {
	Owner     string `json:"owner"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount    string `json:"amount"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// CollectEventData is the collect payload.
type CollectEventData struct {
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	TickLower int32  `json:"tick_lower"`
	TickUpper int32  `json:"tick_upper"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
}

// FlashEventData is the flash payload. Paid amounts are what actually came
// back above principal.
type FlashEventData struct {
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Paid0     string `json:"paid0"`
	Paid1     string `json:"paid1"`
}
