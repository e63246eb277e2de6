package model

// PoolSnapshot is the full serialized state of one pool: everything needed
// to resume exactly where it left off. Amounts are decimal strings since the
// underlying values are 256-bit.
type PoolSnapshot struct {
	Address                    string                `json:"address"`
	Token0                     string                `json:"token0"`
	Token1                     string                `json:"token1"`
	Fee                        uint32                `json:"fee"`
	TickSpacing                int32                 `json:"tick_spacing"`
	SqrtPriceX96               string                `json:"sqrt_price_x96"`
	Tick                       int32                 `json:"tick"`
	ObservationIndex           uint16                `json:"observation_index"`
	ObservationCardinality     uint16                `json:"observation_cardinality"`
	ObservationCardinalityNext uint16                `json:"observation_cardinality_next"`
	FeeGrowthGlobal0X128       string                `json:"fee_growth_global0_x128"`
	FeeGrowthGlobal1X128       string                `json:"fee_growth_global1_x128"`
	Liquidity                  string                `json:"liquidity"`
	Ticks                      []TickSnapshot        `json:"ticks"`
	Positions                  []PositionSnapshot    `json:"positions"`
	Observations               []ObservationSnapshot `json:"observations"`
}

// TickSnapshot is one initialized tick's state.
type TickSnapshot struct {
	Tick                  int32  `json:"tick"`
	LiquidityGross        string `json:"liquidity_gross"`
	LiquidityNet          string `json:"liquidity_net"`
	FeeGrowthOutside0X128 string `json:"fee_growth_outside0_x128"`
	FeeGrowthOutside1X128 string `json:"fee_growth_outside1_x128"`
}

// PositionSnapshot is one position record.
type PositionSnapshot struct {
	Owner                    string `json:"owner"`
	TickLower                int32  `json:"tick_lower"`
	TickUpper                int32  `json:"tick_upper"`
	Liquidity                string `json:"liquidity"`
	FeeGrowthInside0LastX128 string `json:"fee_growth_inside0_last_x128"`
	FeeGrowthInside1LastX128 string `json:"fee_growth_inside1_last_x128"`
	TokensOwed0              string `json:"tokens_owed0"`
	TokensOwed1              string `json:"tokens_owed1"`
}

// ObservationSnapshot is one oracle ring slot.
type ObservationSnapshot struct {
	BlockTimestamp uint32 `json:"block_timestamp"`
	TickCumulative int64  `json:"tick_cumulative"`
	Initialized    bool   `json:"initialized"`
}
