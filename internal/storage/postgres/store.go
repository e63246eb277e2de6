package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityCore/internal/model"
)

// Store provides Postgres persistence for pool state and engine events.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPoolStates inserts or updates fetched pool descriptions.
func (s *Store) UpsertPoolStates(ctx context.Context, states []model.PoolState) error {
	if len(states) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, st := range states {
		batch.Queue(`
			INSERT INTO pool_states (
				chain_id, pool_address, token0, token1, fee, tick_spacing,
				sqrt_price_x96, tick, liquidity, block_number, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
				tick = EXCLUDED.tick,
				liquidity = EXCLUDED.liquidity,
				block_number = GREATEST(pool_states.block_number, EXCLUDED.block_number),
				updated_at = now()
		`,
			int64(st.ChainID),
			st.Address,
			st.Token0,
			st.Token1,
			st.Fee,
			st.TickSpacing,
			st.SqrtPriceX96,
			st.Tick,
			st.Liquidity,
			int64(st.BlockNumber),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range states {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutEventBatch appends engine events.
func (s *Store) PutEventBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		batch.Queue(`
			INSERT INTO pool_events (pool_address, sequence, event_name, event_ts, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (pool_address, sequence) DO NOTHING
		`,
			ev.Pool,
			int64(ev.Sequence),
			ev.Name,
			int64(ev.Timestamp),
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot upserts a pool's serialized state.
func (s *Store) SaveSnapshot(ctx context.Context, snap *model.PoolSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (pool_address, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (pool_address) DO UPDATE
		SET state = EXCLUDED.state, updated_at = now()
	`, snap.Address, data)
	return err
}

// LoadSnapshot returns a pool's serialized state, reporting found=false when
// none has been saved.
func (s *Store) LoadSnapshot(ctx context.Context, poolAddress string) (*model.PoolSnapshot, bool, error) {
	if poolAddress == "" {
		return nil, false, fmt.Errorf("pool address required")
	}
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT state FROM pool_snapshots WHERE pool_address=$1`, poolAddress)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var snap model.PoolSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, true, nil
}
