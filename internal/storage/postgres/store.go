package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityEngine/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id         BIGINT      NOT NULL,
	pool_address     TEXT        NOT NULL,
	token0           TEXT        NOT NULL,
	token1           TEXT        NOT NULL,
	fee              INTEGER     NOT NULL,
	tick_spacing     INTEGER     NOT NULL,
	owner            TEXT        NOT NULL DEFAULT '',
	source           TEXT        NOT NULL DEFAULT '',
	first_seen_block BIGINT      NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address)
);
CREATE TABLE IF NOT EXISTS pool_window_metrics (
	chain_id            BIGINT      NOT NULL,
	pool_address        TEXT        NOT NULL,
	window_size_seconds BIGINT      NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT      NOT NULL,
	ticks_crossed       BIGINT      NOT NULL,
	volume0             NUMERIC     NOT NULL,
	volume1             NUMERIC     NOT NULL,
	fee0                NUMERIC     NOT NULL,
	fee1                NUMERIC     NOT NULL,
	fee_rate0           NUMERIC,
	fee_rate1           NUMERIC,
	tvl0                NUMERIC,
	tvl1                NUMERIC,
	apr                 NUMERIC,
	open_price          NUMERIC     NOT NULL,
	close_price         NUMERIC     NOT NULL,
	close_tick          INTEGER     NOT NULL,
	fee_method          TEXT        NOT NULL,
	tvl_method          TEXT        NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address, window_size_seconds, window_start_ts)
);
CREATE TABLE IF NOT EXISTS pool_snapshots (
	chain_id                 BIGINT      NOT NULL,
	pool_address             TEXT        NOT NULL,
	block_number             BIGINT      NOT NULL,
	block_timestamp          BIGINT      NOT NULL,
	sqrt_price_x96           NUMERIC     NOT NULL,
	tick                     INTEGER     NOT NULL,
	observation_index        INTEGER     NOT NULL,
	observation_cardinality  INTEGER     NOT NULL,
	fee_protocol             SMALLINT    NOT NULL,
	liquidity                NUMERIC     NOT NULL,
	fee_growth_global0_x128  NUMERIC     NOT NULL,
	fee_growth_global1_x128  NUMERIC     NOT NULL,
	protocol_fees0           NUMERIC     NOT NULL,
	protocol_fees1           NUMERIC     NOT NULL,
	balance0                 NUMERIC     NOT NULL,
	balance1                 NUMERIC     NOT NULL,
	initialized_ticks        INTEGER     NOT NULL,
	price                    NUMERIC     NOT NULL,
	taken_at                 TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS engine_state (
	name       TEXT        PRIMARY KEY,
	last_block BIGINT      NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for pools, window metrics, snapshots and follow state.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, token0, token1, fee, tick_spacing, owner, source, first_seen_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				owner = EXCLUDED.owner,
				source = EXCLUDED.source,
				first_seen_block = LEAST(pools.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.Token0,
			pool.Token1,
			pool.Fee,
			pool.TickSpacing,
			pool.Owner,
			pool.Source,
			int64(pool.FirstSeenBlock),
		)
	}
	return sendBatch(ctx, s.pool, batch, len(pools))
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, ticks_crossed, volume0, volume1, fee0, fee1, fee_rate0, fee_rate1,
				tvl0, tvl1, apr, open_price, close_price, close_tick, fee_method, tvl_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,now(),now())
			ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				ticks_crossed = EXCLUDED.ticks_crossed,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				fee_rate0 = EXCLUDED.fee_rate0,
				fee_rate1 = EXCLUDED.fee_rate1,
				tvl0 = EXCLUDED.tvl0,
				tvl1 = EXCLUDED.tvl1,
				apr = EXCLUDED.apr,
				open_price = EXCLUDED.open_price,
				close_price = EXCLUDED.close_price,
				close_tick = EXCLUDED.close_tick,
				fee_method = EXCLUDED.fee_method,
				tvl_method = EXCLUDED.tvl_method,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.TicksCrossed),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.FeeRate0,
			m.FeeRate1,
			m.TVL0,
			m.TVL1,
			m.APR,
			m.OpenPrice,
			m.ClosePrice,
			m.CloseTick,
			m.FeeMethod,
			m.TVLMethod,
		)
	}
	return sendBatch(ctx, s.pool, batch, len(metrics))
}

// InsertSnapshot appends a pool head snapshot.
func (s *Store) InsertSnapshot(ctx context.Context, snap model.PoolSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_snapshots (
			chain_id, pool_address, block_number, block_timestamp, sqrt_price_x96, tick,
			observation_index, observation_cardinality, fee_protocol, liquidity,
			fee_growth_global0_x128, fee_growth_global1_x128, protocol_fees0, protocol_fees1,
			balance0, balance1, initialized_ticks, price, taken_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`,
		int64(snap.ChainID),
		snap.PoolAddress,
		int64(snap.BlockNumber),
		int64(snap.Timestamp),
		snap.Slot0.SqrtPriceX96,
		snap.Slot0.Tick,
		int32(snap.Slot0.ObservationIndex),
		int32(snap.Slot0.ObservationCardinality),
		int16(snap.Slot0.FeeProtocol),
		snap.Liquidity,
		snap.FeeGrowthGlobal0X128,
		snap.FeeGrowthGlobal1X128,
		snap.ProtocolFees0,
		snap.ProtocolFees1,
		snap.Balance0,
		snap.Balance1,
		snap.InitializedTicks,
		snap.Price,
		snap.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// LoadState returns the last processed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM engine_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engine_state (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, int64(block))
	return err
}

func sendBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch, n int) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}
