package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/storage"
)

// ReplayerConfig describes the pool whose events are replayed.
type ReplayerConfig struct {
	Pool    pool.Config
	ChainID uint64
	// Strict turns a swap result that differs from the log into an error.
	Strict bool
}

// ReplayerDeps are optional collaborators of a Replayer.
type ReplayerDeps struct {
	Sink    pool.EventSink
	Metrics *metrics.EngineMetrics
	Follow  *metrics.FollowMetrics
	// OnBlock is told the block of every event before it is applied.
	OnBlock func(blockNumber uint64)
	Logger  *zap.Logger
}

// Replayer applies pool events observed on chain to a local engine. Payments are funded the
// way Simulator funds them, so only pool state is reproduced.
type Replayer struct {
	cfg     ReplayerConfig
	engine  *pool.Engine
	ledger  *ledger.Memory
	clock   *pool.ManualClock
	decoder *dex.V3PoolDecoder
	metas   *dex.PoolMetaCache
	follow  *metrics.FollowMetrics
	onBlock func(uint64)
	logger  *zap.Logger

	applied    int
	skipped    int
	mismatches int
	// last is the position of the latest applied event.
	last    model.LogRecord
	hasLast bool
}

func NewReplayer(cfg ReplayerConfig, deps ReplayerDeps) (*Replayer, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{})
	if err != nil {
		return nil, err
	}
	metas := dex.NewPoolMetaCache()
	metas.Set(cfg.Pool.Address, model.PoolMeta{
		Token0:      cfg.Pool.Token0.Hex(),
		Token1:      cfg.Pool.Token1.Hex(),
		Fee:         cfg.Pool.Fee,
		TickSpacing: cfg.Pool.TickSpacing,
	})

	r := &Replayer{
		cfg:     cfg,
		ledger:  ledger.NewMemory(),
		clock:   pool.NewManualClock(0),
		decoder: decoder,
		metas:   metas,
		follow:  deps.Follow,
		onBlock: deps.OnBlock,
		logger:  deps.Logger,
	}
	engine, err := pool.New(cfg.Pool, pool.Deps{
		Ledger:  r.ledger,
		Clock:   r.clock,
		Sink:    deps.Sink,
		Metrics: deps.Metrics,
		Logger:  deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	r.engine = engine
	return r, nil
}

func (r *Replayer) Engine() *pool.Engine { return r.engine }

func (r *Replayer) Ledger() *ledger.Memory { return r.ledger }

// Applied counts events applied to the engine.
func (r *Replayer) Applied() int { return r.applied }

// LastBlock is the block of the latest applied event.
func (r *Replayer) LastBlock() uint64 { return r.last.BlockNumber }

// Now is the engine clock, the time of the latest applied event.
func (r *Replayer) Now() uint32 { return r.clock.BlockTimestamp() }

// Skipped counts events dropped because they do not come after the last applied one, as
// happens when an archive overlaps a re-fetched range.
func (r *Replayer) Skipped() int { return r.skipped }

// Mismatches counts replayed swaps whose result differed from the log.
func (r *Replayer) Mismatches() int { return r.mismatches }

// HandleLogs applies a batch of logs in order.
func (r *Replayer) HandleLogs(ctx context.Context, records []model.LogRecord) error {
	for _, rec := range records {
		if err := r.ApplyLog(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// ApplyLog decodes a log of the pool and applies it. Logs of other addresses and events the
// pool ABI does not know are skipped.
func (r *Replayer) ApplyLog(ctx context.Context, rec model.LogRecord) error {
	if !strings.EqualFold(rec.Address, r.cfg.Pool.Address.Hex()) || !r.decoder.CanDecode(rec.Topic0()) {
		return nil
	}
	ev, err := r.decoder.Decode(rec, dex.DecodeContext{Context: ctx, PoolMetaCache: r.metas})
	if err != nil {
		return &EventError{
			Stage:       model.StageDecode,
			BlockNumber: rec.BlockNumber,
			LogIndex:    rec.LogIndex,
			Err:         err,
		}
	}
	return r.ApplyTyped(ctx, *ev)
}

// ReplayFile applies a JSONL file of either log records or typed event records.
func (r *Replayer) ReplayFile(ctx context.Context, path string) error {
	return storage.ReadJSONL(path, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var probe struct {
			EventName string `json:"event_name"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if probe.EventName != "" {
			var rec model.TypedEventRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			if !strings.EqualFold(rec.Address, r.cfg.Pool.Address.Hex()) {
				return nil
			}
			ev, err := rec.Typed()
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			return r.ApplyTyped(ctx, ev)
		}
		var rec model.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		return r.ApplyLog(ctx, rec)
	})
}

// ApplyTyped replays one decoded event. The engine clock is set to the event time. Events
// at or before the last applied position are skipped.
func (r *Replayer) ApplyTyped(_ context.Context, ev model.TypedEvent) error {
	pos := model.LogRecord{BlockNumber: ev.BlockNumber, LogIndex: ev.LogIndex}
	if r.hasLast && !r.last.Before(pos) {
		r.skipped++
		r.logger.Debug("skip replayed event",
			zap.Uint64("block", ev.BlockNumber),
			zap.Uint64("log_index", ev.LogIndex),
			zap.String("event", ev.EventName),
		)
		return nil
	}
	r.clock.Set(uint32(ev.Timestamp))
	if r.onBlock != nil {
		r.onBlock(ev.BlockNumber)
	}
	err := r.apply(ev)
	r.ledger.Commit()
	if err != nil {
		return &EventError{
			Stage:       model.StageReplay,
			BlockNumber: ev.BlockNumber,
			LogIndex:    ev.LogIndex,
			Err:         fmt.Errorf("%s: %w", ev.EventName, err),
		}
	}
	r.applied++
	r.last, r.hasLast = pos, true
	if r.follow != nil {
		r.follow.LogsReplayed.WithLabelValues(ev.EventName).Inc()
	}
	return nil
}

func (r *Replayer) apply(ev model.TypedEvent) error {
	switch d := ev.Decoded.(type) {
	case model.InitializeEventData:
		price, err := parseAmount("sqrt_price_x96", d.SqrtPriceX96)
		if err != nil {
			return err
		}
		return r.engine.Initialize(price)

	case model.MintEventData:
		sender, owner, err := twoAddresses(d.Sender, d.Owner)
		if err != nil {
			return err
		}
		amount, err := parseLiquidity("amount", d.Amount)
		if err != nil {
			return err
		}
		a0, a1, err := r.engine.Mint(sender, pool.MintParams{
			Recipient: owner,
			TickLower: d.TickLower,
			TickUpper: d.TickUpper,
			Amount:    amount,
			Callback: func(owed0, owed1 *uint256.Int, _ []byte) error {
				return payInto(r.ledger, r.cfg.Pool, sender, owed0, owed1)
			},
		})
		if err != nil {
			return err
		}
		return r.compareAmounts(ev, a0.Dec(), a1.Dec(), d.Amount0, d.Amount1)

	case model.BurnEventData:
		owner, err := parseAddress("owner", d.Owner, common.Address{})
		if err != nil {
			return err
		}
		amount, err := parseLiquidity("amount", d.Amount)
		if err != nil {
			return err
		}
		a0, a1, err := r.engine.Burn(owner, d.TickLower, d.TickUpper, amount)
		if err != nil {
			return err
		}
		return r.compareAmounts(ev, a0.Dec(), a1.Dec(), d.Amount0, d.Amount1)

	case model.CollectEventData:
		owner, recipient, err := twoAddresses(d.Owner, d.Recipient)
		if err != nil {
			return err
		}
		r0, err := parseLiquidity("amount0", d.Amount0)
		if err != nil {
			return err
		}
		r1, err := parseLiquidity("amount1", d.Amount1)
		if err != nil {
			return err
		}
		a0, a1, err := r.engine.Collect(owner, recipient, d.TickLower, d.TickUpper, r0, r1)
		if err != nil {
			return err
		}
		return r.compareAmounts(ev, a0.String(), a1.String(), d.Amount0, d.Amount1)

	case model.SwapEventData:
		return r.applySwap(ev, d)

	case model.FlashEventData:
		sender, recipient, err := twoAddresses(d.Sender, d.Recipient)
		if err != nil {
			return err
		}
		amounts, err := parseAmounts(d.Amount0, d.Amount1, d.Paid0, d.Paid1)
		if err != nil {
			return err
		}
		return r.engine.Flash(sender, pool.FlashParams{
			Recipient: recipient,
			Amount0:   amounts[0],
			Amount1:   amounts[1],
			Callback: func(_, _ *uint256.Int, _ []byte) error {
				return payInto(r.ledger, r.cfg.Pool, sender,
					new(uint256.Int).Add(amounts[0], amounts[2]),
					new(uint256.Int).Add(amounts[1], amounts[3]))
			},
		})

	case model.SetFeeProtocolEventData:
		return r.engine.SetFeeProtocol(r.cfg.Pool.Owner, d.FeeProtocol0New, d.FeeProtocol1New)

	case model.CollectProtocolEventData:
		recipient, err := parseAddress("recipient", d.Recipient, common.Address{})
		if err != nil {
			return err
		}
		r0, err := parseLiquidity("amount0", d.Amount0)
		if err != nil {
			return err
		}
		r1, err := parseLiquidity("amount1", d.Amount1)
		if err != nil {
			return err
		}
		a0, a1, err := r.engine.CollectProtocol(r.cfg.Pool.Owner, recipient, r0, r1)
		if err != nil {
			return err
		}
		return r.compareAmounts(ev, a0.String(), a1.String(), d.Amount0, d.Amount1)

	case model.IncreaseObservationCardinalityNextEventData:
		return r.engine.IncreaseObservationCardinalityNext(d.ObservationCardinalityNextNew)

	default:
		return fmt.Errorf("unsupported payload %T", ev.Decoded)
	}
}

// errDeltaMismatch aborts a trial swap whose deltas differ from the log.
var errDeltaMismatch = errors.New("swap deltas differ from log")

// applySwap reproduces a logged swap. The log does not say whether the input or the output was
// fixed, so exact input of the paid amount is tried first, then exact output of the received
// amount; a trial whose deltas differ from the log is reverted from its callback. When
// neither matches, the swap runs as exact input limited to the logged price.
func (r *Replayer) applySwap(ev model.TypedEvent, d model.SwapEventData) error {
	sender, recipient, err := twoAddresses(d.Sender, d.Recipient)
	if err != nil {
		return err
	}
	amount0, err := fullmath.ParseSigned(d.Amount0)
	if err != nil {
		return err
	}
	amount1, err := fullmath.ParseSigned(d.Amount1)
	if err != nil {
		return err
	}
	target, err := parseAmount("sqrt_price_x96", d.SqrtPriceX96)
	if err != nil {
		return err
	}

	var zeroForOne bool
	var amountIn, amountOut *uint256.Int
	switch {
	case amount0.Sign() > 0:
		zeroForOne, amountIn, amountOut = true, amount0, amount1
	case amount1.Sign() > 0:
		zeroForOne, amountIn, amountOut = false, amount1, amount0
	default:
		r.logger.Warn("swap without input, skipped", zap.Uint64("block_number", ev.BlockNumber), zap.Uint64("log_index", ev.LogIndex))
		return nil
	}

	swap := func(specified, limit *uint256.Int, exact bool) (*uint256.Int, *uint256.Int, error) {
		return r.engine.Swap(sender, pool.SwapParams{
			Recipient:         recipient,
			ZeroForOne:        zeroForOne,
			AmountSpecified:   specified,
			SqrtPriceLimitX96: limit,
			Callback: func(delta0, delta1 *uint256.Int, _ []byte) error {
				if exact && !r.matchesLog(delta0, delta1, amount0, amount1, target, d) {
					return errDeltaMismatch
				}
				return payInto(r.ledger, r.cfg.Pool, sender, positive(delta0), positive(delta1))
			},
		})
	}

	trials := []*uint256.Int{amountIn}
	if amountOut.Sign() < 0 {
		trials = append(trials, amountOut)
	}
	var a0, a1 *uint256.Int
	for _, specified := range trials {
		a0, a1, err = swap(specified, extremeLimit(zeroForOne), true)
		if err == nil || !errors.Is(err, errDeltaMismatch) {
			break
		}
	}
	if errors.Is(err, errDeltaMismatch) {
		limit := target
		current := r.engine.Slot0().SqrtPriceX96
		if limit.Eq(&current) {
			limit = extremeLimit(zeroForOne)
		}
		a0, a1, err = swap(amountIn, limit, false)
	}
	if err != nil {
		return err
	}

	slot0 := r.engine.Slot0()
	return r.report(ev, []fieldCheck{
		{"amount0", fullmath.SignedString(a0), d.Amount0},
		{"amount1", fullmath.SignedString(a1), d.Amount1},
		{"sqrt_price_x96", slot0.SqrtPriceX96.Dec(), d.SqrtPriceX96},
		{"tick", fmt.Sprint(slot0.Tick), fmt.Sprint(d.Tick)},
		{"liquidity", r.engine.Liquidity().String(), d.Liquidity},
	})
}

// matchesLog is called from inside a swap, after the pool head moved and before payment.
func (r *Replayer) matchesLog(delta0, delta1, amount0, amount1, price *uint256.Int, d model.SwapEventData) bool {
	slot0 := r.engine.Slot0()
	return delta0.Eq(amount0) && delta1.Eq(amount1) &&
		slot0.SqrtPriceX96.Eq(price) && slot0.Tick == d.Tick &&
		(d.Liquidity == "" || r.engine.Liquidity().String() == d.Liquidity)
}

type fieldCheck struct {
	field  string
	local  string
	logged string
}

func (r *Replayer) compareAmounts(ev model.TypedEvent, local0, local1, logged0, logged1 string) error {
	return r.report(ev, []fieldCheck{{"amount0", local0, logged0}, {"amount1", local1, logged1}})
}

// report counts and logs fields where the engine disagrees with the log.
func (r *Replayer) report(ev model.TypedEvent, checks []fieldCheck) error {
	var diffs []string
	for _, c := range checks {
		if c.logged == "" || c.local == c.logged {
			continue
		}
		diffs = append(diffs, fmt.Sprintf("%s local %s log %s", c.field, c.local, c.logged))
		if r.follow != nil {
			r.follow.SwapMismatches.WithLabelValues(c.field).Inc()
		}
	}
	if len(diffs) == 0 {
		return nil
	}
	r.mismatches++
	r.logger.Warn("replay mismatch",
		zap.String("event", ev.EventName),
		zap.Uint64("block_number", ev.BlockNumber),
		zap.Uint64("log_index", ev.LogIndex),
		zap.Strings("fields", diffs),
	)
	if r.cfg.Strict {
		return fmt.Errorf("result differs from log: %s", strings.Join(diffs, "; "))
	}
	return nil
}

func twoAddresses(a, b string) (common.Address, common.Address, error) {
	first, err := parseAddress("address", a, common.Address{})
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	second, err := parseAddress("address", b, first)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return first, second, nil
}

func parseAmounts(values ...string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(values))
	for i, v := range values {
		amount, err := parseAmount("amount", v)
		if err != nil {
			return nil, err
		}
		out[i] = amount
	}
	return out, nil
}
