package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityEngine/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds signatures of forks that rename events, mapped to the V3 event name.
	Topic0Map map[string]string
}

// V3PoolDecoder decodes Uniswap V3 style pool events.
type V3PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewV3PoolDecoder builds a V3 pool decoder.
func NewV3PoolDecoder(cfg DecoderConfig) (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(EventNames)+len(cfg.Topic0Map))
	for _, name := range EventNames {
		topicToName[strings.ToLower(poolABI.Events[name].ID.Hex())] = name
	}
	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &V3PoolDecoder{
		poolABI:     poolABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *V3PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *V3PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	poolMeta, err := getPoolMeta(ctx, pool, log.BlockNumber)
	if err != nil {
		return nil, err
	}

	f, err := d.fields(log, name)
	if err != nil {
		return nil, err
	}
	decoded, err := decodePayload(name, &f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return buildTypedEvent(log, name, decoded, poolMeta), nil
}

func decodePayload(name string, f *eventFields) (interface{}, error) {
	var out interface{}
	switch name {
	case "Initialize":
		out = model.InitializeEventData{
			SqrtPriceX96: f.bigString("sqrtPriceX96"),
			Tick:         f.int24("tick"),
		}
	case "Swap":
		out = model.SwapEventData{
			Sender:       f.address("sender"),
			Recipient:    f.address("recipient"),
			Amount0:      f.bigString("amount0"),
			Amount1:      f.bigString("amount1"),
			SqrtPriceX96: f.bigString("sqrtPriceX96"),
			Liquidity:    f.bigString("liquidity"),
			Tick:         f.int24("tick"),
		}
	case "Mint":
		out = model.MintEventData{
			Sender:    f.address("sender"),
			Owner:     f.address("owner"),
			TickLower: f.int24("tickLower"),
			TickUpper: f.int24("tickUpper"),
			Amount:    f.bigString("amount"),
			Amount0:   f.bigString("amount0"),
			Amount1:   f.bigString("amount1"),
		}
	case "Burn":
		out = model.BurnEventData{
			Owner:     f.address("owner"),
			TickLower: f.int24("tickLower"),
			TickUpper: f.int24("tickUpper"),
			Amount:    f.bigString("amount"),
			Amount0:   f.bigString("amount0"),
			Amount1:   f.bigString("amount1"),
		}
	case "Collect":
		out = model.CollectEventData{
			Owner:     f.address("owner"),
			Recipient: f.address("recipient"),
			TickLower: f.int24("tickLower"),
			TickUpper: f.int24("tickUpper"),
			Amount0:   f.bigString("amount0"),
			Amount1:   f.bigString("amount1"),
		}
	case "Flash":
		out = model.FlashEventData{
			Sender:    f.address("sender"),
			Recipient: f.address("recipient"),
			Amount0:   f.bigString("amount0"),
			Amount1:   f.bigString("amount1"),
			Paid0:     f.bigString("paid0"),
			Paid1:     f.bigString("paid1"),
		}
	case "SetFeeProtocol":
		out = model.SetFeeProtocolEventData{
			FeeProtocol0Old: f.uint8("feeProtocol0Old"),
			FeeProtocol1Old: f.uint8("feeProtocol1Old"),
			FeeProtocol0New: f.uint8("feeProtocol0New"),
			FeeProtocol1New: f.uint8("feeProtocol1New"),
		}
	case "CollectProtocol":
		out = model.CollectProtocolEventData{
			Sender:    f.address("sender"),
			Recipient: f.address("recipient"),
			Amount0:   f.bigString("amount0"),
			Amount1:   f.bigString("amount1"),
		}
	case "IncreaseObservationCardinalityNext":
		out = model.IncreaseObservationCardinalityNextEventData{
			ObservationCardinalityNextOld: f.uint16("observationCardinalityNextOld"),
			ObservationCardinalityNextNew: f.uint16("observationCardinalityNextNew"),
		}
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if f.err != nil {
		return nil, f.err
	}
	return out, nil
}

func normalizeEventName(name string) string {
	trimmed := strings.TrimSpace(name)
	for _, known := range EventNames {
		if strings.EqualFold(trimmed, known) {
			return known
		}
	}
	return ""
}

func getPoolMeta(ctx DecodeContext, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	var meta model.PoolMeta
	var ok bool
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}
	if ok && !ctx.IncludeLiveMeta {
		return meta, nil
	}
	if ctx.Chain == nil {
		return model.PoolMeta{}, fmt.Errorf("no metadata for pool %s and no chain client", pool.Hex())
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	if !ok {
		var err error
		meta, err = FetchPoolMeta(callCtx, ctx.Chain, pool, ctx.TokenMetaCache, ctx.Logger)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, meta)
		}
	}

	if ctx.IncludeLiveMeta {
		if live, err := FetchPoolState(callCtx, ctx.Chain, pool, blockNumber); err == nil {
			meta.Liquidity = live.Liquidity
			meta.Slot0 = live.Slot0
			meta.FeeGrowthGlobal0X128 = live.FeeGrowthGlobal0X128
			meta.FeeGrowthGlobal1X128 = live.FeeGrowthGlobal1X128
		}
	}
	return meta, nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta model.PoolMeta) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    meta,
		Raw:         raw,
	}
}

// fields unpacks indexed topics and data of a log into one map keyed by argument name.
func (d *V3PoolDecoder) fields(log model.LogRecord, name string) (eventFields, error) {
	event := d.poolABI.Events[name]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return eventFields{}, err
	}
	values := make(map[string]interface{}, len(event.Inputs))
	if err := abi.ParseTopicsIntoMap(values, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return eventFields{}, fmt.Errorf("parse topics: %w", err)
	}
	data, err := hexutil.Decode(log.Data)
	if err != nil {
		return eventFields{}, fmt.Errorf("invalid data: %w", err)
	}
	if err := event.Inputs.NonIndexed().UnpackIntoMap(values, data); err != nil {
		return eventFields{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return eventFields{values: values}, nil
}

// eventFields reads typed values out of an unpacked event. The first failure is kept in err
// and later reads return zero values.
type eventFields struct {
	values map[string]interface{}
	err    error
}

func (f *eventFields) get(key string) (interface{}, bool) {
	if f.err != nil {
		return nil, false
	}
	v, ok := f.values[key]
	if !ok {
		f.err = fmt.Errorf("missing field %s", key)
	}
	return v, ok
}

func (f *eventFields) address(key string) string {
	v, ok := f.get(key)
	if !ok {
		return ""
	}
	addr, err := asAddress(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", key, err)
		return ""
	}
	return addr.Hex()
}

func (f *eventFields) bigInt(key string) *big.Int {
	v, ok := f.get(key)
	if !ok {
		return nil
	}
	n, err := asBigInt(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", key, err)
		return nil
	}
	return n
}

func (f *eventFields) bigString(key string) string {
	if n := f.bigInt(key); n != nil {
		return n.String()
	}
	return ""
}

func (f *eventFields) int24(key string) int32 {
	n := f.bigInt(key)
	if n == nil {
		return 0
	}
	v, err := int24FromBig(n)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", key, err)
	}
	return v
}

func (f *eventFields) uint8(key string) uint8 {
	v, ok := f.get(key)
	if !ok {
		return 0
	}
	n, err := asUint8(v)
	if err != nil {
		f.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (f *eventFields) uint16(key string) uint16 {
	n := f.bigInt(key)
	if n == nil {
		return 0
	}
	if !n.IsUint64() || n.Uint64() > 0xffff {
		f.err = fmt.Errorf("%s: uint16 overflow: %s", key, n)
		return 0
	}
	return uint16(n.Uint64())
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
