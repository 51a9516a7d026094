package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
)

// Encoder renders engine event records as V3 pool logs. The record sequence becomes the log
// index; block fields stay empty.
type Encoder struct {
	poolABI abi.ABI
	chainID uint64
}

func NewEncoder(chainID uint64) (*Encoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	return &Encoder{poolABI: poolABI, chainID: chainID}, nil
}

// Encode packs one record.
func (e *Encoder) Encode(rec pool.Record) (model.LogRecord, error) {
	name := rec.Event.EventName()
	event, ok := e.poolABI.Events[name]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("event %s not in pool abi", name)
	}
	topics, values, err := eventArgs(rec.Event)
	if err != nil {
		return model.LogRecord{}, err
	}
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", name, err)
	}

	hexTopics := make([]string, 0, len(topics)+1)
	hexTopics = append(hexTopics, event.ID.Hex())
	for _, t := range topics {
		hexTopics = append(hexTopics, t.Hex())
	}
	return model.LogRecord{
		ChainID:   e.chainID,
		LogIndex:  rec.Sequence,
		Address:   rec.Pool.Hex(),
		Topics:    hexTopics,
		Data:      hexutil.Encode(data),
		Timestamp: uint64(rec.Timestamp),
	}, nil
}

// eventArgs splits an event into indexed topics and the non-indexed values in ABI order.
func eventArgs(ev pool.Event) ([]common.Hash, []interface{}, error) {
	switch v := ev.(type) {
	case pool.InitializeEvent:
		return nil, []interface{}{v.SqrtPriceX96.ToBig(), big.NewInt(int64(v.Tick))}, nil
	case pool.MintEvent:
		return []common.Hash{addressTopic(v.Owner), int24Topic(v.TickLower), int24Topic(v.TickUpper)},
			[]interface{}{v.Sender, v.Amount.Big(), v.Amount0.ToBig(), v.Amount1.ToBig()}, nil
	case pool.BurnEvent:
		return []common.Hash{addressTopic(v.Owner), int24Topic(v.TickLower), int24Topic(v.TickUpper)},
			[]interface{}{v.Amount.Big(), v.Amount0.ToBig(), v.Amount1.ToBig()}, nil
	case pool.CollectEvent:
		return []common.Hash{addressTopic(v.Owner), int24Topic(v.TickLower), int24Topic(v.TickUpper)},
			[]interface{}{v.Recipient, v.Amount0.Big(), v.Amount1.Big()}, nil
	case pool.SwapEvent:
		return []common.Hash{addressTopic(v.Sender), addressTopic(v.Recipient)},
			[]interface{}{
				fullmath.ToSignedBig(v.Amount0),
				fullmath.ToSignedBig(v.Amount1),
				v.SqrtPriceX96.ToBig(),
				v.Liquidity.Big(),
				big.NewInt(int64(v.Tick)),
			}, nil
	case pool.FlashEvent:
		return []common.Hash{addressTopic(v.Sender), addressTopic(v.Recipient)},
			[]interface{}{v.Amount0.ToBig(), v.Amount1.ToBig(), v.Paid0.ToBig(), v.Paid1.ToBig()}, nil
	case pool.SetFeeProtocolEvent:
		return nil, []interface{}{v.FeeProtocol0Old, v.FeeProtocol1Old, v.FeeProtocol0New, v.FeeProtocol1New}, nil
	case pool.CollectProtocolEvent:
		return []common.Hash{addressTopic(v.Sender), addressTopic(v.Recipient)},
			[]interface{}{v.Amount0.Big(), v.Amount1.Big()}, nil
	case pool.IncreaseObservationCardinalityNextEvent:
		return nil, []interface{}{v.ObservationCardinalityNextOld, v.ObservationCardinalityNextNew}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported event %T", ev)
	}
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// int24Topic sign-extends v to a full word, as indexed int24 arguments are stored.
func int24Topic(v int32) common.Hash {
	return common.Hash(fullmath.FromInt64(int64(v)).Bytes32())
}
