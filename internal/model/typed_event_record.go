package model

import "encoding/json"

// TypedEventRecord is a TypedEvent read back from JSON, with the payload not yet parsed.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	PoolMeta    PoolMeta        `json:"pool_meta"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}

// Typed parses the payload and returns the equivalent TypedEvent.
func (r TypedEventRecord) Typed() (TypedEvent, error) {
	payload, err := DecodePayload(r.EventName, r.Decoded)
	if err != nil {
		return TypedEvent{}, err
	}
	return TypedEvent{
		ChainID:     r.ChainID,
		BlockNumber: r.BlockNumber,
		BlockHash:   r.BlockHash,
		TxHash:      r.TxHash,
		LogIndex:    r.LogIndex,
		Address:     r.Address,
		EventName:   r.EventName,
		Timestamp:   r.Timestamp,
		Decoded:     payload,
		PoolMeta:    r.PoolMeta,
		Raw:         r.Raw,
	}, nil
}
