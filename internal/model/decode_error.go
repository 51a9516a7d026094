package model

// Failure stages.
const (
	StageDecode = "decode"
	StageReplay = "replay"
)

// DecodeError records a log that could not be decoded or replayed.
type DecodeError struct {
	Stage       string `json:"stage"`
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
