package model

// LogRecord is the normalized representation of a pool log, whether fetched from a chain or
// produced by a local engine. Locally produced logs carry the engine's event sequence as
// LogIndex and leave the block and transaction fields empty.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Topic0 returns the event signature topic, or "" for anonymous logs.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}

// Before orders logs by execution: block, then position in the block.
func (lr LogRecord) Before(other LogRecord) bool {
	if lr.BlockNumber != other.BlockNumber {
		return lr.BlockNumber < other.BlockNumber
	}
	return lr.LogIndex < other.LogIndex
}
