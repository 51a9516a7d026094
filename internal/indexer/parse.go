package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityEngine/internal/dex"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ParseTopic0 converts topic0 filters into hashes. An entry is either a 32 byte hex hash or
// the name of a pool event.
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "0x") {
			topic, err := eventTopic(input)
			if err != nil {
				return nil, err
			}
			topics = append(topics, topic)
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != 32 {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}

func eventTopic(name string) (common.Hash, error) {
	poolABI, err := dex.V3PoolABI()
	if err != nil {
		return common.Hash{}, err
	}
	for _, known := range dex.EventNames {
		if strings.EqualFold(known, name) {
			return poolABI.Events[known].ID, nil
		}
	}
	return common.Hash{}, fmt.Errorf("unknown pool event: %s", name)
}
