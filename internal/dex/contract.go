package dex

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller is the eth_call surface the metadata readers need. *chain.Client
// implements it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// boundContract issues read-only calls against one address through one ABI. A nil block
// reads latest state.
type boundContract struct {
	caller ContractCaller
	addr   common.Address
	abi    abi.ABI
	block  *big.Int
}

func (b boundContract) raw(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	input, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	to := b.addr
	out, err := b.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, b.block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	return out, nil
}

func (b boundContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	out, err := b.raw(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	values, err := b.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned nothing", method)
	}
	return values, nil
}

// into unpacks a multi-value return into a struct whose fields are the camel-cased output
// names.
func (b boundContract) into(ctx context.Context, dst interface{}, method string) error {
	out, err := b.raw(ctx, method)
	if err != nil {
		return err
	}
	if err := b.abi.UnpackIntoInterface(dst, method, out); err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	return nil
}

func (b boundContract) number(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	values, err := b.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	n, err := asBigInt(values[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return n, nil
}

func asAddress(v interface{}) (common.Address, error) {
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case *common.Address:
		if a != nil {
			return *a, nil
		}
	}
	return common.Address{}, fmt.Errorf("unsupported address type %T", v)
}

// asBigInt widens any abi integer result to a fresh big.Int.
func asBigInt(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return new(big.Int).Set(n), nil
	case big.Int:
		return new(big.Int).Set(&n), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("unsupported integer type %T", v)
}

func asUint8(v interface{}) (uint8, error) {
	n, err := asBigInt(v)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() || n.Uint64() > math.MaxUint8 {
		return 0, fmt.Errorf("uint8 overflow: %s", n)
	}
	return uint8(n.Uint64()), nil
}

var (
	minInt24 = big.NewInt(-1 << 23)
	maxInt24 = big.NewInt(1<<23 - 1)
)

func int24FromBig(v *big.Int) (int32, error) {
	if v.Cmp(minInt24) < 0 || v.Cmp(maxInt24) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", v)
	}
	return int32(v.Int64()), nil
}
