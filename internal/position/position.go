// Package position tracks liquidity owned by an account over a tick range and the fees it
// has earned.
package position

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/liquiditymath"
	"liquidityEngine/internal/types"
)

// Info is the state of one position.
type Info struct {
	Liquidity uint128.Uint128
	// fee growth per unit of liquidity inside the range as of the last update
	FeeGrowthInside0LastX128 uint256.Int
	FeeGrowthInside1LastX128 uint256.Int
	// fees owed to the owner, collectable through Collect
	TokensOwed0 uint128.Uint128
	TokensOwed1 uint128.Uint128
}

// Store holds positions by key. A missing key reads as the zero Info.
type Store interface {
	Get(key common.Hash) Info
	Set(key common.Hash, info Info)
}

// Map is the plain in-memory Store.
type Map map[common.Hash]Info

func (m Map) Get(key common.Hash) Info { return m[key] }

func (m Map) Set(key common.Hash, info Info) { m[key] = info }

// Key is keccak256 over the packed owner address and the two ticks as 24-bit big-endian
// integers, the same key a V3 pool uses.
func Key(owner common.Address, tickLower, tickUpper int32) common.Hash {
	packed := make([]byte, 0, common.AddressLength+6)
	packed = append(packed, owner.Bytes()...)
	packed = appendInt24(packed, tickLower)
	packed = appendInt24(packed, tickUpper)
	return crypto.Keccak256Hash(packed)
}

func appendInt24(b []byte, v int32) []byte {
	u := uint32(v)
	return append(b, byte(u>>16), byte(u>>8), byte(u))
}

// Update credits the fees earned since the last update and applies liquidityDelta, a two's
// complement int128. Poking an empty position with a zero delta is rejected.
func Update(info Info, liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) (Info, error) {
	liquidityNext := info.Liquidity
	if liquidityDelta.IsZero() {
		if info.Liquidity.IsZero() {
			return info, errorsmod.Wrap(types.ErrInvalidInput, "poke of a position without liquidity")
		}
	} else {
		var err error
		if liquidityNext, err = liquiditymath.AddDelta(info.Liquidity, liquidityDelta); err != nil {
			return info, err
		}
	}

	owed0, err := owed(feeGrowthInside0X128, &info.FeeGrowthInside0LastX128, info.Liquidity)
	if err != nil {
		return info, err
	}
	owed1, err := owed(feeGrowthInside1X128, &info.FeeGrowthInside1LastX128, info.Liquidity)
	if err != nil {
		return info, err
	}

	info.Liquidity = liquidityNext
	info.FeeGrowthInside0LastX128 = *feeGrowthInside0X128
	info.FeeGrowthInside1LastX128 = *feeGrowthInside1X128
	// owed amounts wrap; the owner has to collect before 2^128 accrues
	info.TokensOwed0 = info.TokensOwed0.AddWrap(owed0)
	info.TokensOwed1 = info.TokensOwed1.AddWrap(owed1)
	return info, nil
}

func owed(inside, last *uint256.Int, liquidity uint128.Uint128) (uint128.Uint128, error) {
	growth := new(uint256.Int).Sub(inside, last)
	amount, err := fullmath.MulDiv(growth, fullmath.FromUint128(liquidity), fullmath.Q128)
	if err != nil {
		return uint128.Zero, err
	}
	return fullmath.TruncateUint128(amount), nil
}
