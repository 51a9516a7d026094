package pool

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"liquidityEngine/internal/fullmath"
	"liquidityEngine/internal/swapmath"
	"liquidityEngine/internal/types"
)

// FlashCallback must return the borrowed amounts plus fee0 and fee1 to the pool.
type FlashCallback func(fee0, fee1 *uint256.Int, data []byte) error

type FlashParams struct {
	Recipient common.Address
	Amount0   *uint256.Int
	Amount1   *uint256.Int
	Data      []byte
	Callback  FlashCallback
}

// Flash lends pool reserves for the duration of the callback. Anything repaid above the
// borrowed amounts is distributed to in-range liquidity, minus the protocol share.
func (e *Engine) Flash(sender common.Address, p FlashParams) error {
	return e.execute("flash", func() error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if e.head.liquidity.IsZero() {
			return errorsmod.Wrap(types.ErrInsufficientLiquidity, "flash with no in-range liquidity")
		}
		if p.Callback == nil {
			return errorsmod.Wrap(types.ErrInvalidInput, "flash callback is nil")
		}
		amount0, amount1 := orZero(p.Amount0), orZero(p.Amount1)

		feePips := uint256.NewInt(uint64(e.cfg.Fee))
		fee0, err := fullmath.MulDivRoundingUp(amount0, feePips, uint256.NewInt(swapmath.FeeDenominator))
		if err != nil {
			return err
		}
		fee1, err := fullmath.MulDivRoundingUp(amount1, feePips, uint256.NewInt(swapmath.FeeDenominator))
		if err != nil {
			return err
		}

		before0, before1 := e.balance0(), e.balance1()
		if !amount0.IsZero() {
			if err := e.ledger.Transfer(e.cfg.Token0, e.cfg.Address, p.Recipient, amount0); err != nil {
				return errorsmod.Wrap(err, "lend token0")
			}
		}
		if !amount1.IsZero() {
			if err := e.ledger.Transfer(e.cfg.Token1, e.cfg.Address, p.Recipient, amount1); err != nil {
				return errorsmod.Wrap(err, "lend token1")
			}
		}

		if err := p.Callback(new(uint256.Int).Set(fee0), new(uint256.Int).Set(fee1), p.Data); err != nil {
			return errorsmod.Wrap(err, "flash callback")
		}

		after0, after1 := e.balance0(), e.balance1()
		if err := e.requirePaid(e.cfg.Token0, before0, fee0, func() *uint256.Int { return after0 }); err != nil {
			return err
		}
		if err := e.requirePaid(e.cfg.Token1, before1, fee1, func() *uint256.Int { return after1 }); err != nil {
			return err
		}
		// a fee of zero still requires the principal back
		if after0.Lt(before0) || after1.Lt(before1) {
			return errorsmod.Wrap(types.ErrInsufficientPayment, "flash loan not repaid")
		}

		paid0 := new(uint256.Int).Sub(after0, before0)
		paid1 := new(uint256.Int).Sub(after1, before1)
		if err := e.distributeFlashFee(paid0, e.head.slot0.FeeProtocol%16, &e.head.feeGrowthGlobal0X128, &e.head.protocolFees.Token0); err != nil {
			return err
		}
		if err := e.distributeFlashFee(paid1, e.head.slot0.FeeProtocol>>4, &e.head.feeGrowthGlobal1X128, &e.head.protocolFees.Token1); err != nil {
			return err
		}

		e.emit(FlashEvent{
			Sender:    sender,
			Recipient: p.Recipient,
			Amount0:   amount0,
			Amount1:   amount1,
			Paid0:     paid0,
			Paid1:     paid1,
		})
		return nil
	})
}

func (e *Engine) distributeFlashFee(paid *uint256.Int, feeProtocol uint8, feeGrowth *uint256.Int, protocolFee *uint128.Uint128) error {
	if paid.IsZero() {
		return nil
	}
	cut := new(uint256.Int)
	if feeProtocol != 0 {
		cut.Div(paid, uint256.NewInt(uint64(feeProtocol)))
	}
	if !cut.IsZero() {
		*protocolFee = protocolFee.AddWrap(fullmath.TruncateUint128(cut))
	}
	growth, err := fullmath.MulDiv(new(uint256.Int).Sub(paid, cut), fullmath.Q128, fullmath.FromUint128(e.head.liquidity))
	if err != nil {
		return err
	}
	feeGrowth.Add(feeGrowth, growth)
	return nil
}

func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}

func validFeeProtocol(v uint8) bool {
	return v == 0 || (v >= 4 && v <= 10)
}

// SetFeeProtocol sets the protocol's share of swap fees as 1/feeProtocol0 and 1/feeProtocol1.
// Zero turns the share off for that token.
func (e *Engine) SetFeeProtocol(sender common.Address, feeProtocol0, feeProtocol1 uint8) error {
	return e.execute("set_fee_protocol", func() error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if sender != e.cfg.Owner {
			return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the pool owner", sender)
		}
		if !validFeeProtocol(feeProtocol0) || !validFeeProtocol(feeProtocol1) {
			return errorsmod.Wrapf(types.ErrInvalidInput, "fee protocol %d/%d must be 0 or in [4, 10]", feeProtocol0, feeProtocol1)
		}
		old := e.head.slot0.FeeProtocol
		e.head.slot0.FeeProtocol = feeProtocol0 + feeProtocol1<<4
		e.emit(SetFeeProtocolEvent{
			FeeProtocol0Old: old % 16,
			FeeProtocol1Old: old >> 4,
			FeeProtocol0New: feeProtocol0,
			FeeProtocol1New: feeProtocol1,
		})
		return nil
	})
}

// CollectProtocol pays accrued protocol fees to recipient. One unit of each token is always
// left behind so the fee slot never returns to zero.
func (e *Engine) CollectProtocol(sender, recipient common.Address, requested0, requested1 uint128.Uint128) (amount0, amount1 uint128.Uint128, err error) {
	err = e.execute("collect_protocol", func() error {
		if err := e.requireInitialized(); err != nil {
			return err
		}
		if sender != e.cfg.Owner {
			return errorsmod.Wrapf(types.ErrUnauthorized, "%s is not the pool owner", sender)
		}
		fees := &e.head.protocolFees
		amount0 = minUint128(requested0, fees.Token0)
		amount1 = minUint128(requested1, fees.Token1)

		if !amount0.IsZero() {
			if amount0.Equals(fees.Token0) {
				amount0 = amount0.Sub64(1)
			}
			fees.Token0 = fees.Token0.Sub(amount0)
			if err := e.ledger.Transfer(e.cfg.Token0, e.cfg.Address, recipient, fullmath.FromUint128(amount0)); err != nil {
				return err
			}
		}
		if !amount1.IsZero() {
			if amount1.Equals(fees.Token1) {
				amount1 = amount1.Sub64(1)
			}
			fees.Token1 = fees.Token1.Sub(amount1)
			if err := e.ledger.Transfer(e.cfg.Token1, e.cfg.Address, recipient, fullmath.FromUint128(amount1)); err != nil {
				return err
			}
		}

		e.emit(CollectProtocolEvent{Sender: sender, Recipient: recipient, Amount0: amount0, Amount1: amount1})
		return nil
	})
	if err != nil {
		return uint128.Zero, uint128.Zero, err
	}
	return amount0, amount1, nil
}
