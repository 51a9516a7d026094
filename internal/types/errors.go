package types

import (
	errorsmod "cosmossdk.io/errors"
)

// ModuleName is the codespace of every engine error.
const ModuleName = "clmm"

// Engine sentinel errors. Every operation failure wraps exactly one of these.
var (
	ErrInvalidInput          = errorsmod.Register(ModuleName, 2, "invalid input")
	ErrOverflow              = errorsmod.Register(ModuleName, 3, "arithmetic overflow")
	ErrUnderflow             = errorsmod.Register(ModuleName, 4, "arithmetic underflow")
	ErrInsufficientLiquidity = errorsmod.Register(ModuleName, 5, "insufficient liquidity")
	ErrNotInitialized        = errorsmod.Register(ModuleName, 6, "not initialized")
	ErrTooOld                = errorsmod.Register(ModuleName, 7, "observation too old")
	ErrReentrant             = errorsmod.Register(ModuleName, 8, "reentrant call")
	ErrInsufficientPayment   = errorsmod.Register(ModuleName, 9, "insufficient payment")
	ErrAlreadyInitialized    = errorsmod.Register(ModuleName, 10, "already initialized")
	ErrUnauthorized          = errorsmod.Register(ModuleName, 11, "unauthorized")
	ErrInsufficientBalance   = errorsmod.Register(ModuleName, 12, "insufficient balance")
)
