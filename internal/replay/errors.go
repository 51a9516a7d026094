package replay

import (
	"errors"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/types"
)

var engineErrors = []*errorsmod.Error{
	types.ErrInvalidInput,
	types.ErrOverflow,
	types.ErrUnderflow,
	types.ErrInsufficientLiquidity,
	types.ErrNotInitialized,
	types.ErrTooOld,
	types.ErrReentrant,
	types.ErrInsufficientPayment,
	types.ErrAlreadyInitialized,
	types.ErrUnauthorized,
	types.ErrInsufficientBalance,
}

// errorKind names the engine error err wraps, or "" when it wraps none.
func errorKind(err error) string {
	for _, kind := range engineErrors {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ""
}

// matchesKind reports whether err wraps the engine error named want. Names compare without
// case, and underscores stand for spaces.
func matchesKind(err error, want string) bool {
	want = strings.ReplaceAll(strings.TrimSpace(want), "_", " ")
	return err != nil && strings.EqualFold(errorKind(err), want)
}

// EventError is a failure to decode or apply one pool event.
type EventError struct {
	Stage       string
	BlockNumber uint64
	LogIndex    uint64
	Err         error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s block %d log %d: %v", e.Stage, e.BlockNumber, e.LogIndex, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// Record renders the failure for the error output file.
func (e *EventError) Record(chainID uint64, address string) model.DecodeError {
	return model.DecodeError{
		Stage:       e.Stage,
		ChainID:     chainID,
		BlockNumber: e.BlockNumber,
		LogIndex:    e.LogIndex,
		Address:     address,
		Error:       e.Err.Error(),
	}
}
