// errors.go - Error taxonomy of the round interpreter.
//
// Malformed input and sequence errors are caller-correctable; budget
// overruns and corrupted state are defects that halt only the affected
// computation and must never be retried blindly.

package vm

import "errors"

var (
	// ErrMalformedInput means a proof, public input, or persisted
	// element failed canonical decoding or curve validation.
	ErrMalformedInput = errors.New("vm: malformed input")

	// ErrBudgetOverrun means an executed round exceeded its static cost
	// bound. The partitioner guarantees this cannot happen; seeing it
	// indicates a program/partition mismatch.
	ErrBudgetOverrun = errors.New("vm: round exceeded compute ceiling")

	// ErrSequence means an advance was submitted with a stale or
	// out-of-order round token; the slot is left untouched.
	ErrSequence = errors.New("vm: advance out of round order")

	// ErrAlreadyFinished means the computation reached a terminal
	// status and cannot be advanced again.
	ErrAlreadyFinished = errors.New("vm: computation already finished")

	// ErrCorruptedState means a persisted slot failed integrity or
	// layout validation.
	ErrCorruptedState = errors.New("vm: corrupted computation state")
)
