// errors.go - Caller-facing error taxonomy of the pool.

package pool

import "errors"

var (
	// ErrUnknownKind means no circuit is configured for the request kind.
	ErrUnknownKind = errors.New("pool: unknown request kind")

	// ErrNotFound means no live computation exists under the id.
	ErrNotFound = errors.New("pool: computation not found")

	// ErrDuplicateComputation means the id already owns a live slot.
	ErrDuplicateComputation = errors.New("pool: duplicate computation")

	// ErrUnknownRoot means a withdrawal references a root that is neither
	// current nor in the retained history.
	ErrUnknownRoot = errors.New("pool: unknown commitment root")

	// ErrDoubleSpend means the nullifier was already present; the accept
	// was downgraded and no mutation was retained.
	ErrDoubleSpend = errors.New("pool: nullifier already spent")

	// ErrNotFinished means finalize was called before the terminal round.
	ErrNotFinished = errors.New("pool: computation not finished")
)
