// state.go - Persisted per-computation interpreter state.
//
// A computation's entire call stack is discarded between invocations;
// everything needed to resume lives in State: the register file, the
// bounded operand stack, and the round cursor into the compiled program.

package vm

import (
	"fmt"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"shield/internal/pairing"
	"shield/internal/program"
)

// ComputationID identifies one in-flight verification slot.
type ComputationID [16]byte

// Status is the lifecycle state of a computation.
type Status uint8

const (
	StatusPending Status = iota
	StatusInProgress
	StatusAccepted
	StatusRejected
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in-progress"
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether no further advance is possible.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusAborted
}

// Proof holds the three curve points of a Groth16 proof.
type Proof struct {
	A bn254.G1Affine
	B bn254.G2Affine
	C bn254.G1Affine
}

// StackCap bounds the operand stack. The verification program needs at
// most one line (six elements) in flight between operations.
const StackCap = 16

// Stack is the bounded operand stack of base-field elements.
type Stack struct {
	elems [StackCap]fp.Element
	top   int
}

// Len returns the number of elements on the stack.
func (s *Stack) Len() int {
	return s.top
}

// Push appends v. Overflow indicates a defective program.
func (s *Stack) Push(v fp.Element) error {
	if s.top >= StackCap {
		return fmt.Errorf("%w: operand stack overflow", ErrCorruptedState)
	}
	s.elems[s.top] = v
	s.top++
	return nil
}

// Pop removes and returns the top element.
func (s *Stack) Pop() (fp.Element, error) {
	if s.top == 0 {
		return fp.Element{}, fmt.Errorf("%w: operand stack underflow", ErrCorruptedState)
	}
	s.top--
	return s.elems[s.top], nil
}

// State is the complete persisted state of one computation. It is owned
// exclusively by its ComputationID and mutated only by Advance.
type State struct {
	ID     ComputationID
	Status Status
	Round  uint32
	PC     uint32
	Result bool

	// Register file.
	GT    [program.NumGTRegisters]bn254.GT
	R     pairing.G2Projective
	B     pairing.G2Affine
	BNeg  pairing.G2Affine
	Acc   bn254.G1Jac
	GIC   bn254.G1Jac
	L     bn254.G1Affine
	Stack Stack

	// Immutable after Begin.
	Proof  Proof
	Inputs []fr.Element
}

// Abort transitions a live computation to Aborted.
func (s *State) Abort() error {
	if s.Status.Terminal() {
		return ErrAlreadyFinished
	}
	s.Status = StatusAborted
	return nil
}

func (s *State) pushLine(l pairing.LineCoeffs) error {
	for _, v := range [6]fp.Element{l.C0.A0, l.C0.A1, l.C1.A0, l.C1.A1, l.C2.A0, l.C2.A1} {
		if err := s.Stack.Push(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) popLine() (pairing.LineCoeffs, error) {
	var l pairing.LineCoeffs
	dst := [6]*fp.Element{&l.C2.A1, &l.C2.A0, &l.C1.A1, &l.C1.A0, &l.C0.A1, &l.C0.A0}
	for _, d := range dst {
		v, err := s.Stack.Pop()
		if err != nil {
			return l, err
		}
		*d = v
	}
	return l, nil
}

// setInfinity resets a Jacobian accumulator to the point at infinity.
func setInfinity(p *bn254.G1Jac) {
	p.X.SetOne()
	p.Y.SetOne()
	p.Z.SetZero()
}
