// vm.go - Round interpreter for staged Groth16 verification.
//
// A VM binds one prepared verifying key to the compiled program of its
// circuit shape. Begin validates a proof and produces a fresh State;
// Advance executes exactly one round of operations against it. Between
// rounds the state is fully serializable, so verification survives
// process restarts and can be driven by any number of callers as long
// as rounds are applied in order.

package vm

import (
	"fmt"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"shield/internal/pairing"
	"shield/internal/program"
	"shield/internal/vkey"
)

// VM executes the verification program of one circuit shape.
type VM struct {
	vk   *vkey.VerifyingKey
	prog *program.Program
}

// TerminalResult reports the outcome once the final round has run.
type TerminalResult struct {
	Accepted bool
}

// New binds a prepared key to its compiled program. The two must agree
// on the circuit shape.
func New(vk *vkey.VerifyingKey, prog *program.Program) (*VM, error) {
	if vk.NumInputs() != prog.NumInputs {
		return nil, fmt.Errorf("vm: key expects %d public inputs, program compiled for %d",
			vk.NumInputs(), prog.NumInputs)
	}
	want := pairing.LineScheduleLen()
	if len(vk.GammaLines) != want || len(vk.DeltaLines) != want {
		return nil, fmt.Errorf("vm: prepared key carries %d/%d lines, schedule needs %d",
			len(vk.GammaLines), len(vk.DeltaLines), want)
	}
	return &VM{vk: vk, prog: prog}, nil
}

// K is the fixed number of rounds every proof of this shape takes.
func (m *VM) K() int {
	return m.prog.K()
}

// Program returns the compiled program the VM executes.
func (m *VM) Program() *program.Program {
	return m.prog
}

// Key returns the prepared verifying key.
func (m *VM) Key() *vkey.VerifyingKey {
	return m.vk
}

// Begin validates the proof points and public inputs and returns the
// initial state, ready for its first Advance.
func (m *VM) Begin(id ComputationID, proof Proof, inputs []fr.Element) (*State, error) {
	if len(inputs) != m.prog.NumInputs {
		return nil, fmt.Errorf("%w: got %d public inputs, circuit expects %d",
			ErrMalformedInput, len(inputs), m.prog.NumInputs)
	}
	if proof.A.IsInfinity() || proof.B.IsInfinity() || proof.C.IsInfinity() {
		return nil, fmt.Errorf("%w: proof point at infinity", ErrMalformedInput)
	}
	if !proof.A.IsOnCurve() || !proof.C.IsOnCurve() || !proof.B.IsOnCurve() {
		return nil, fmt.Errorf("%w: proof point not on curve", ErrMalformedInput)
	}
	if !proof.A.IsInSubGroup() || !proof.C.IsInSubGroup() {
		return nil, fmt.Errorf("%w: proof G1 point not in subgroup", ErrMalformedInput)
	}
	if !proof.B.IsInSubGroup() {
		return nil, fmt.Errorf("%w: proof G2 point not in subgroup", ErrMalformedInput)
	}

	s := &State{
		ID:     id,
		Status: StatusPending,
		Proof:  proof,
		Inputs: make([]fr.Element, len(inputs)),
	}
	copy(s.Inputs, inputs)

	s.GT[0].SetOne()
	b := pairing.FromCurvePoint(&proof.B)
	s.B = b
	s.BNeg = b.Neg()
	s.R = pairing.ProjectiveFromAffine(&b)
	setInfinity(&s.Acc)
	s.GIC.FromAffine(&m.vk.K[0])
	return s, nil
}

// Advance executes the computation's current round in place. It returns
// a non-nil TerminalResult exactly once, when the last round completes
// and the status becomes Accepted or Rejected. Execution errors abort
// the computation.
func (m *VM) Advance(s *State) (*TerminalResult, error) {
	if s.Status.Terminal() {
		return nil, ErrAlreadyFinished
	}
	if int(s.Round) >= len(m.prog.Rounds) {
		return nil, fmt.Errorf("%w: round cursor %d beyond program", ErrCorruptedState, s.Round)
	}

	round := m.prog.Rounds[s.Round]
	var spent uint32
	for i := round.Start; i < round.End; i++ {
		op := m.prog.Ops[i]
		spent += op.Cost()
		if spent > m.prog.Ceiling {
			s.Status = StatusAborted
			return nil, fmt.Errorf("%w: round %d op %d", ErrBudgetOverrun, s.Round, i)
		}
		if err := m.exec(s, op); err != nil {
			s.Status = StatusAborted
			return nil, err
		}
	}

	s.Round++
	s.PC = uint32(round.End)
	if int(s.Round) == len(m.prog.Rounds) {
		if s.Result {
			s.Status = StatusAccepted
		} else {
			s.Status = StatusRejected
		}
		return &TerminalResult{Accepted: s.Result}, nil
	}
	s.Status = StatusInProgress
	return nil, nil
}

func (m *VM) exec(s *State, op program.Op) error {
	switch op.Code {
	case program.OpInputBits:
		scalar := s.Inputs[op.Arg0].Bytes()
		for bit := int(op.Arg1); bit < int(op.Arg1)+8; bit++ {
			s.Acc.DoubleAssign()
			if scalar[bit/8]&(0x80>>(bit%8)) != 0 {
				s.Acc.AddMixed(&m.vk.K[op.Arg0+1])
			}
		}

	case program.OpInputAdd:
		s.GIC.AddAssign(&s.Acc)
		setInfinity(&s.Acc)

	case program.OpInputsFinish:
		s.L.FromJacobian(&s.GIC)

	case program.OpSquare:
		s.GT[0].Square(&s.GT[0])

	case program.OpDoubleStep:
		return s.pushLine(pairing.DoublingStep(&s.R))

	case program.OpAddStep:
		return s.pushLine(pairing.AdditionStep(&s.R, &s.B))

	case program.OpAddStepNeg:
		return s.pushLine(pairing.AdditionStep(&s.R, &s.BNeg))

	case program.OpEllDynamic:
		l, err := s.popLine()
		if err != nil {
			return err
		}
		pairing.Ell(&s.GT[0], &l, &s.Proof.A)

	case program.OpEllGamma:
		pairing.Ell(&s.GT[0], &m.vk.GammaLines[op.Arg0], &s.L)

	case program.OpEllDelta:
		pairing.Ell(&s.GT[0], &m.vk.DeltaLines[op.Arg0], &s.Proof.C)

	case program.OpMulByChar:
		s.B = pairing.MulByChar(s.B)

	case program.OpMulByCharNeg:
		s.B = pairing.MulByChar(s.B)
		s.B.Y.Neg(&s.B.Y)

	case program.OpGTOne:
		s.GT[op.Arg0].SetOne()

	case program.OpGTSet:
		s.GT[op.Arg0].Set(&s.GT[op.Arg1])

	case program.OpGTConj:
		s.GT[op.Arg0].Conjugate(&s.GT[op.Arg1])

	case program.OpGTInv:
		var zero bn254.GT
		if s.GT[op.Arg1].Equal(&zero) {
			return fmt.Errorf("%w: inversion of zero", ErrMalformedInput)
		}
		s.GT[op.Arg0].Inverse(&s.GT[op.Arg1])

	case program.OpGTMul:
		s.GT[op.Arg0].Mul(&s.GT[op.Arg1], &s.GT[op.Arg2])

	case program.OpGTCycSquare:
		s.GT[op.Arg0].CyclotomicSquare(&s.GT[op.Arg1])

	case program.OpGTFrobenius:
		switch op.Arg2 {
		case 1:
			s.GT[op.Arg0].Frobenius(&s.GT[op.Arg1])
		case 2:
			s.GT[op.Arg0].FrobeniusSquare(&s.GT[op.Arg1])
		case 3:
			s.GT[op.Arg0].FrobeniusCube(&s.GT[op.Arg1])
		default:
			return fmt.Errorf("%w: frobenius power %d", ErrCorruptedState, op.Arg2)
		}

	case program.OpGTCompare:
		s.Result = s.GT[op.Arg0].Equal(&m.vk.AlphaBeta)

	default:
		return fmt.Errorf("%w: unknown opcode %d", ErrCorruptedState, op.Code)
	}
	return nil
}
