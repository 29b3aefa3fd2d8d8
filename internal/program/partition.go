// partition.go - Greedy packing of operations into bounded rounds.

package program

import (
	"errors"
	"fmt"
)

// DefaultCeiling is the default per-round cost bound. It is scaled to
// the same units as the opcode cost table.
const DefaultCeiling uint32 = 1_400_000

// ErrOpExceedsCeiling means a single operation cannot fit any round;
// the cost table and ceiling are incompatible.
var ErrOpExceedsCeiling = errors.New("program: operation cost exceeds round ceiling")

// Round is a contiguous slice [Start, End) of the operation array whose
// summed worst-case cost fits the ceiling.
type Round struct {
	Start, End int
	Cost       uint32
}

// Program is a partitioned verification program for one circuit shape.
type Program struct {
	Ops       []Op
	Rounds    []Round
	NumInputs int
	Ceiling   uint32
}

// Partition packs ops greedily and in order: operations are appended to
// the current round until the next one would exceed the ceiling.
// Dependency order is preserved exactly; nothing is reordered.
func Partition(ops []Op, ceiling uint32) ([]Round, error) {
	var rounds []Round
	cur := Round{Start: 0}
	for i, op := range ops {
		c := op.Cost()
		if c > ceiling {
			return nil, fmt.Errorf("%w: op %d code %d cost %d", ErrOpExceedsCeiling, i, op.Code, c)
		}
		if cur.Cost+c > ceiling {
			cur.End = i
			rounds = append(rounds, cur)
			cur = Round{Start: i}
		}
		cur.Cost += c
	}
	if len(ops) > 0 {
		cur.End = len(ops)
		rounds = append(rounds, cur)
	}
	return rounds, nil
}

// Compile builds and partitions the verification program for a circuit
// with numInputs public inputs.
func Compile(numInputs int, ceiling uint32) (*Program, error) {
	if numInputs <= 0 {
		return nil, errors.New("program: circuit needs at least one public input")
	}
	ops := Build(numInputs)
	rounds, err := Partition(ops, ceiling)
	if err != nil {
		return nil, err
	}
	return &Program{Ops: ops, Rounds: rounds, NumInputs: numInputs, Ceiling: ceiling}, nil
}

// K is the total round count for this circuit shape.
func (p *Program) K() int {
	return len(p.Rounds)
}
