package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	"shield/internal/pairing"
)

func TestPartitionRespectsCeiling(t *testing.T) {
	prog, err := Compile(4, DefaultCeiling)
	require.NoError(t, err)

	for _, r := range prog.Rounds {
		require.Greater(t, r.End, r.Start)
		var sum uint32
		for _, op := range prog.Ops[r.Start:r.End] {
			sum += op.Cost()
		}
		require.Equal(t, r.Cost, sum)
		require.LessOrEqual(t, sum, DefaultCeiling)
	}
}

func TestPartitionPreservesOrder(t *testing.T) {
	prog, err := Compile(2, DefaultCeiling)
	require.NoError(t, err)

	next := 0
	for _, r := range prog.Rounds {
		require.Equal(t, next, r.Start, "rounds must tile the program contiguously")
		next = r.End
	}
	require.Equal(t, len(prog.Ops), next)
}

func TestRoundCountIndependentOfCeilingedInputs(t *testing.T) {
	// Same input count => same program, regardless of the values that
	// will later be bound. Different counts may differ.
	a, err := Compile(3, DefaultCeiling)
	require.NoError(t, err)
	b, err := Compile(3, DefaultCeiling)
	require.NoError(t, err)
	require.Equal(t, a.K(), b.K())
	require.Equal(t, a.Ops, b.Ops)

	c, err := Compile(5, DefaultCeiling)
	require.NoError(t, err)
	require.Greater(t, len(c.Ops), len(a.Ops))
}

func TestOpExceedingCeilingRejected(t *testing.T) {
	_, err := Partition([]Op{{Code: OpGTInv}}, 10)
	require.ErrorIs(t, err, ErrOpExceedsCeiling)
}

func TestGammaDeltaLineIndicesMatchSchedule(t *testing.T) {
	ops := Build(1)
	want := uint16(pairing.LineScheduleLen())

	var gamma, delta []uint16
	for _, op := range ops {
		switch op.Code {
		case OpEllGamma:
			gamma = append(gamma, op.Arg0)
		case OpEllDelta:
			delta = append(delta, op.Arg0)
		}
	}
	require.Len(t, gamma, int(want))
	require.Len(t, delta, int(want))
	for i := range gamma {
		require.Equal(t, uint16(i), gamma[i])
		require.Equal(t, uint16(i), delta[i])
	}
}

func TestProgramEndsWithCompare(t *testing.T) {
	ops := Build(2)
	require.Equal(t, OpGTCompare, ops[len(ops)-1].Code)

	// Exactly one terminal op, and exactly one inversion (easy part).
	var compares, invs int
	for _, op := range ops {
		switch op.Code {
		case OpGTCompare:
			compares++
		case OpGTInv:
			invs++
		}
	}
	require.Equal(t, 1, compares)
	require.Equal(t, 1, invs)
}
