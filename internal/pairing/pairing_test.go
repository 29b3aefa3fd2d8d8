package pairing

import (
	"math/big"
	"testing"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func randomPair(t *testing.T) (bn254.G1Affine, bn254.G2Affine) {
	t.Helper()
	var a, b fr.Element
	_, err := a.SetRandom()
	require.NoError(t, err)
	_, err = b.SetRandom()
	require.NoError(t, err)

	_, _, g1, g2 := bn254.Generators()
	var p bn254.G1Affine
	var q bn254.G2Affine
	p.ScalarMultiplication(&g1, a.BigInt(new(big.Int)))
	q.ScalarMultiplication(&g2, b.BigInt(new(big.Int)))
	return p, q
}

// stagedMillerLoop runs the step-by-step ate loop for a single pair,
// exactly as the verification program schedules it.
func stagedMillerLoop(p *bn254.G1Affine, q *bn254.G2Affine) bn254.GT {
	qa := FromCurvePoint(q)
	negQ := qa.Neg()
	r := ProjectiveFromAffine(&qa)

	var f bn254.GT
	f.SetOne()
	for it := 0; it < 64; it++ {
		if it > 0 {
			f.Square(&f)
		}
		l := DoublingStep(&r)
		Ell(&f, &l, p)
		switch AteLoopCount[63-it] {
		case 1:
			l = AdditionStep(&r, &qa)
			Ell(&f, &l, p)
		case -1:
			l = AdditionStep(&r, &negQ)
			Ell(&f, &l, p)
		}
	}

	q1 := MulByChar(qa)
	l := AdditionStep(&r, &q1)
	Ell(&f, &l, p)
	q2 := MulByChar(q1)
	q2.Y.Neg(&q2.Y)
	l = AdditionStep(&r, &q2)
	Ell(&f, &l, p)
	return f
}

func TestStagedMillerLoopMatchesPair(t *testing.T) {
	p, q := randomPair(t)

	f := stagedMillerLoop(&p, &q)
	got := bn254.FinalExponentiation(&f)

	want, err := bn254.Pair([]bn254.G1Affine{p}, []bn254.G2Affine{q})
	require.NoError(t, err)
	require.True(t, got.Equal(&want), "staged Miller loop disagrees with monolithic pairing")
}

func TestPreparedLinesMatchDynamicSteps(t *testing.T) {
	p, q := randomPair(t)
	qa := FromCurvePoint(&q)
	lines := PrepareLines(qa)
	require.Len(t, lines, LineScheduleLen())

	var f bn254.GT
	f.SetOne()
	idx := 0
	for it := 0; it < 64; it++ {
		if it > 0 {
			f.Square(&f)
		}
		Ell(&f, &lines[idx], &p)
		idx++
		if AteLoopCount[63-it] != 0 {
			Ell(&f, &lines[idx], &p)
			idx++
		}
	}
	Ell(&f, &lines[idx], &p)
	idx++
	Ell(&f, &lines[idx], &p)
	idx++
	require.Equal(t, len(lines), idx)

	want := stagedMillerLoop(&p, &q)
	require.True(t, f.Equal(&want))
}

func TestE2Arithmetic(t *testing.T) {
	var a, b E2
	a.A0.SetUint64(7)
	a.A1.SetUint64(11)
	b.A0.SetUint64(3)
	b.A1.SetUint64(5)

	t.Run("square matches mul", func(t *testing.T) {
		var sq, mul E2
		sq.Square(&a)
		mul.Mul(&a, &a)
		require.True(t, sq.Equal(&mul))
	})

	t.Run("inverse round-trips", func(t *testing.T) {
		var inv, one, prod E2
		_, err := inv.Inverse(&a)
		require.NoError(t, err)
		prod.Mul(&a, &inv)
		one.SetOne()
		require.True(t, prod.Equal(&one))
	})

	t.Run("inverse of zero fails", func(t *testing.T) {
		var zero, out E2
		_, err := out.Inverse(&zero)
		require.ErrorIs(t, err, ErrDivisionByZero)
	})

	t.Run("mul by element", func(t *testing.T) {
		var c fp.Element
		c.SetUint64(9)
		var viaMul, viaScale, lift E2
		lift.A0 = c
		viaMul.Mul(&a, &lift)
		viaScale.MulByElement(&a, &c)
		require.True(t, viaMul.Equal(&viaScale))
	})
}

func TestAteLoopDigitsSumTo6XPlus2(t *testing.T) {
	sum := new(big.Int)
	for i, d := range AteLoopCount {
		term := new(big.Int).Lsh(big.NewInt(int64(d)), uint(i))
		sum.Add(sum, term)
	}
	want, _ := new(big.Int).SetString("29793968203157093288", 10)
	require.Equal(t, 0, sum.Cmp(want))
}

func TestXWnafDigitsSumToX(t *testing.T) {
	sum := new(big.Int)
	for i, d := range XWnaf {
		term := new(big.Int).Lsh(big.NewInt(int64(d)), uint(i))
		sum.Add(sum, term)
	}
	want := new(big.Int).SetUint64(4965661367192848881)
	require.Equal(t, 0, sum.Cmp(want))
}
