// g2.go - G2 line-evaluation steps for the staged BN254 Miller loop.
//
// The doubling and addition formulas operate on homogeneous projective
// coordinates and emit the line coefficients consumed by Ell. They are the
// TwistType-D formulas of the ate pairing; each call is one bounded
// primitive operation of the verification program.

package pairing

import (
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
)

// G2Affine is a point on the twist in affine coordinates.
type G2Affine struct {
	X, Y E2
}

// G2Projective is a point on the twist in homogeneous projective
// coordinates, the running accumulator of the Miller loop.
type G2Projective struct {
	X, Y, Z E2
}

// LineCoeffs are the three Fp2 coefficients of one evaluated line.
type LineCoeffs struct {
	C0, C1, C2 E2
}

// FromCurvePoint converts a gnark-crypto G2 point.
func FromCurvePoint(p *bn254.G2Affine) G2Affine {
	var q G2Affine
	q.X.A0 = p.X.A0
	q.X.A1 = p.X.A1
	q.Y.A0 = p.Y.A0
	q.Y.A1 = p.Y.A1
	return q
}

// Neg returns -q.
func (q G2Affine) Neg() G2Affine {
	var r G2Affine
	r.X = q.X
	r.Y.Neg(&q.Y)
	return r
}

// ProjectiveFromAffine lifts q to homogeneous projective coordinates.
func ProjectiveFromAffine(q *G2Affine) G2Projective {
	var r G2Projective
	r.X = q.X
	r.Y = q.Y
	r.Z.SetOne()
	return r
}

// DoublingStep doubles r in place and returns the line through the
// tangent at r, evaluated symbolically.
func DoublingStep(r *G2Projective) LineCoeffs {
	var a, b, c, d, e, f, g, h, i, j, eSq, t E2

	a.Mul(&r.X, &r.Y)
	a.MulByElement(&a, &twoInv)
	b.Square(&r.Y)
	c.Square(&r.Z)
	d.Double(&c)
	d.Add(&d, &c)
	e.Mul(&coeffB, &d)
	f.Double(&e)
	f.Add(&f, &e)
	g.Add(&b, &f)
	g.MulByElement(&g, &twoInv)
	h.Add(&r.Y, &r.Z)
	h.Square(&h)
	t.Add(&b, &c)
	h.Sub(&h, &t)
	i.Sub(&e, &b)
	j.Square(&r.X)
	eSq.Square(&e)

	t.Sub(&b, &f)
	r.X.Mul(&a, &t)
	g.Square(&g)
	t.Double(&eSq)
	t.Add(&t, &eSq)
	r.Y.Sub(&g, &t)
	r.Z.Mul(&b, &h)

	var out LineCoeffs
	out.C0.Neg(&h)
	out.C1.Double(&j)
	out.C1.Add(&out.C1, &j)
	out.C2 = i
	return out
}

// AdditionStep mixed-adds q to r in place and returns the line through
// r and q.
func AdditionStep(r *G2Projective, q *G2Affine) LineCoeffs {
	var theta, lambda, c, d, e, f, g, h, j, t E2

	theta.Mul(&q.Y, &r.Z)
	theta.Sub(&r.Y, &theta)
	lambda.Mul(&q.X, &r.Z)
	lambda.Sub(&r.X, &lambda)
	c.Square(&theta)
	d.Square(&lambda)
	e.Mul(&lambda, &d)
	f.Mul(&r.Z, &c)
	g.Mul(&r.X, &d)
	h.Double(&g)
	h.Sub(&e, &h)
	h.Add(&h, &f)

	r.X.Mul(&lambda, &h)
	t.Sub(&g, &h)
	t.Mul(&theta, &t)
	r.Y.Mul(&e, &r.Y)
	r.Y.Sub(&t, &r.Y)
	r.Z.Mul(&r.Z, &e)

	j.Mul(&theta, &q.X)
	t.Mul(&lambda, &q.Y)
	j.Sub(&j, &t)

	var out LineCoeffs
	out.C0 = lambda
	out.C1.Neg(&theta)
	out.C2 = j
	return out
}

// MulByChar applies the q-power Frobenius endomorphism to the twist
// point: conjugate both coordinates and multiply by the fixed twist
// constants.
func MulByChar(q G2Affine) G2Affine {
	var s G2Affine
	s.X.Conjugate(&q.X)
	s.X.Mul(&s.X, &twistMulByQX)
	s.Y.Conjugate(&q.Y)
	s.Y.Mul(&s.Y, &twistMulByQY)
	return s
}
