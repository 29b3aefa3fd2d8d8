// gt.go - Line evaluation into the GT (Fp12) Miller accumulator.

package pairing

import (
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
)

// Ell scales the line by the G1 point p and multiplies it into f.
//
// The line is sparse in Fp12 (coefficients at positions 0, 3 and 4 of the
// tower); it is lifted to a full element and folded in with a plain
// multiplication, which keeps the per-operation cost independent of the
// coefficient values.
func Ell(f *bn254.GT, l *LineCoeffs, p *bn254.G1Affine) {
	var c0, c1 E2
	c0.MulByElement(&l.C0, &p.Y)
	c1.MulByElement(&l.C1, &p.X)

	var line bn254.GT
	line.C0.B0.A0 = c0.A0
	line.C0.B0.A1 = c0.A1
	line.C1.B0.A0 = c1.A0
	line.C1.B0.A1 = c1.A1
	line.C1.B1.A0 = l.C2.A0
	line.C1.B1.A1 = l.C2.A1

	f.Mul(f, &line)
}
