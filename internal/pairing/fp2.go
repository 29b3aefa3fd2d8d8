// fp2.go - Quadratic extension arithmetic over the BN254 base field.
//
// E2 mirrors the tower layout used by gnark-crypto (Fp[u]/(u^2+1)) but is
// defined locally so that the pairing can be advanced one bounded step at a
// time; gnark-crypto's own Miller loop runs to completion in a single call
// and cannot be checkpointed.

package pairing

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
)

// ErrDivisionByZero is returned when inverting the additive identity.
// Valid proof and key material never triggers it.
var ErrDivisionByZero = errors.New("pairing: division by zero")

// E2 is an element of Fp2, represented as A0 + A1*u with u^2 = -1.
type E2 struct {
	A0, A1 fp.Element
}

// SetZero sets z to 0 and returns z.
func (z *E2) SetZero() *E2 {
	z.A0.SetZero()
	z.A1.SetZero()
	return z
}

// SetOne sets z to 1 and returns z.
func (z *E2) SetOne() *E2 {
	z.A0.SetOne()
	z.A1.SetZero()
	return z
}

// Set copies x into z and returns z.
func (z *E2) Set(x *E2) *E2 {
	z.A0 = x.A0
	z.A1 = x.A1
	return z
}

// IsZero reports whether z is the additive identity.
func (z *E2) IsZero() bool {
	return z.A0.IsZero() && z.A1.IsZero()
}

// Equal reports whether z and x are the same field element.
func (z *E2) Equal(x *E2) bool {
	return z.A0.Equal(&x.A0) && z.A1.Equal(&x.A1)
}

// Add sets z = x + y and returns z.
func (z *E2) Add(x, y *E2) *E2 {
	z.A0.Add(&x.A0, &y.A0)
	z.A1.Add(&x.A1, &y.A1)
	return z
}

// Sub sets z = x - y and returns z.
func (z *E2) Sub(x, y *E2) *E2 {
	z.A0.Sub(&x.A0, &y.A0)
	z.A1.Sub(&x.A1, &y.A1)
	return z
}

// Double sets z = 2x and returns z.
func (z *E2) Double(x *E2) *E2 {
	z.A0.Double(&x.A0)
	z.A1.Double(&x.A1)
	return z
}

// Neg sets z = -x and returns z.
func (z *E2) Neg(x *E2) *E2 {
	z.A0.Neg(&x.A0)
	z.A1.Neg(&x.A1)
	return z
}

// Conjugate sets z = A0 - A1*u and returns z.
func (z *E2) Conjugate(x *E2) *E2 {
	z.A0 = x.A0
	z.A1.Neg(&x.A1)
	return z
}

// Mul sets z = x * y using schoolbook multiplication over u^2 = -1.
func (z *E2) Mul(x, y *E2) *E2 {
	var t0, t1, t2, t3 fp.Element
	t0.Mul(&x.A0, &y.A0)
	t1.Mul(&x.A1, &y.A1)
	t2.Mul(&x.A0, &y.A1)
	t3.Mul(&x.A1, &y.A0)
	z.A0.Sub(&t0, &t1)
	z.A1.Add(&t2, &t3)
	return z
}

// Square sets z = x^2 via the complex-squaring identity.
func (z *E2) Square(x *E2) *E2 {
	// (a+bu)^2 = (a+b)(a-b) + 2ab*u
	var sum, diff, prod fp.Element
	sum.Add(&x.A0, &x.A1)
	diff.Sub(&x.A0, &x.A1)
	prod.Mul(&x.A0, &x.A1)
	z.A0.Mul(&sum, &diff)
	z.A1.Double(&prod)
	return z
}

// MulByElement sets z = x * c for a base-field scalar c.
func (z *E2) MulByElement(x *E2, c *fp.Element) *E2 {
	z.A0.Mul(&x.A0, c)
	z.A1.Mul(&x.A1, c)
	return z
}

// Inverse sets z = 1/x. It fails with ErrDivisionByZero for x = 0,
// which a caller should surface as malformed input.
func (z *E2) Inverse(x *E2) (*E2, error) {
	if x.IsZero() {
		return nil, ErrDivisionByZero
	}
	// 1/(a+bu) = (a-bu)/(a^2+b^2)
	var t0, t1 fp.Element
	t0.Square(&x.A0)
	t1.Square(&x.A1)
	t0.Add(&t0, &t1)
	t0.Inverse(&t0)
	z.A0.Mul(&x.A0, &t0)
	t0.Neg(&t0)
	z.A1.Mul(&x.A1, &t0)
	return z, nil
}
