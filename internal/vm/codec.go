// codec.go - Versioned fixed-size binary layout for persisted slots.
//
// The layout is strict: fixed offsets, canonical big-endian field
// encodings, and a trailing SHA-256 digest over everything before it.
// There is no in-place migration; a version bump invalidates old slots.

package vm

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"shield/internal/pairing"
	"shield/internal/program"
)

// LayoutVersion identifies the slot layout. Decoding any other version
// fails with ErrCorruptedState.
const LayoutVersion = 1

const (
	headerSize  = 30
	elementSize = 32
	digestSize  = 32

	// fixedElements counts the field elements of the register file:
	// GT registers, R, B, BNeg, Acc, GIC, L, operand stack, proof.
	fixedElements = program.NumGTRegisters*12 + 6 + 4 + 4 + 3 + 3 + 2 + StackCap + 8
)

// EncodedSize returns the exact slot size for a circuit with n public
// inputs.
func EncodedSize(n int) int {
	return headerSize + (fixedElements+n)*elementSize + digestSize
}

type encoder struct {
	buf []byte
}

func (e *encoder) fp(v *fp.Element) {
	b := v.Bytes()
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) e2(v *pairing.E2) {
	e.fp(&v.A0)
	e.fp(&v.A1)
}

func (e *encoder) gt(v *bn254.GT) {
	e.fpPair(&v.C0.B0.A0, &v.C0.B0.A1)
	e.fpPair(&v.C0.B1.A0, &v.C0.B1.A1)
	e.fpPair(&v.C0.B2.A0, &v.C0.B2.A1)
	e.fpPair(&v.C1.B0.A0, &v.C1.B0.A1)
	e.fpPair(&v.C1.B1.A0, &v.C1.B1.A1)
	e.fpPair(&v.C1.B2.A0, &v.C1.B2.A1)
}

func (e *encoder) fpPair(a, b *fp.Element) {
	e.fp(a)
	e.fp(b)
}

// Encode serializes the state into the versioned layout.
func (s *State) Encode() []byte {
	n := len(s.Inputs)
	enc := encoder{buf: make([]byte, 0, EncodedSize(n))}

	enc.buf = append(enc.buf, LayoutVersion)
	enc.buf = append(enc.buf, s.ID[:]...)
	enc.buf = append(enc.buf, byte(s.Status))
	enc.buf = binary.BigEndian.AppendUint32(enc.buf, s.Round)
	enc.buf = binary.BigEndian.AppendUint32(enc.buf, s.PC)
	if s.Result {
		enc.buf = append(enc.buf, 1)
	} else {
		enc.buf = append(enc.buf, 0)
	}
	enc.buf = binary.BigEndian.AppendUint16(enc.buf, uint16(n))
	enc.buf = append(enc.buf, byte(s.Stack.top))

	for i := range s.GT {
		enc.gt(&s.GT[i])
	}
	enc.e2(&s.R.X)
	enc.e2(&s.R.Y)
	enc.e2(&s.R.Z)
	enc.e2(&s.B.X)
	enc.e2(&s.B.Y)
	enc.e2(&s.BNeg.X)
	enc.e2(&s.BNeg.Y)
	enc.fp(&s.Acc.X)
	enc.fp(&s.Acc.Y)
	enc.fp(&s.Acc.Z)
	enc.fp(&s.GIC.X)
	enc.fp(&s.GIC.Y)
	enc.fp(&s.GIC.Z)
	enc.fp(&s.L.X)
	enc.fp(&s.L.Y)
	for i := 0; i < StackCap; i++ {
		enc.fp(&s.Stack.elems[i])
	}
	enc.fp(&s.Proof.A.X)
	enc.fp(&s.Proof.A.Y)
	enc.fpPair(&s.Proof.B.X.A0, &s.Proof.B.X.A1)
	enc.fpPair(&s.Proof.B.Y.A0, &s.Proof.B.Y.A1)
	enc.fp(&s.Proof.C.X)
	enc.fp(&s.Proof.C.Y)
	for i := range s.Inputs {
		b := s.Inputs[i].Bytes()
		enc.buf = append(enc.buf, b[:]...)
	}

	digest := sha256.Sum256(enc.buf)
	enc.buf = append(enc.buf, digest[:]...)
	return enc.buf
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) fp(v *fp.Element) error {
	if err := v.SetBytesCanonical(d.buf[d.off : d.off+elementSize]); err != nil {
		return fmt.Errorf("%w: non-canonical element at offset %d", ErrCorruptedState, d.off)
	}
	d.off += elementSize
	return nil
}

func (d *decoder) e2(v *pairing.E2) error {
	if err := d.fp(&v.A0); err != nil {
		return err
	}
	return d.fp(&v.A1)
}

func (d *decoder) gt(v *bn254.GT) error {
	dst := [12]*fp.Element{
		&v.C0.B0.A0, &v.C0.B0.A1, &v.C0.B1.A0, &v.C0.B1.A1,
		&v.C0.B2.A0, &v.C0.B2.A1, &v.C1.B0.A0, &v.C1.B0.A1,
		&v.C1.B1.A0, &v.C1.B1.A1, &v.C1.B2.A0, &v.C1.B2.A1,
	}
	for _, p := range dst {
		if err := d.fp(p); err != nil {
			return err
		}
	}
	return nil
}

// Decode reconstructs a state from its persisted bytes, verifying the
// layout version, size, and integrity digest.
func Decode(raw []byte) (*State, error) {
	if len(raw) < headerSize+digestSize {
		return nil, fmt.Errorf("%w: slot truncated", ErrCorruptedState)
	}
	if raw[0] != LayoutVersion {
		return nil, fmt.Errorf("%w: unsupported layout version %d", ErrCorruptedState, raw[0])
	}

	n := int(binary.BigEndian.Uint16(raw[27:29]))
	if len(raw) != EncodedSize(n) {
		return nil, fmt.Errorf("%w: slot size %d does not match layout", ErrCorruptedState, len(raw))
	}

	payload := raw[:len(raw)-digestSize]
	var digest [32]byte
	copy(digest[:], raw[len(raw)-digestSize:])
	if sha256.Sum256(payload) != digest {
		return nil, fmt.Errorf("%w: integrity digest mismatch", ErrCorruptedState)
	}

	s := &State{}
	copy(s.ID[:], raw[1:17])
	s.Status = Status(raw[17])
	if s.Status > StatusAborted {
		return nil, fmt.Errorf("%w: unknown status %d", ErrCorruptedState, raw[17])
	}
	s.Round = binary.BigEndian.Uint32(raw[18:22])
	s.PC = binary.BigEndian.Uint32(raw[22:26])
	s.Result = raw[26] == 1
	s.Stack.top = int(raw[29])
	if s.Stack.top > StackCap {
		return nil, fmt.Errorf("%w: stack top out of range", ErrCorruptedState)
	}

	d := decoder{buf: raw, off: headerSize}
	for i := range s.GT {
		if err := d.gt(&s.GT[i]); err != nil {
			return nil, err
		}
	}
	for _, v := range []*pairing.E2{&s.R.X, &s.R.Y, &s.R.Z, &s.B.X, &s.B.Y, &s.BNeg.X, &s.BNeg.Y} {
		if err := d.e2(v); err != nil {
			return nil, err
		}
	}
	for _, v := range []*fp.Element{&s.Acc.X, &s.Acc.Y, &s.Acc.Z, &s.GIC.X, &s.GIC.Y, &s.GIC.Z, &s.L.X, &s.L.Y} {
		if err := d.fp(v); err != nil {
			return nil, err
		}
	}
	for i := 0; i < StackCap; i++ {
		if err := d.fp(&s.Stack.elems[i]); err != nil {
			return nil, err
		}
	}
	for _, v := range []*fp.Element{
		&s.Proof.A.X, &s.Proof.A.Y,
		&s.Proof.B.X.A0, &s.Proof.B.X.A1, &s.Proof.B.Y.A0, &s.Proof.B.Y.A1,
		&s.Proof.C.X, &s.Proof.C.Y,
	} {
		if err := d.fp(v); err != nil {
			return nil, err
		}
	}

	s.Inputs = make([]fr.Element, n)
	for i := range s.Inputs {
		if err := s.Inputs[i].SetBytesCanonical(raw[d.off : d.off+elementSize]); err != nil {
			return nil, fmt.Errorf("%w: non-canonical public input %d", ErrCorruptedState, i)
		}
		d.off += elementSize
	}
	return s, nil
}
