// vkey.go - Prepared verifying keys for the staged verifier.
//
// A key is imported once at startup from its gnark serialization,
// checked byte-for-byte against a published digest, and converted into
// the prepared form the verification program consumes: negated gamma and
// delta with precomputed line schedules, the e(alpha, beta) target, and
// the public-input points. Prepared keys are immutable; the pool passes
// them explicitly wherever verification runs.

package vkey

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"

	"shield/internal/pairing"
)

// ErrDigestMismatch means the key bytes do not match the expected
// reference artifact. A mismatched key would silently verify proofs
// against the wrong circuit, so loading fails hard.
var ErrDigestMismatch = errors.New("vkey: verifying key digest mismatch")

// VerifyingKey is the prepared, immutable form of one circuit's key.
type VerifyingKey struct {
	// K holds the public-input points: L = K[0] + sum(input_i * K[i+1]).
	K []bn254.G1Affine

	// AlphaBeta is the precomputed pairing e(alpha, beta); the staged
	// verifier accepts iff its pairing product equals this value.
	AlphaBeta bn254.GT

	// GammaLines and DeltaLines are the Miller-loop line schedules of
	// -gamma and -delta.
	GammaLines []pairing.LineCoeffs
	DeltaLines []pairing.LineCoeffs

	// Digest is the SHA-256 of the canonical key serialization.
	Digest [32]byte
}

// NumInputs is the number of public inputs the circuit expects.
func (vk *VerifyingKey) NumInputs() int {
	return len(vk.K) - 1
}

// Prepare converts a gnark BN254 verifying key.
func Prepare(src *groth16bn254.VerifyingKey) (*VerifyingKey, error) {
	if len(src.G1.K) < 2 {
		return nil, errors.New("vkey: key has no public inputs")
	}

	vk := &VerifyingKey{K: make([]bn254.G1Affine, len(src.G1.K))}
	copy(vk.K, src.G1.K)

	e, err := bn254.Pair([]bn254.G1Affine{src.G1.Alpha}, []bn254.G2Affine{src.G2.Beta})
	if err != nil {
		return nil, fmt.Errorf("vkey: pairing alpha/beta: %w", err)
	}
	vk.AlphaBeta = e

	var gammaNeg, deltaNeg bn254.G2Affine
	gammaNeg.Neg(&src.G2.Gamma)
	deltaNeg.Neg(&src.G2.Delta)
	vk.GammaLines = pairing.PrepareLines(pairing.FromCurvePoint(&gammaNeg))
	vk.DeltaLines = pairing.PrepareLines(pairing.FromCurvePoint(&deltaNeg))

	var buf bytes.Buffer
	if _, err := src.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("vkey: serialize: %w", err)
	}
	vk.Digest = sha256.Sum256(buf.Bytes())
	return vk, nil
}

// Load reads a gnark-serialized key, verifies it against the expected
// digest, and prepares it.
func Load(r io.Reader, expected [32]byte) (*VerifyingKey, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("vkey: read: %w", err)
	}
	if sha256.Sum256(raw) != expected {
		return nil, ErrDigestMismatch
	}

	var src groth16bn254.VerifyingKey
	if _, err := src.ReadFrom(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("vkey: decode: %w", err)
	}
	return Prepare(&src)
}
