package vkey

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/stretchr/testify/require"

	"shield/internal/pairing"
)

type squareCircuit struct {
	X frontend.Variable
	Y frontend.Variable `gnark:",public"`
}

func (c *squareCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(c.Y, api.Mul(c.X, c.X))
	return nil
}

func setupKey(t *testing.T) (*groth16bn254.VerifyingKey, []byte) {
	t.Helper()
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &squareCircuit{})
	require.NoError(t, err)
	_, gvk, err := groth16.Setup(ccs)
	require.NoError(t, err)

	src := gvk.(*groth16bn254.VerifyingKey)
	var buf bytes.Buffer
	_, err = src.WriteTo(&buf)
	require.NoError(t, err)
	return src, buf.Bytes()
}

func TestPrepareComputesTargetAndLines(t *testing.T) {
	src, raw := setupKey(t)

	vk, err := Prepare(src)
	require.NoError(t, err)
	require.Equal(t, 1, vk.NumInputs())
	require.Equal(t, sha256.Sum256(raw), vk.Digest)

	want := pairing.LineScheduleLen()
	require.Len(t, vk.GammaLines, want)
	require.Len(t, vk.DeltaLines, want)

	e, err := bn254.Pair([]bn254.G1Affine{src.G1.Alpha}, []bn254.G2Affine{src.G2.Beta})
	require.NoError(t, err)
	require.True(t, vk.AlphaBeta.Equal(&e))
}

func TestLoadVerifiesDigest(t *testing.T) {
	_, raw := setupKey(t)

	vk, err := Load(bytes.NewReader(raw), sha256.Sum256(raw))
	require.NoError(t, err)
	require.Equal(t, 1, vk.NumInputs())

	// A mismatched digest must fail before any decoding happens.
	var wrong [32]byte
	_, err = Load(bytes.NewReader(raw), wrong)
	require.ErrorIs(t, err, ErrDigestMismatch)

	// Tampered bytes fail the digest check too.
	tampered := append([]byte(nil), raw...)
	tampered[10] ^= 0x01
	_, err = Load(bytes.NewReader(tampered), sha256.Sum256(raw))
	require.ErrorIs(t, err, ErrDigestMismatch)
}
