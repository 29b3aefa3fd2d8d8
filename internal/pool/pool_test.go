package pool

import (
	"sync"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"shield/internal/note"
	"shield/internal/store"
	"shield/internal/vkey"
	"shield/internal/vm"
)

// depositCircuit proves knowledge of a note opening to a public
// commitment.
type depositCircuit struct {
	Amount     frontend.Variable
	Owner      frontend.Variable
	Rho        frontend.Variable
	Rand       frontend.Variable
	Commitment frontend.Variable `gnark:",public"`
}

func (c *depositCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Amount, c.Owner, c.Rho, c.Rand)
	api.AssertIsEqual(c.Commitment, h.Sum())
	return nil
}

// withdrawCircuit proves knowledge of the spend key behind a public
// nullifier. The root is carried as an opaque public input.
type withdrawCircuit struct {
	Rho       frontend.Variable
	Sk        frontend.Variable
	Root      frontend.Variable `gnark:",public"`
	Nullifier frontend.Variable `gnark:",public"`
}

func (c *withdrawCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Rho, c.Sk)
	api.AssertIsEqual(c.Nullifier, h.Sum())
	api.AssertIsEqual(api.Mul(c.Root, 1), c.Root)
	return nil
}

type circuitFixture struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  *vkey.VerifyingKey
}

type poolFixture struct {
	deposit  circuitFixture
	withdraw circuitFixture
}

var (
	poolOnce    sync.Once
	poolFixt    *poolFixture
	poolFixtErr error
)

func setupCircuit(circuit frontend.Circuit) (circuitFixture, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return circuitFixture{}, err
	}
	pk, gvk, err := groth16.Setup(ccs)
	if err != nil {
		return circuitFixture{}, err
	}
	vk, err := vkey.Prepare(gvk.(*groth16bn254.VerifyingKey))
	if err != nil {
		return circuitFixture{}, err
	}
	return circuitFixture{ccs: ccs, pk: pk, vk: vk}, nil
}

func getPoolFixture(t *testing.T) *poolFixture {
	t.Helper()
	poolOnce.Do(func() {
		var fx poolFixture
		fx.deposit, poolFixtErr = setupCircuit(&depositCircuit{})
		if poolFixtErr != nil {
			return
		}
		fx.withdraw, poolFixtErr = setupCircuit(&withdrawCircuit{})
		poolFixt = &fx
	})
	require.NoError(t, poolFixtErr)
	return poolFixt
}

func prove(t *testing.T, fx circuitFixture, assignment frontend.Circuit) vm.Proof {
	t.Helper()
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	require.NoError(t, err)
	gproof, err := groth16.Prove(fx.ccs, fx.pk, w)
	require.NoError(t, err)
	pb := gproof.(*groth16bn254.Proof)
	return vm.Proof{A: pb.Ar, B: pb.Bs, C: pb.Krs}
}

func newTestPool(t *testing.T, fx *poolFixture) *Pool {
	t.Helper()
	st, err := store.Open("", true, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	p, err := New(st, Config{
		DepositKey:  fx.deposit.vk,
		WithdrawKey: fx.withdraw.vk,
		TreeDepth:   4,
	}, zerolog.Nop(), NewMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	return p
}

func frFromBytes(t *testing.T, b [32]byte) fr.Element {
	t.Helper()
	var e fr.Element
	require.NoError(t, e.SetBytesCanonical(b[:]))
	return e
}

// drive advances id through every remaining round in order, returning
// the final status and the error of the terminal advance.
func drive(t *testing.T, p *Pool, id uuid.UUID, k int) (vm.Status, error) {
	t.Helper()
	for round := 0; ; round++ {
		require.Less(t, round, k, "computation must terminate within K rounds")
		status, err := p.Advance(id, uint32(round))
		if status.Terminal() || err != nil {
			require.Equal(t, k-1, round, "terminal round must be the K-th")
			return status, err
		}
	}
}

func depositNote(t *testing.T) (*note.Note, fr.Element) {
	t.Helper()
	var owner fr.Element
	owner.SetUint64(7001)
	n, err := note.Random(500, owner)
	require.NoError(t, err)
	return n, frFromBytes(t, n.Commitment())
}

func submitDeposit(t *testing.T, p *Pool, fx *poolFixture) (uuid.UUID, fr.Element) {
	t.Helper()
	n, cm := depositNote(t)
	proof := prove(t, fx.deposit, &depositCircuit{
		Amount:     n.Amount,
		Owner:      n.Owner,
		Rho:        n.Rho,
		Rand:       n.Rand,
		Commitment: cm,
	})
	id, err := p.Submit(KindDeposit, proof, []fr.Element{cm})
	require.NoError(t, err)
	return id, cm
}

func TestDepositLifecycle(t *testing.T) {
	fx := getPoolFixture(t)
	p := newTestPool(t, fx)
	k, err := p.K(KindDeposit)
	require.NoError(t, err)

	rootBefore := p.Root()
	id, _ := submitDeposit(t, p, fx)

	status, err := drive(t, p, id, k)
	require.NoError(t, err)
	require.Equal(t, vm.StatusAccepted, status)
	require.NotEqual(t, rootBefore, p.Root(), "accepted deposit must move the root")

	res, err := p.Finalize(id)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, KindDeposit, res.Kind)
	require.Equal(t, uint32(0), res.LeafIndex)
	require.Equal(t, p.Root(), res.NewRoot)

	// The slot is reclaimed.
	_, err = p.Finalize(id)
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = p.Status(id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRoundTokenSequencing(t *testing.T) {
	fx := getPoolFixture(t)
	p := newTestPool(t, fx)

	id, _ := submitDeposit(t, p, fx)

	// Wrong token before any advance.
	_, err := p.Advance(id, 5)
	require.ErrorIs(t, err, vm.ErrSequence)
	_, round, err := p.Status(id)
	require.NoError(t, err)
	require.Equal(t, uint32(0), round)

	// First advance moves the token; replaying it fails.
	_, err = p.Advance(id, 0)
	require.NoError(t, err)
	_, err = p.Advance(id, 0)
	require.ErrorIs(t, err, vm.ErrSequence)
	_, round, err = p.Status(id)
	require.NoError(t, err)
	require.Equal(t, uint32(1), round)
}

func TestRejectedProofLeavesSharedStateUntouched(t *testing.T) {
	fx := getPoolFixture(t)
	p := newTestPool(t, fx)
	k, err := p.K(KindDeposit)
	require.NoError(t, err)

	n, cm := depositNote(t)
	proof := prove(t, fx.deposit, &depositCircuit{
		Amount:     n.Amount,
		Owner:      n.Owner,
		Rho:        n.Rho,
		Rand:       n.Rand,
		Commitment: cm,
	})

	// Valid proof, mismatched public input.
	var wrong fr.Element
	wrong.SetUint64(1)
	wrong.Add(&wrong, &cm)

	rootBefore := p.Root()
	id, err := p.Submit(KindDeposit, proof, []fr.Element{wrong})
	require.NoError(t, err)

	status, err := drive(t, p, id, k)
	require.NoError(t, err)
	require.Equal(t, vm.StatusRejected, status)
	require.Equal(t, rootBefore, p.Root(), "rejected proof must not mutate the tree")

	res, err := p.Finalize(id)
	require.NoError(t, err)
	require.False(t, res.Accepted)
}

func TestWithdrawAndDoubleSpend(t *testing.T) {
	fx := getPoolFixture(t)
	p := newTestPool(t, fx)

	// A deposit first, so a real root exists.
	depID, _ := submitDeposit(t, p, fx)
	k, err := p.K(KindDeposit)
	require.NoError(t, err)
	_, err = drive(t, p, depID, k)
	require.NoError(t, err)
	_, err = p.Finalize(depID)
	require.NoError(t, err)

	var owner, sk fr.Element
	owner.SetUint64(7001)
	sk.SetUint64(99)
	n, err := note.Random(500, owner)
	require.NoError(t, err)
	nf := frFromBytes(t, n.Nullifier(&sk))
	root := frFromBytes(t, p.Root())

	withdraw := func() (uuid.UUID, error) {
		proof := prove(t, fx.withdraw, &withdrawCircuit{
			Rho:       n.Rho,
			Sk:        sk,
			Root:      root,
			Nullifier: nf,
		})
		return p.Submit(KindWithdraw, proof, []fr.Element{root, nf})
	}

	wk, err := p.K(KindWithdraw)
	require.NoError(t, err)

	id, err := withdraw()
	require.NoError(t, err)
	status, err := drive(t, p, id, wk)
	require.NoError(t, err)
	require.Equal(t, vm.StatusAccepted, status)

	res, err := p.Finalize(id)
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, nf.Bytes(), res.Nullifier)

	// Same nullifier again: verification succeeds, accept is downgraded.
	id2, err := withdraw()
	require.NoError(t, err)
	status, err = drive(t, p, id2, wk)
	require.ErrorIs(t, err, ErrDoubleSpend)
	require.Equal(t, vm.StatusRejected, status)

	res, err = p.Finalize(id2)
	require.NoError(t, err)
	require.False(t, res.Accepted)
}

func TestWithdrawUnknownRootRejectedAtSubmit(t *testing.T) {
	fx := getPoolFixture(t)
	p := newTestPool(t, fx)

	var root, nf fr.Element
	root.SetUint64(123456)
	nf.SetUint64(1)

	proof := prove(t, fx.withdraw, &withdrawCircuit{
		Rho:       fr.NewElement(1),
		Sk:        fr.NewElement(2),
		Root:      root,
		Nullifier: nf,
	})
	_, err := p.Submit(KindWithdraw, proof, []fr.Element{root, nf})
	require.ErrorIs(t, err, ErrUnknownRoot)
}

func TestAbortFreesSlot(t *testing.T) {
	fx := getPoolFixture(t)
	p := newTestPool(t, fx)

	id, _ := submitDeposit(t, p, fx)
	_, err := p.Advance(id, 0)
	require.NoError(t, err)

	require.NoError(t, p.Abort(id))
	_, _, err = p.Status(id)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, p.Abort(id), ErrNotFound)
}

func TestFinalizeBeforeTerminalFails(t *testing.T) {
	fx := getPoolFixture(t)
	p := newTestPool(t, fx)

	id, _ := submitDeposit(t, p, fx)
	_, err := p.Finalize(id)
	require.ErrorIs(t, err, ErrNotFinished)
}
