// pool.go - Computation pool gating the commitment tree and nullifiers.
//
// The pool owns one verification machine per request kind, the
// commitment tree, and the nullifier set, and exposes the slot protocol:
// submit, advance (one round per call, with an explicit round token),
// finalize, abort. The accept-path side effects commit inside a single
// store transaction together with the terminal status, so no observer
// can see Accepted without the matching tree or nullifier mutation.

package pool

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	badger "github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shield/internal/merkle"
	"shield/internal/nullifier"
	"shield/internal/program"
	"shield/internal/store"
	"shield/internal/vkey"
	"shield/internal/vm"
)

// Kind selects which circuit a submission is verified against.
type Kind uint8

const (
	KindDeposit Kind = iota
	KindWithdraw
)

func (k Kind) String() string {
	switch k {
	case KindDeposit:
		return "deposit"
	case KindWithdraw:
		return "withdraw"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Public-input layout per kind. Further inputs are opaque to the pool.
const (
	// DepositInputCommitment is the tree leaf of a deposit.
	DepositInputCommitment = 0
	// WithdrawInputRoot is the tree root the withdrawal proves against.
	WithdrawInputRoot = 0
	// WithdrawInputNullifier is the spend tag recorded on accept.
	WithdrawInputNullifier = 1
)

// Config wires the pool's circuits and tree parameters.
type Config struct {
	DepositKey  *vkey.VerifyingKey
	WithdrawKey *vkey.VerifyingKey
	Ceiling     uint32
	TreeDepth   int
	RootHistory int
}

// Result is the terminal outcome handed back by Finalize.
type Result struct {
	Accepted  bool
	Kind      Kind
	NewRoot   [32]byte
	LeafIndex uint32
	Nullifier [32]byte
}

// Pool coordinates in-flight verifications and their shared state.
type Pool struct {
	mu    sync.Mutex
	vms   map[Kind]*vm.VM
	store *store.Store
	tree  *merkle.Tree
	nulls *nullifier.Badger
	log   zerolog.Logger
	met   *Metrics
}

// New builds the pool: compiles one program per configured circuit and
// restores the commitment tree from the store, if one was persisted.
func New(st *store.Store, cfg Config, log zerolog.Logger, met *Metrics) (*Pool, error) {
	if cfg.Ceiling == 0 {
		cfg.Ceiling = program.DefaultCeiling
	}
	if cfg.TreeDepth == 0 {
		cfg.TreeDepth = merkle.DefaultDepth
	}
	if cfg.RootHistory == 0 {
		cfg.RootHistory = merkle.DefaultHistory
	}

	vms := make(map[Kind]*vm.VM)
	for kind, key := range map[Kind]*vkey.VerifyingKey{
		KindDeposit:  cfg.DepositKey,
		KindWithdraw: cfg.WithdrawKey,
	} {
		if key == nil {
			continue
		}
		prog, err := program.Compile(key.NumInputs(), cfg.Ceiling)
		if err != nil {
			return nil, fmt.Errorf("pool: compile %s program: %w", kind, err)
		}
		m, err := vm.New(key, prog)
		if err != nil {
			return nil, fmt.Errorf("pool: %s machine: %w", kind, err)
		}
		vms[kind] = m
		log.Info().Str("kind", kind.String()).
			Int("inputs", key.NumInputs()).
			Int("rounds", m.K()).
			Msg("circuit loaded")
	}
	if len(vms) == 0 {
		return nil, errors.New("pool: no circuit configured")
	}

	tree, err := merkle.New(cfg.TreeDepth, cfg.RootHistory)
	if err != nil {
		return nil, err
	}
	raw, err := st.GetTree()
	switch {
	case err == nil:
		if err := tree.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("pool: restore tree: %w", err)
		}
		log.Info().Uint32("leaves", tree.NumLeaves()).Msg("commitment tree restored")
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, err
	}

	return &Pool{
		vms:   vms,
		store: st,
		tree:  tree,
		nulls: nullifier.NewBadger(st.DB()),
		log:   log,
		met:   met,
	}, nil
}

// K returns the fixed round count of the kind's circuit.
func (p *Pool) K(kind Kind) (int, error) {
	m, ok := p.vms[kind]
	if !ok {
		return 0, ErrUnknownKind
	}
	return m.K(), nil
}

// Root returns the current commitment root.
func (p *Pool) Root() [32]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tree.Root()
}

// Submit validates the proof shape, allocates a slot, and installs the
// round-0 state. The returned id drives all later calls.
func (p *Pool) Submit(kind Kind, proof vm.Proof, inputs []fr.Element) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.vms[kind]
	if !ok {
		return uuid.Nil, ErrUnknownKind
	}
	if kind == KindWithdraw {
		if len(inputs) <= WithdrawInputNullifier {
			return uuid.Nil, fmt.Errorf("%w: withdrawal needs root and nullifier inputs",
				vm.ErrMalformedInput)
		}
		if !p.tree.KnownRoot(inputs[WithdrawInputRoot].Bytes()) {
			return uuid.Nil, ErrUnknownRoot
		}
	}
	if kind == KindDeposit && len(inputs) <= DepositInputCommitment {
		return uuid.Nil, fmt.Errorf("%w: deposit needs a commitment input", vm.ErrMalformedInput)
	}

	id := uuid.New()
	cid := vm.ComputationID(id)
	exists, err := p.store.HasSlot(cid)
	if err != nil {
		return uuid.Nil, err
	}
	if exists {
		return uuid.Nil, ErrDuplicateComputation
	}

	st, err := m.Begin(cid, proof, inputs)
	if err != nil {
		return uuid.Nil, err
	}
	if err := p.store.PutSlot(cid, encodeSlot(kind, st)); err != nil {
		return uuid.Nil, err
	}

	p.met.Submitted.WithLabelValues(kind.String()).Inc()
	p.met.LiveSlots.Inc()
	p.log.Info().Stringer("id", id).Str("kind", kind.String()).Msg("computation submitted")
	return id, nil
}

// Advance executes exactly one round. The caller presents the round it
// believes is current; a stale or replayed token fails with ErrSequence
// and leaves the slot untouched. The terminal round resolves the
// computation and commits any accept-path mutation atomically.
func (p *Pool) Advance(id uuid.UUID, round uint32) (vm.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kind, st, err := p.loadSlot(vm.ComputationID(id))
	if err != nil {
		return 0, err
	}
	if st.Status.Terminal() {
		return st.Status, vm.ErrAlreadyFinished
	}
	if st.Round != round {
		return st.Status, fmt.Errorf("%w: slot at round %d, caller presented %d",
			vm.ErrSequence, st.Round, round)
	}

	m := p.vms[kind]
	res, err := m.Advance(st)
	if err != nil {
		// The computation aborted; keep the slot so the failure is
		// observable until the owner reclaims it.
		if perr := p.store.PutSlot(st.ID, encodeSlot(kind, st)); perr != nil {
			return st.Status, perr
		}
		p.log.Error().Stringer("id", id).Err(err).Msg("round execution failed")
		return st.Status, err
	}
	p.met.Rounds.Inc()

	if res == nil {
		if err := p.store.PutSlot(st.ID, encodeSlot(kind, st)); err != nil {
			return st.Status, err
		}
		return st.Status, nil
	}
	return p.resolve(id, kind, st, res)
}

// resolve commits the terminal transition and its side effects.
func (p *Pool) resolve(id uuid.UUID, kind Kind, st *vm.State, res *vm.TerminalResult) (vm.Status, error) {
	rec := Result{Accepted: res.Accepted, Kind: kind}
	var terminalErr error

	switch {
	case !res.Accepted:
		p.met.Rejects.Inc()

	case kind == KindDeposit:
		leaf := st.Inputs[DepositInputCommitment].Bytes()
		snapshot, err := p.tree.MarshalBinary()
		if err != nil {
			return st.Status, err
		}
		index, newRoot, err := p.tree.Append(leaf)
		if errors.Is(err, merkle.ErrCapacityExceeded) {
			st.Status = vm.StatusRejected
			rec.Accepted = false
			terminalErr = err
			p.met.Rejects.Inc()
			break
		}
		if err != nil {
			return st.Status, err
		}
		rec.NewRoot = newRoot
		rec.LeafIndex = index
		treeBytes, err := p.tree.MarshalBinary()
		if err != nil {
			return st.Status, err
		}
		commitErr := p.store.Update(func(txn *badger.Txn) error {
			if err := p.store.PutSlotIn(txn, st.ID, encodeSlot(kind, st)); err != nil {
				return err
			}
			if err := p.store.PutResultIn(txn, st.ID, rec.encode()); err != nil {
				return err
			}
			return p.store.PutTreeIn(txn, treeBytes)
		})
		if commitErr != nil {
			// Roll the in-memory tree back to match durable state.
			var restored merkle.Tree
			if rerr := restored.UnmarshalBinary(snapshot); rerr == nil {
				p.tree = &restored
			}
			return st.Status, commitErr
		}
		p.met.Accepts.Inc()
		p.log.Info().Stringer("id", id).Uint32("leaf", index).Msg("deposit accepted")
		return st.Status, nil

	case kind == KindWithdraw:
		nf := st.Inputs[WithdrawInputNullifier].Bytes()
		var inserted bool
		commitErr := p.store.Update(func(txn *badger.Txn) error {
			var err error
			inserted, err = p.nulls.InsertIfAbsentIn(txn, nf)
			if err != nil {
				return err
			}
			if !inserted {
				// Downgrade inside the same transaction; the insert
				// above is discarded with nothing else to retain.
				st.Status = vm.StatusRejected
				rec.Accepted = false
				rec.Nullifier = nf
			} else {
				rec.Nullifier = nf
				rec.NewRoot = p.tree.Root()
			}
			if err := p.store.PutSlotIn(txn, st.ID, encodeSlot(kind, st)); err != nil {
				return err
			}
			return p.store.PutResultIn(txn, st.ID, rec.encode())
		})
		if commitErr != nil {
			return st.Status, commitErr
		}
		if !inserted {
			p.met.DoubleSpends.Inc()
			p.log.Warn().Stringer("id", id).Msg("withdrawal rejected: nullifier present")
			return st.Status, ErrDoubleSpend
		}
		p.met.Accepts.Inc()
		p.log.Info().Stringer("id", id).Msg("withdrawal accepted")
		return st.Status, nil
	}

	// Reject path (including capacity downgrade): record, no mutation.
	err := p.store.Update(func(txn *badger.Txn) error {
		if err := p.store.PutSlotIn(txn, st.ID, encodeSlot(kind, st)); err != nil {
			return err
		}
		return p.store.PutResultIn(txn, st.ID, rec.encode())
	})
	if err != nil {
		return st.Status, err
	}
	p.log.Info().Stringer("id", id).Str("kind", kind.String()).Msg("proof rejected")
	return st.Status, terminalErr
}

// Status reports the slot's current status and round token.
func (p *Pool) Status(id uuid.UUID) (vm.Status, uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, st, err := p.loadSlot(vm.ComputationID(id))
	if err != nil {
		return 0, 0, err
	}
	return st.Status, st.Round, nil
}

// Finalize returns the terminal result and reclaims the slot.
func (p *Pool) Finalize(id uuid.UUID) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cid := vm.ComputationID(id)
	raw, err := p.store.GetResult(cid)
	if errors.Is(err, store.ErrNotFound) {
		exists, herr := p.store.HasSlot(cid)
		if herr != nil {
			return Result{}, herr
		}
		if exists {
			return Result{}, ErrNotFinished
		}
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}

	rec, err := decodeResult(raw)
	if err != nil {
		return Result{}, err
	}
	err = p.store.Update(func(txn *badger.Txn) error {
		if err := p.store.DeleteSlotIn(txn, cid); err != nil {
			return err
		}
		return p.store.DeleteResultIn(txn, cid)
	})
	if err != nil {
		return Result{}, err
	}
	p.met.LiveSlots.Dec()
	return rec, nil
}

// Abort transitions a live computation to Aborted and frees its slot.
func (p *Pool) Abort(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cid := vm.ComputationID(id)
	_, st, err := p.loadSlot(cid)
	if err != nil {
		return err
	}
	if err := st.Abort(); err != nil {
		return err
	}
	err = p.store.Update(func(txn *badger.Txn) error {
		if err := p.store.DeleteSlotIn(txn, cid); err != nil {
			return err
		}
		return p.store.DeleteResultIn(txn, cid)
	})
	if err != nil {
		return err
	}
	p.met.LiveSlots.Dec()
	p.log.Info().Stringer("id", id).Msg("computation aborted")
	return nil
}

func (p *Pool) loadSlot(id vm.ComputationID) (Kind, *vm.State, error) {
	raw, err := p.store.GetSlot(id)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	if len(raw) < 1 {
		return 0, nil, fmt.Errorf("%w: empty slot", vm.ErrCorruptedState)
	}
	kind := Kind(raw[0])
	if _, ok := p.vms[kind]; !ok {
		return 0, nil, fmt.Errorf("%w: slot kind %d", vm.ErrCorruptedState, raw[0])
	}
	st, err := vm.Decode(raw[1:])
	if err != nil {
		return 0, nil, err
	}
	return kind, st, nil
}

func encodeSlot(kind Kind, st *vm.State) []byte {
	return append([]byte{byte(kind)}, st.Encode()...)
}

const resultRecordLen = 1 + 1 + 4 + 32 + 32

func (r Result) encode() []byte {
	buf := make([]byte, 0, resultRecordLen)
	if r.Accepted {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, byte(r.Kind))
	buf = binary.BigEndian.AppendUint32(buf, r.LeafIndex)
	buf = append(buf, r.NewRoot[:]...)
	buf = append(buf, r.Nullifier[:]...)
	return buf
}

func decodeResult(raw []byte) (Result, error) {
	if len(raw) != resultRecordLen {
		return Result{}, fmt.Errorf("%w: result record size %d", vm.ErrCorruptedState, len(raw))
	}
	var r Result
	r.Accepted = raw[0] == 1
	r.Kind = Kind(raw[1])
	r.LeafIndex = binary.BigEndian.Uint32(raw[2:6])
	copy(r.NewRoot[:], raw[6:38])
	copy(r.Nullifier[:], raw[38:70])
	return r, nil
}
