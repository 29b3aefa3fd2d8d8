// tree.go - Append-only MiMC commitment tree.
//
// The tree is fixed-depth and incremental: appends touch only the O(D)
// cached right-edge hashes, never the full node set. Leaves are never
// updated or deleted, so the root is a pure function of the append
// sequence. A bounded history of recent roots supports withdrawal
// proofs built against a slightly stale tree.

package merkle

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

const (
	// DefaultDepth gives 2^20 commitment slots.
	DefaultDepth = 20

	// DefaultHistory is the number of recent roots retained.
	DefaultHistory = 32

	// MaxDepth bounds the depth so indices fit uint32.
	MaxDepth = 31
)

var (
	// ErrCapacityExceeded means every leaf slot is occupied.
	ErrCapacityExceeded = errors.New("merkle: tree capacity exceeded")

	// ErrInvalidLeaf means the leaf bytes are not a canonical field
	// element and cannot be hashed.
	ErrInvalidLeaf = errors.New("merkle: leaf is not a canonical field element")
)

// Tree is an incremental append-only Merkle tree over MiMC.
type Tree struct {
	depth int
	next  uint32

	// frontier[i] caches the left sibling at level i along the path of
	// the next append.
	frontier [][32]byte
	// zeros[i] is the hash of an empty subtree of height i.
	zeros [][32]byte

	root    [32]byte
	history [][32]byte
	histPos int
}

// New returns an empty tree of the given depth retaining historySize
// recent roots (at least the current one).
func New(depth, historySize int) (*Tree, error) {
	if depth < 1 || depth > MaxDepth {
		return nil, fmt.Errorf("merkle: depth %d out of range [1, %d]", depth, MaxDepth)
	}
	if historySize < 1 {
		return nil, errors.New("merkle: history size must be positive")
	}

	t := &Tree{
		depth:    depth,
		frontier: make([][32]byte, depth),
		zeros:    make([][32]byte, depth+1),
		history:  make([][32]byte, 0, historySize),
	}
	for i := 0; i < depth; i++ {
		t.zeros[i+1] = compress(t.zeros[i], t.zeros[i])
	}
	t.root = t.zeros[depth]
	t.history = append(t.history, t.root)
	return t, nil
}

// compress is the two-to-one MiMC node hash.
func compress(left, right [32]byte) [32]byte {
	h := mimc.NewMiMC()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Depth returns the fixed tree depth.
func (t *Tree) Depth() int {
	return t.depth
}

// Capacity returns the total number of leaf slots.
func (t *Tree) Capacity() uint32 {
	return 1 << t.depth
}

// NumLeaves returns the number of leaves appended so far.
func (t *Tree) NumLeaves() uint32 {
	return t.next
}

// Root returns the current root. Pure read.
func (t *Tree) Root() [32]byte {
	return t.root
}

// KnownRoot reports whether root is the current root or one of the
// retained recent roots.
func (t *Tree) KnownRoot(root [32]byte) bool {
	for _, r := range t.history {
		if r == root {
			return true
		}
	}
	return false
}

// Append inserts leaf at the next free index and returns the assigned
// index and new root. On ErrCapacityExceeded the tree is unchanged.
func (t *Tree) Append(leaf [32]byte) (uint32, [32]byte, error) {
	if t.next == t.Capacity() {
		return 0, [32]byte{}, ErrCapacityExceeded
	}
	var e fr.Element
	if err := e.SetBytesCanonical(leaf[:]); err != nil {
		return 0, [32]byte{}, ErrInvalidLeaf
	}

	index := t.next
	cur := leaf
	idx := index
	for i := 0; i < t.depth; i++ {
		if idx%2 == 0 {
			t.frontier[i] = cur
			cur = compress(cur, t.zeros[i])
		} else {
			cur = compress(t.frontier[i], cur)
		}
		idx /= 2
	}

	t.next++
	t.root = cur
	t.recordRoot(cur)
	return index, cur, nil
}

func (t *Tree) recordRoot(root [32]byte) {
	if len(t.history) < cap(t.history) {
		t.history = append(t.history, root)
		t.histPos = len(t.history) - 1
		return
	}
	t.histPos = (t.histPos + 1) % cap(t.history)
	t.history[t.histPos] = root
}

const treeLayoutVersion = 1

// MarshalBinary serializes the tree for the persistence layer.
func (t *Tree) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 16+(t.depth+1+len(t.history))*32)
	buf = append(buf, treeLayoutVersion, byte(t.depth))
	buf = binary.BigEndian.AppendUint32(buf, t.next)
	buf = binary.BigEndian.AppendUint16(buf, uint16(cap(t.history)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(t.history)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(t.histPos))
	buf = append(buf, t.root[:]...)
	for i := range t.frontier {
		buf = append(buf, t.frontier[i][:]...)
	}
	for i := range t.history {
		buf = append(buf, t.history[i][:]...)
	}
	return buf, nil
}

// UnmarshalBinary restores a tree serialized by MarshalBinary.
func (t *Tree) UnmarshalBinary(raw []byte) error {
	if len(raw) < 12 || raw[0] != treeLayoutVersion {
		return errors.New("merkle: unsupported tree serialization")
	}
	depth := int(raw[1])
	next := binary.BigEndian.Uint32(raw[2:6])
	histCap := int(binary.BigEndian.Uint16(raw[6:8]))
	histLen := int(binary.BigEndian.Uint16(raw[8:10]))
	histPos := int(binary.BigEndian.Uint16(raw[10:12]))

	nt, err := New(depth, histCap)
	if err != nil {
		return err
	}
	if histLen > histCap || histPos >= histCap || next > nt.Capacity() {
		return errors.New("merkle: tree serialization out of range")
	}
	want := 12 + (1+depth+histLen)*32
	if len(raw) != want {
		return fmt.Errorf("merkle: tree serialization is %d bytes, want %d", len(raw), want)
	}

	off := 12
	copy(nt.root[:], raw[off:off+32])
	off += 32
	for i := 0; i < depth; i++ {
		copy(nt.frontier[i][:], raw[off:off+32])
		off += 32
	}
	nt.history = nt.history[:0]
	for i := 0; i < histLen; i++ {
		var r [32]byte
		copy(r[:], raw[off:off+32])
		nt.history = append(nt.history, r)
		off += 32
	}
	nt.next = next
	nt.histPos = histPos

	*t = *nt
	return nil
}
