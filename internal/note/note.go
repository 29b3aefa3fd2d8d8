// note.go - Shielded note commitments and nullifiers.
//
// A note is the value object a deposit commits to and a withdrawal
// spends. Both derivations use MiMC over canonical field encodings, the
// same hash the commitment tree compresses with, so a committed note is
// directly provable against the tree root.

package note

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// Note is one shielded value.
type Note struct {
	Amount fr.Element
	Owner  fr.Element
	Rho    fr.Element
	Rand   fr.Element
}

// Random draws fresh Rho and Rand for a new note.
func Random(amount uint64, owner fr.Element) (*Note, error) {
	n := &Note{Owner: owner}
	n.Amount.SetUint64(amount)
	if _, err := n.Rho.SetRandom(); err != nil {
		return nil, fmt.Errorf("note: draw rho: %w", err)
	}
	if _, err := n.Rand.SetRandom(); err != nil {
		return nil, fmt.Errorf("note: draw rand: %w", err)
	}
	return n, nil
}

func hashElements(elems ...*fr.Element) [32]byte {
	h := mimc.NewMiMC()
	for _, e := range elems {
		b := e.Bytes()
		h.Write(b[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Commitment is the tree leaf hiding the note.
func (n *Note) Commitment() [32]byte {
	return hashElements(&n.Amount, &n.Owner, &n.Rho, &n.Rand)
}

// Nullifier derives the spend tag of the note under the secret key sk.
// It binds Rho, not the commitment, so revealing it does not link back
// to the deposit.
func (n *Note) Nullifier(sk *fr.Element) [32]byte {
	return hashElements(&n.Rho, sk)
}
