package merkle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrProofShapeMismatch is returned when a serialized proof carries sibling_hashes
// and sibling_is_left arrays of different lengths.
var ErrProofShapeMismatch = errors.New("proof arrays have mismatched lengths")

// MerkleTree represents a binary merkle tree built from hex-encoded leaf digests.
// The tree uses sha256 hashing and is never mutated after construction.
type MerkleTree struct {
	// levels stores all tree levels for proof generation
	// levels[0] = (padded) leaves, levels[len-1] = root
	levels [][]string

	// leafCount is the number of leaves supplied by the caller, before padding
	leafCount int
}

// ProofStep is one level of an inclusion proof.
type ProofStep struct {
	// Sibling is the hex digest of the other child at this level
	Sibling string

	// SiblingIsLeft is true when the sibling is the left operand of the combine
	SiblingIsLeft bool
}

// MerkleProof represents a proof that a leaf is included in the tree.
// Steps are ordered bottom-up: Steps[0] is the leaf's sibling, Steps[len-1] is
// the child of the root.
//
// A proof carries no reference to the tree; it is only meaningful together with
// the leaf digest and root it was generated for.
type MerkleProof struct {
	Steps []ProofStep
}

// proofJSON is the wire shape of a MerkleProof: two parallel arrays indexed from
// the leaf upward.
type proofJSON struct {
	SiblingHashes []string `json:"sibling_hashes"`
	SiblingIsLeft []bool   `json:"sibling_is_left"`
}

// Len returns the number of levels covered by the proof.
func (p *MerkleProof) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// SiblingHashes returns the sibling digests, bottom-up.
func (p *MerkleProof) SiblingHashes() []string {
	out := make([]string, 0, p.Len())
	if p == nil {
		return out
	}
	for _, s := range p.Steps {
		out = append(out, s.Sibling)
	}
	return out
}

// SiblingIsLeft returns the left/right markers, bottom-up.
func (p *MerkleProof) SiblingIsLeft() []bool {
	out := make([]bool, 0, p.Len())
	if p == nil {
		return out
	}
	for _, s := range p.Steps {
		out = append(out, s.SiblingIsLeft)
	}
	return out
}

// NewMerkleProof assembles a proof from the two-array representation.
func NewMerkleProof(siblingHashes []string, siblingIsLeft []bool) (*MerkleProof, error) {
	if len(siblingHashes) != len(siblingIsLeft) {
		return nil, fmt.Errorf("%w: %d sibling hashes, %d side markers",
			ErrProofShapeMismatch, len(siblingHashes), len(siblingIsLeft))
	}

	steps := make([]ProofStep, len(siblingHashes))
	for i := range siblingHashes {
		steps[i] = ProofStep{Sibling: siblingHashes[i], SiblingIsLeft: siblingIsLeft[i]}
	}
	return &MerkleProof{Steps: steps}, nil
}

// MarshalJSON encodes the proof as {"sibling_hashes": [...], "sibling_is_left": [...]}.
func (p *MerkleProof) MarshalJSON() ([]byte, error) {
	return json.Marshal(proofJSON{
		SiblingHashes: p.SiblingHashes(),
		SiblingIsLeft: p.SiblingIsLeft(),
	})
}

// UnmarshalJSON decodes the two-array shape, rejecting arrays of different lengths.
func (p *MerkleProof) UnmarshalJSON(data []byte) error {
	var raw proofJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal merkle proof: %w", err)
	}

	decoded, err := NewMerkleProof(raw.SiblingHashes, raw.SiblingIsLeft)
	if err != nil {
		return err
	}
	p.Steps = decoded.Steps
	return nil
}

// String renders one line per level, bottom-up.
func (p *MerkleProof) String() string {
	var sb strings.Builder
	for i, s := range p.stepsOrNil() {
		fmt.Fprintf(&sb, "level %d: sibling_is_left=%t hash=%s\n", i, s.SiblingIsLeft, s.Sibling)
	}
	return sb.String()
}

func (p *MerkleProof) stepsOrNil() []ProofStep {
	if p == nil {
		return nil
	}
	return p.Steps
}
