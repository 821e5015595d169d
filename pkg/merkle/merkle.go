package merkle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrLeafIndexOutOfRange is returned by GenerateProof when no proof exists for the index.
var ErrLeafIndexOutOfRange = errors.New("leaf index out of range")

// BuildMerkleTree creates a binary merkle tree from hex-encoded leaf digests.
// Leaf order is significant and defines leaf indices; leaves are not hashed again.
//
// Zero leaves yield a single-level tree whose root is hex(sha256("")).
// If there's an odd number of nodes at any level, the last node is duplicated.
// There is no domain separation between leaf and interior hashing, so this
// padding admits second-preimage ambiguity for unbalanced trees. Roots must stay
// compatible, so the rule is kept as-is.
//
// BuildMerkleTree panics if a leaf is not valid hex; use BuildMerkleTreeChecked
// for untrusted input.
func BuildMerkleTree(leaves []string) *MerkleTree {
	tree, err := BuildMerkleTreeChecked(leaves)
	if err != nil {
		panic(fmt.Sprintf("merkle: %v", err))
	}
	return tree
}

// BuildMerkleTreeChecked is BuildMerkleTree for input that may contain malformed hex.
func BuildMerkleTreeChecked(leaves []string) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return &MerkleTree{levels: [][]string{{EmptyRoot()}}}, nil
	}

	for i, leaf := range leaves {
		if _, err := DecodeHex(leaf); err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
	}

	// Copy so the caller can't mutate the tree through its slice
	level := make([]string, len(leaves), len(leaves)+1)
	copy(level, leaves)
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}

	levels := [][]string{level}
	for len(level) > 1 {
		next := make([]string, 0, len(level)/2+1)
		for i := 0; i+1 < len(level); i += 2 {
			parent, err := CombineHex(level[i], level[i+1])
			if err != nil {
				return nil, fmt.Errorf("failed to combine nodes %d and %d: %w", i, i+1, err)
			}
			next = append(next, parent)
		}

		if len(next)%2 == 1 && len(next) > 1 {
			next = append(next, next[len(next)-1])
		}

		levels = append(levels, next)
		level = next
	}

	return &MerkleTree{
		levels:    levels,
		leafCount: len(leaves),
	}, nil
}

// Root returns the hex root digest.
func (mt *MerkleTree) Root() string {
	return mt.levels[len(mt.levels)-1][0]
}

// Depth is the number of levels above the leaf level, i.e. the proof length.
func (mt *MerkleTree) Depth() int {
	return len(mt.levels) - 1
}

// LeafCount is the number of leaves the tree was built from, before padding.
func (mt *MerkleTree) LeafCount() int {
	return mt.leafCount
}

// Leaves returns a copy of level 0, including any padding.
func (mt *MerkleTree) Leaves() []string {
	return append([]string(nil), mt.levels[0]...)
}

// Levels returns a copy of every level, leaves first and root last.
func (mt *MerkleTree) Levels() [][]string {
	out := make([][]string, len(mt.levels))
	for i, l := range mt.levels {
		out[i] = append([]string(nil), l...)
	}
	return out
}

// IndexOf returns the first leaf index holding digest, or -1.
func (mt *MerkleTree) IndexOf(digest string) int {
	for i, leaf := range mt.levels[0] {
		if leaf == digest {
			return i
		}
	}
	return -1
}

// GenerateProof creates a merkle proof for the leaf at the given index.
// The proof consists of sibling hashes along the path from leaf to root.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if len(mt.levels) == 0 || len(mt.levels[0]) == 0 {
		return nil, fmt.Errorf("%w: tree has no levels", ErrLeafIndexOutOfRange)
	}
	if leafIndex < 0 || leafIndex >= len(mt.levels[0]) {
		return nil, fmt.Errorf("%w: index %d, tree has %d leaves", ErrLeafIndexOutOfRange, leafIndex, len(mt.levels[0]))
	}

	steps := make([]ProofStep, 0, mt.Depth())
	index := leafIndex

	for level := 0; level < len(mt.levels)-1; level++ {
		nodes := mt.levels[level]
		isRight := index%2 == 1

		siblingIndex := index + 1
		if isRight {
			siblingIndex = index - 1
		}

		// Only reachable for degenerate sizes; the node stands in as its own sibling
		if siblingIndex >= len(nodes) {
			siblingIndex = index
		}

		steps = append(steps, ProofStep{
			Sibling:       nodes[siblingIndex],
			SiblingIsLeft: isRight,
		})

		index = index / 2
	}

	return &MerkleProof{Steps: steps}, nil
}

// VerifyProof recomputes the root from leaf and proof and compares it to root.
// Malformed hex anywhere in the path makes verification fail.
func VerifyProof(leaf string, proof *MerkleProof, root string) bool {
	if proof == nil {
		return false
	}

	current := leaf
	for _, step := range proof.Steps {
		var (
			parent string
			err    error
		)
		if step.SiblingIsLeft {
			parent, err = CombineHex(step.Sibling, current)
		} else {
			parent, err = CombineHex(current, step.Sibling)
		}
		if err != nil {
			return false
		}
		current = parent
	}

	return current == root
}

// VerifyEncodedProof verifies a proof in its serialized JSON form.
// A proof that fails to decode, including one with mismatched arrays, does not verify.
func VerifyEncodedProof(leaf string, encodedProof []byte, root string) bool {
	var proof MerkleProof
	if err := json.Unmarshal(encodedProof, &proof); err != nil {
		return false
	}
	return VerifyProof(leaf, &proof, root)
}

// VerificationRequest is one (leaf, proof, root) triple for batch verification.
type VerificationRequest struct {
	Leaf  string
	Proof *MerkleProof
	Root  string
}

// VerifyProofs verifies independent proofs concurrently using at most workers
// goroutines. results[i] corresponds to requests[i]. The only error returned is
// the context's.
func VerifyProofs(ctx context.Context, requests []VerificationRequest, workers int) ([]bool, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]bool, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range requests {
		if err := gctx.Err(); err != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			req := requests[i]
			results[i] = VerifyProof(req.Leaf, req.Proof, req.Root)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
