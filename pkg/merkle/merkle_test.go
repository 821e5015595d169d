package merkle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestLeaves creates n leaf digests of the form H("leaf<i>"), i starting at 1
func createTestLeaves(n int) []string {
	leaves := make([]string, n)
	for i := 0; i < n; i++ {
		leaves[i] = HashHex([]byte(fmt.Sprintf("leaf%d", i+1)))
	}
	return leaves
}

// randomLeaf generates a random 32-byte digest for testing
func randomLeaf() string {
	var b [32]byte
	_, _ = rand.Read(b[:]) // Ignore error in test helper
	return hex.EncodeToString(b[:])
}

func TestDecodeHex(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		b, err := DecodeHex("00ff10")
		require.NoError(t, err)
		require.Equal(t, []byte{0x00, 0xff, 0x10}, b)
	})

	t.Run("Uppercase accepted", func(t *testing.T) {
		b, err := DecodeHex("ABCD")
		require.NoError(t, err)
		require.Equal(t, []byte{0xab, 0xcd}, b)
	})

	t.Run("Odd length", func(t *testing.T) {
		_, err := DecodeHex("abc")
		require.ErrorIs(t, err, ErrMalformedHex)
	})

	t.Run("Invalid characters", func(t *testing.T) {
		_, err := DecodeHex("zz")
		require.ErrorIs(t, err, ErrMalformedHex)
	})
}

func TestCombineHex(t *testing.T) {
	left := HashHex([]byte("left"))
	right := HashHex([]byte("right"))

	combined, err := CombineHex(left, right)
	require.NoError(t, err)

	l, _ := hex.DecodeString(left)
	r, _ := hex.DecodeString(right)
	require.Equal(t, HashHex(append(l, r...)), combined)

	// Order matters
	swapped, err := CombineHex(right, left)
	require.NoError(t, err)
	require.NotEqual(t, combined, swapped)

	_, err = CombineHex("nothex", right)
	require.ErrorIs(t, err, ErrMalformedHex)
	_, err = CombineHex(left, "0")
	require.ErrorIs(t, err, ErrMalformedHex)
}

func TestEmptyRoot(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", EmptyRoot())
}

// TestBuildMerkleTree tests merkle tree construction with various numbers of leaves
func TestBuildMerkleTree(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
	}{
		{"Single leaf", 1},
		{"Two leaves", 2},
		{"Three leaves", 3},
		{"Four leaves (power of 2)", 4},
		{"Five leaves", 5},
		{"Six leaves", 6},
		{"Seven leaves", 7},
		{"Eight leaves (power of 2)", 8},
		{"Fifteen leaves", 15},
		{"Sixteen leaves (power of 2)", 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := createTestLeaves(tc.numLeaves)
			tree := BuildMerkleTree(leaves)
			require.NotNil(t, tree)
			require.Equal(t, tc.numLeaves, tree.LeafCount())

			// Every level but the root has even length; the next level holds its
			// parents, padded to even length unless it is the root
			levels := tree.Levels()
			require.Len(t, levels[len(levels)-1], 1)
			for i := 0; i < len(levels)-1; i++ {
				require.Zero(t, len(levels[i])%2, "level %d has odd length", i)
				parents := len(levels[i]) / 2
				if parents > 1 && parents%2 == 1 {
					parents++
				}
				require.Equal(t, parents, len(levels[i+1]))
			}

			// Generate and verify proofs for all leaves
			for i := 0; i < len(tree.Leaves()); i++ {
				proof, err := tree.GenerateProof(i)
				require.NoError(t, err)
				require.Equal(t, tree.Depth(), proof.Len())
				require.True(t, VerifyProof(tree.Leaves()[i], proof, tree.Root()), "Proof for leaf %d should be valid", i)
			}
		})
	}
}

// TestBuildMerkleTreeEmpty tests the defined root for an empty leaf set
func TestBuildMerkleTreeEmpty(t *testing.T) {
	for _, leaves := range [][]string{nil, {}} {
		tree := BuildMerkleTree(leaves)
		require.Equal(t, [][]string{{EmptyRoot()}}, tree.Levels())
		require.Equal(t, EmptyRoot(), tree.Root())
		require.Equal(t, 0, tree.Depth())
		require.Equal(t, 0, tree.LeafCount())
	}
}

func TestBuildMerkleTreeFourLeavesStructure(t *testing.T) {
	leaves := createTestLeaves(4)
	tree := BuildMerkleTree(leaves)

	p01, err := CombineHex(leaves[0], leaves[1])
	require.NoError(t, err)
	p23, err := CombineHex(leaves[2], leaves[3])
	require.NoError(t, err)
	root, err := CombineHex(p01, p23)
	require.NoError(t, err)

	require.Equal(t, [][]string{leaves, {p01, p23}, {root}}, tree.Levels())
	require.Equal(t, root, tree.Root())
}

// TestOddLeafPadding checks that [A, B, C] and [A, B, C, C] commit to the same root
func TestOddLeafPadding(t *testing.T) {
	leaves := createTestLeaves(3)
	padded := append(append([]string{}, leaves...), leaves[2])

	require.Equal(t, BuildMerkleTree(padded).Root(), BuildMerkleTree(leaves).Root())
	require.Equal(t, padded, BuildMerkleTree(leaves).Leaves())
}

func TestSingleLeafTree(t *testing.T) {
	leaf := HashHex([]byte("only"))
	tree := BuildMerkleTree([]string{leaf})

	expected, err := CombineHex(leaf, leaf)
	require.NoError(t, err)
	require.Equal(t, expected, tree.Root())
	require.Equal(t, 1, tree.Depth())

	proof, err := tree.GenerateProof(0)
	require.NoError(t, err)
	require.Equal(t, []ProofStep{{Sibling: leaf, SiblingIsLeft: false}}, proof.Steps)
	require.True(t, VerifyProof(leaf, proof, tree.Root()))
}

// TestSixLeafInteriorPadding covers the interior duplication rule: six leaves
// give a three-node level that is padded to four.
func TestSixLeafInteriorPadding(t *testing.T) {
	leaves := createTestLeaves(6)
	tree := BuildMerkleTree(leaves)
	levels := tree.Levels()

	require.Len(t, levels, 4)
	require.Len(t, levels[1], 4)
	require.Equal(t, levels[1][2], levels[1][3])
	require.Len(t, levels[2], 2)
}

func TestBuildMerkleTreeChecked(t *testing.T) {
	tree, err := BuildMerkleTreeChecked(createTestLeaves(4))
	require.NoError(t, err)
	require.NotNil(t, tree)

	tree, err = BuildMerkleTreeChecked([]string{HashHex([]byte("a")), "xyz"})
	require.ErrorIs(t, err, ErrMalformedHex)
	require.Nil(t, tree)

	require.Panics(t, func() {
		BuildMerkleTree([]string{"not-hex"})
	})
}

func TestBuildMerkleTreeDoesNotAliasInput(t *testing.T) {
	leaves := createTestLeaves(4)
	tree := BuildMerkleTree(leaves)
	root := tree.Root()

	leaves[0] = randomLeaf()
	require.Equal(t, root, tree.Root())
	require.NotEqual(t, leaves[0], tree.Leaves()[0])

	// Accessors hand out copies
	levels := tree.Levels()
	levels[0][1] = randomLeaf()
	require.NotEqual(t, levels[0][1], tree.Leaves()[1])
}

// TestMerkleProofVerification tests proof verification with valid and invalid cases
func TestMerkleProofVerification(t *testing.T) {
	leaves := createTestLeaves(4)
	tree := BuildMerkleTree(leaves)

	t.Run("Valid proof for leaf3", func(t *testing.T) {
		proof, err := tree.GenerateProof(2)
		require.NoError(t, err)
		require.True(t, VerifyProof(HashHex([]byte("leaf3")), proof, tree.Root()))
	})

	t.Run("Tampered leaf", func(t *testing.T) {
		proof, err := tree.GenerateProof(2)
		require.NoError(t, err)
		require.False(t, VerifyProof(HashHex([]byte("notleaf")), proof, tree.Root()))
	})

	t.Run("Wrong root", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)
		require.False(t, VerifyProof(leaves[0], proof, randomLeaf()))
	})

	t.Run("Tampered sibling", func(t *testing.T) {
		proof, err := tree.GenerateProof(0)
		require.NoError(t, err)
		proof.Steps[0].Sibling = randomLeaf()
		require.False(t, VerifyProof(leaves[0], proof, tree.Root()))
	})

	t.Run("Malformed sibling hex", func(t *testing.T) {
		proof, err := tree.GenerateProof(1)
		require.NoError(t, err)
		proof.Steps[1].Sibling = "zz"
		require.False(t, VerifyProof(leaves[1], proof, tree.Root()))
	})

	t.Run("Malformed leaf hex", func(t *testing.T) {
		proof, err := tree.GenerateProof(1)
		require.NoError(t, err)
		require.False(t, VerifyProof("abc", proof, tree.Root()))
	})

	t.Run("Nil proof", func(t *testing.T) {
		require.False(t, VerifyProof(leaves[0], nil, tree.Root()))
	})

	t.Run("Empty proof", func(t *testing.T) {
		empty := &MerkleProof{}
		require.True(t, VerifyProof(tree.Root(), empty, tree.Root()))
		require.False(t, VerifyProof(leaves[0], empty, tree.Root()))
	})
}

// TestFlagSensitivity flips each side marker in turn
func TestFlagSensitivity(t *testing.T) {
	leaves := createTestLeaves(8)
	tree := BuildMerkleTree(leaves)

	for idx := range leaves {
		proof, err := tree.GenerateProof(idx)
		require.NoError(t, err)
		for level := range proof.Steps {
			tampered := &MerkleProof{Steps: append([]ProofStep(nil), proof.Steps...)}
			tampered.Steps[level].SiblingIsLeft = !tampered.Steps[level].SiblingIsLeft
			require.False(t, VerifyProof(leaves[idx], tampered, tree.Root()),
				"flipping level %d of proof for leaf %d should fail", level, idx)
		}
	}
}

func TestGenerateProofShape(t *testing.T) {
	leaves := createTestLeaves(4)
	tree := BuildMerkleTree(leaves)

	proof, err := tree.GenerateProof(2)
	require.NoError(t, err)
	require.Equal(t, 2, proof.Len())

	p01, err := CombineHex(leaves[0], leaves[1])
	require.NoError(t, err)
	require.Equal(t, []string{leaves[3], p01}, proof.SiblingHashes())
	require.Equal(t, []bool{false, true}, proof.SiblingIsLeft())
}

// TestGenerateProofInvalidIndex tests proof generation with invalid indices
func TestGenerateProofInvalidIndex(t *testing.T) {
	tree := BuildMerkleTree(createTestLeaves(4))

	t.Run("Negative index", func(t *testing.T) {
		proof, err := tree.GenerateProof(-1)
		require.ErrorIs(t, err, ErrLeafIndexOutOfRange)
		require.Nil(t, proof)
	})

	t.Run("Index out of bounds", func(t *testing.T) {
		proof, err := tree.GenerateProof(10)
		require.ErrorIs(t, err, ErrLeafIndexOutOfRange)
		require.Nil(t, proof)
	})

	t.Run("Zero-value tree", func(t *testing.T) {
		proof, err := (&MerkleTree{}).GenerateProof(0)
		require.ErrorIs(t, err, ErrLeafIndexOutOfRange)
		require.Nil(t, proof)
	})

	t.Run("Empty leaf set", func(t *testing.T) {
		empty := BuildMerkleTree(nil)
		proof, err := empty.GenerateProof(0)
		require.NoError(t, err)
		require.Equal(t, 0, proof.Len())
		require.True(t, VerifyProof(EmptyRoot(), proof, empty.Root()))

		_, err = empty.GenerateProof(1)
		require.ErrorIs(t, err, ErrLeafIndexOutOfRange)
	})
}

func TestGenerateProofPaddingSlot(t *testing.T) {
	leaves := createTestLeaves(3)
	tree := BuildMerkleTree(leaves)

	// Index 3 is the duplicated copy of leaf 2
	proof, err := tree.GenerateProof(3)
	require.NoError(t, err)
	require.True(t, VerifyProof(leaves[2], proof, tree.Root()))
	require.Equal(t, leaves[2], proof.Steps[0].Sibling)
	require.True(t, proof.Steps[0].SiblingIsLeft)
}

// TestSelfSiblingFallback exercises the out-of-range sibling fallback on a
// hand-built tree whose level 0 has odd length.
func TestSelfSiblingFallback(t *testing.T) {
	a, b, c := HashHex([]byte("a")), HashHex([]byte("b")), HashHex([]byte("c"))
	ab, err := CombineHex(a, b)
	require.NoError(t, err)
	cc, err := CombineHex(c, c)
	require.NoError(t, err)
	root, err := CombineHex(ab, cc)
	require.NoError(t, err)

	tree := &MerkleTree{levels: [][]string{{a, b, c}, {ab, cc}, {root}}, leafCount: 3}
	proof, err := tree.GenerateProof(2)
	require.NoError(t, err)
	require.Equal(t, []ProofStep{
		{Sibling: c, SiblingIsLeft: false},
		{Sibling: ab, SiblingIsLeft: true},
	}, proof.Steps)
	require.True(t, VerifyProof(c, proof, root))
}

func TestIndexOf(t *testing.T) {
	leaves := createTestLeaves(5)
	tree := BuildMerkleTree(leaves)

	require.Equal(t, 0, tree.IndexOf(leaves[0]))
	require.Equal(t, 4, tree.IndexOf(leaves[4]))
	require.Equal(t, -1, tree.IndexOf(randomLeaf()))
}

// TestMerkleTreeLargeSet tests with a larger number of leaves
func TestMerkleTreeLargeSet(t *testing.T) {
	sizes := []int{50, 100, 200}

	for _, size := range sizes {
		t.Run(fmt.Sprintf("Size_%d", size), func(t *testing.T) {
			leaves := createTestLeaves(size)
			tree := BuildMerkleTree(leaves)
			require.Equal(t, size, tree.LeafCount())

			testIndices := []int{0, size / 4, size / 2, size - 1}
			for _, idx := range testIndices {
				proof, err := tree.GenerateProof(idx)
				require.NoError(t, err)
				require.True(t, VerifyProof(leaves[idx], proof, tree.Root()))
			}
		})
	}
}

// TestMerkleProofLength tests that proof length equals the tree depth
func TestMerkleProofLength(t *testing.T) {
	testCases := []struct {
		numLeaves  int
		proofDepth int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{8, 3},
		{16, 4},
		{100, 7},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d_leaves", tc.numLeaves), func(t *testing.T) {
			tree := BuildMerkleTree(createTestLeaves(tc.numLeaves))

			proof, err := tree.GenerateProof(0)
			require.NoError(t, err)
			require.Equal(t, tc.proofDepth, proof.Len())
			require.Equal(t, tc.proofDepth, tree.Depth())
		})
	}
}

// TestMerkleTreeDeterminism tests that the same leaves always produce the same tree
func TestMerkleTreeDeterminism(t *testing.T) {
	leaves := make([]string, 10)
	for i := range leaves {
		leaves[i] = randomLeaf()
	}

	tree1 := BuildMerkleTree(leaves)
	tree2 := BuildMerkleTree(leaves)

	require.Equal(t, tree1.Root(), tree2.Root())
	require.Equal(t, tree1.Levels(), tree2.Levels())
}

// TestMerkleTreeOrderMatters checks that leaf order is part of the commitment
func TestMerkleTreeOrderMatters(t *testing.T) {
	leaves := createTestLeaves(4)
	reversed := []string{leaves[3], leaves[2], leaves[1], leaves[0]}

	require.NotEqual(t, BuildMerkleTree(leaves).Root(), BuildMerkleTree(reversed).Root())
}

func TestMerkleProofJSON(t *testing.T) {
	tree := BuildMerkleTree(createTestLeaves(4))
	proof, err := tree.GenerateProof(2)
	require.NoError(t, err)

	data, err := json.Marshal(proof)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "sibling_hashes")
	require.Contains(t, raw, "sibling_is_left")
	require.JSONEq(t, `[false, true]`, string(raw["sibling_is_left"]))

	var decoded MerkleProof
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, proof.Steps, decoded.Steps)

	require.True(t, VerifyEncodedProof(HashHex([]byte("leaf3")), data, tree.Root()))
}

func TestMerkleProofJSONMismatchedArrays(t *testing.T) {
	data := []byte(`{"sibling_hashes": ["00", "11"], "sibling_is_left": [true]}`)

	var proof MerkleProof
	err := json.Unmarshal(data, &proof)
	require.ErrorIs(t, err, ErrProofShapeMismatch)

	require.False(t, VerifyEncodedProof("00", data, "00"))
	require.False(t, VerifyEncodedProof("00", []byte("not json"), "00"))
}

func TestNewMerkleProof(t *testing.T) {
	proof, err := NewMerkleProof([]string{"aa", "bb"}, []bool{true, false})
	require.NoError(t, err)
	require.Equal(t, []ProofStep{{"aa", true}, {"bb", false}}, proof.Steps)

	_, err = NewMerkleProof([]string{"aa"}, nil)
	require.ErrorIs(t, err, ErrProofShapeMismatch)
}

func TestMerkleProofString(t *testing.T) {
	proof := &MerkleProof{Steps: []ProofStep{{"aa", false}, {"bb", true}}}
	require.Equal(t,
		"level 0: sibling_is_left=false hash=aa\nlevel 1: sibling_is_left=true hash=bb\n",
		proof.String())

	var nilProof *MerkleProof
	require.Equal(t, "", nilProof.String())
	require.Equal(t, 0, nilProof.Len())
}

func TestVerifyProofs(t *testing.T) {
	leaves := createTestLeaves(9)
	tree := BuildMerkleTree(leaves)

	requests := make([]VerificationRequest, 0, len(leaves)+1)
	for i, leaf := range leaves {
		proof, err := tree.GenerateProof(i)
		require.NoError(t, err)
		requests = append(requests, VerificationRequest{Leaf: leaf, Proof: proof, Root: tree.Root()})
	}
	requests = append(requests, VerificationRequest{Leaf: randomLeaf(), Proof: requests[0].Proof, Root: tree.Root()})

	results, err := VerifyProofs(context.Background(), requests, 4)
	require.NoError(t, err)
	require.Len(t, results, len(requests))
	for i := range leaves {
		require.True(t, results[i], "request %d should verify", i)
	}
	require.False(t, results[len(results)-1])

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := VerifyProofs(ctx, requests, 2)
		require.ErrorIs(t, err, context.Canceled)
	})
}
