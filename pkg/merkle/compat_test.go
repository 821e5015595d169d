package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	merkletree "github.com/wealdtech/go-merkletree/v2"
)

// sha256Hash plugs sha256 into go-merkletree
type sha256Hash struct{}

func (sha256Hash) Hash(data ...[]byte) []byte {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

func (sha256Hash) HashName() string { return "sha256" }

func (sha256Hash) HashLength() int { return sha256.Size }

// TestRootMatchesGoMerkletree checks that for power-of-two leaf counts, where no
// padding happens, roots agree with go-merkletree over the same raw items.
func TestRootMatchesGoMerkletree(t *testing.T) {
	for _, size := range []int{2, 4, 8, 16, 32} {
		t.Run(fmt.Sprintf("Leaves_%d", size), func(t *testing.T) {
			data := make([][]byte, size)
			leaves := make([]string, size)
			for i := range data {
				data[i] = []byte(fmt.Sprintf("item-%d", i))
				leaves[i] = HashHex(data[i])
			}

			ref, err := merkletree.NewTree(
				merkletree.WithData(data),
				merkletree.WithHashType(sha256Hash{}),
			)
			require.NoError(t, err)

			require.Equal(t, hex.EncodeToString(ref.Root()), BuildMerkleTree(leaves).Root())
		})
	}
}
