// Package persistencetest holds the behavior every IBallotPersistence backend
// must share. Backends call RunConformanceTests from their own tests.
package persistencetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) persistence.IBallotPersistence

// SampleProposal builds a proposal with two registered voters
func SampleProposal(id string) *types.Proposal {
	return &types.Proposal{
		ID:                  id,
		Question:            "Question " + id,
		Options:             []string{types.ChoiceYes, types.ChoiceNo},
		IdentityCommitments: []string{"aa"},
		Voters:              []string{"aa", "bb"},
		VoterRoot:           "cc",
		CreatedAt:           "2025-01-01T00:00:00Z",
	}
}

// RunConformanceTests exercises the full IBallotPersistence contract
func RunConformanceTests(t *testing.T, newStore Factory) {
	t.Run("Identity", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadIdentity()
		require.NoError(t, err)
		assert.Nil(t, loaded)

		identity := &types.Identity{ID: "local-identity-1", Trapdoor: "01", Nullifier: "02", CreatedAt: "2025-01-01T00:00:00Z"}
		require.NoError(t, store.SaveIdentity(identity))

		loaded, err = store.LoadIdentity()
		require.NoError(t, err)
		assert.Equal(t, identity, loaded)

		// Overwrite
		identity.ID = "local-identity-2"
		require.NoError(t, store.SaveIdentity(identity))
		loaded, err = store.LoadIdentity()
		require.NoError(t, err)
		assert.Equal(t, "local-identity-2", loaded.ID)

		require.Error(t, store.SaveIdentity(nil))
	})

	t.Run("Proposals", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadProposal("missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		list, err := store.ListProposals()
		require.NoError(t, err)
		assert.Empty(t, list)

		for _, id := range []string{"charlie", "alpha", "bravo"} {
			require.NoError(t, store.SaveProposal(SampleProposal(id)))
		}

		loaded, err = store.LoadProposal("alpha")
		require.NoError(t, err)
		assert.Equal(t, SampleProposal("alpha"), loaded)

		list, err = store.ListProposals()
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "alpha", list[0].ID)
		assert.Equal(t, "bravo", list[1].ID)
		assert.Equal(t, "charlie", list[2].ID)

		// Overwrite keeps a single entry
		updated := SampleProposal("alpha")
		updated.Voters = append(updated.Voters, "dd")
		require.NoError(t, store.SaveProposal(updated))
		loaded, err = store.LoadProposal("alpha")
		require.NoError(t, err)
		assert.Equal(t, []string{"aa", "bb", "dd"}, loaded.Voters)
		list, err = store.ListProposals()
		require.NoError(t, err)
		assert.Len(t, list, 3)

		require.Error(t, store.SaveProposal(nil))
		require.Error(t, store.SaveProposal(&types.Proposal{}))
	})

	t.Run("Votes", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		votes, err := store.LoadVotes("alpha")
		require.NoError(t, err)
		assert.Empty(t, votes)

		now := time.Now().UTC()
		saved := []*types.VoteRecord{
			{Commitment: "bb", Choice: types.ChoiceNo, CastAt: now},
			{Commitment: "aa", Choice: types.ChoiceYes, CastAt: now},
		}
		require.NoError(t, store.SaveVotes("alpha", saved))

		votes, err = store.LoadVotes("alpha")
		require.NoError(t, err)
		require.Len(t, votes, 2)
		assert.Equal(t, "bb", votes[0].Commitment)
		assert.Equal(t, "aa", votes[1].Commitment)
		assert.Equal(t, types.ChoiceYes, votes[1].Choice)

		// Votes are scoped per proposal
		other, err := store.LoadVotes("bravo")
		require.NoError(t, err)
		assert.Empty(t, other)

		require.Error(t, store.SaveVotes("", saved))
	})

	t.Run("DeepCopy", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		proposal := SampleProposal("alpha")
		require.NoError(t, store.SaveProposal(proposal))
		proposal.Voters[0] = "mutated"

		loaded, err := store.LoadProposal("alpha")
		require.NoError(t, err)
		assert.Equal(t, "aa", loaded.Voters[0])

		loaded.Voters[1] = "mutated"
		again, err := store.LoadProposal("alpha")
		require.NoError(t, err)
		assert.Equal(t, "bb", again.Voters[1])
	})

	t.Run("HealthCheckAndClose", func(t *testing.T) {
		store := newStore(t)

		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close(), "Close must be idempotent")

		assert.ErrorIs(t, store.HealthCheck(), persistence.ErrClosed)
		assert.ErrorIs(t, store.SaveProposal(SampleProposal("alpha")), persistence.ErrClosed)
		_, err := store.LoadProposal("alpha")
		assert.ErrorIs(t, err, persistence.ErrClosed)
		_, err = store.ListProposals()
		assert.ErrorIs(t, err, persistence.ErrClosed)
		_, err = store.LoadIdentity()
		assert.ErrorIs(t, err, persistence.ErrClosed)
		_, err = store.LoadVotes("alpha")
		assert.ErrorIs(t, err, persistence.ErrClosed)
	})

	t.Run("ThreadSafety", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		const numGoroutines = 8
		const numOperations = 20
		var wg sync.WaitGroup

		// Concurrent writes
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					assert.NoError(t, store.SaveProposal(SampleProposal(fmt.Sprintf("p-%d-%d", id, j))))
				}
			}(i)
		}

		// Concurrent reads
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					_, err := store.LoadProposal(fmt.Sprintf("p-%d-%d", id, j))
					assert.NoError(t, err)
				}
			}(i)
		}

		// Concurrent lists
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					_, err := store.ListProposals()
					assert.NoError(t, err)
				}
			}()
		}

		wg.Wait()

		list, err := store.ListProposals()
		require.NoError(t, err)
		assert.Len(t, list, numGoroutines*numOperations)
	})
}
