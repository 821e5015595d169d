package persistence

import "github.com/Layr-Labs/eigenx-ballot-go/pkg/types"

// IBallotPersistence defines the interface for persisting ballot state.
// All implementations must be thread-safe.
//
// The interface supports:
// - The local voter identity (one per store)
// - Proposals indexed by ID
// - Vote records per proposal
// - Lifecycle management (close, health check)
type IBallotPersistence interface {
	// Identity

	// SaveIdentity persists the local identity, overwriting any existing one.
	SaveIdentity(identity *types.Identity) error

	// LoadIdentity retrieves the local identity.
	// Returns nil if none exists, error only on storage failure.
	LoadIdentity() (*types.Identity, error)

	// Proposals

	// SaveProposal persists a proposal keyed by its ID.
	// Overwrites any existing proposal with the same ID.
	SaveProposal(proposal *types.Proposal) error

	// LoadProposal retrieves a proposal by ID.
	// Returns nil if the proposal doesn't exist, error only on storage failure.
	LoadProposal(id string) (*types.Proposal, error)

	// ListProposals returns all proposals sorted by ID.
	// Returns empty slice if no proposals exist, error only on storage failure.
	ListProposals() ([]*types.Proposal, error)

	// Votes

	// SaveVotes replaces the vote list of a proposal.
	SaveVotes(proposalID string, votes []*types.VoteRecord) error

	// LoadVotes retrieves the vote list of a proposal in cast order.
	// Returns empty slice if no votes exist, error only on storage failure.
	LoadVotes(proposalID string) ([]*types.VoteRecord, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
