package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IBallotPersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	identity *types.Identity

	// proposalID -> Proposal
	proposals map[string]*types.Proposal

	// proposalID -> votes in cast order
	votes map[string][]*types.VoteRecord

	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		proposals: make(map[string]*types.Proposal),
		votes:     make(map[string][]*types.VoteRecord),
	}
}

var _ persistence.IBallotPersistence = (*MemoryPersistence)(nil)

// SaveIdentity persists the local identity.
func (m *MemoryPersistence) SaveIdentity(identity *types.Identity) error {
	if identity == nil {
		return fmt.Errorf("cannot save nil Identity")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.identity = persistence.CopyIdentity(identity)
	return nil
}

// LoadIdentity retrieves the local identity.
func (m *MemoryPersistence) LoadIdentity() (*types.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	return persistence.CopyIdentity(m.identity), nil
}

// SaveProposal persists a proposal.
func (m *MemoryPersistence) SaveProposal(proposal *types.Proposal) error {
	if proposal == nil {
		return fmt.Errorf("cannot save nil Proposal")
	}
	if proposal.ID == "" {
		return fmt.Errorf("cannot save Proposal with empty ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.proposals[proposal.ID] = persistence.CopyProposal(proposal)
	return nil
}

// LoadProposal retrieves a proposal by ID.
func (m *MemoryPersistence) LoadProposal(id string) (*types.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	proposal, exists := m.proposals[id]
	if !exists {
		return nil, nil // Not found is not an error
	}

	return persistence.CopyProposal(proposal), nil
}

// ListProposals returns all proposals sorted by ID.
func (m *MemoryPersistence) ListProposals() ([]*types.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	ids := make([]string, 0, len(m.proposals))
	for id := range m.proposals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]*types.Proposal, 0, len(ids))
	for _, id := range ids {
		result = append(result, persistence.CopyProposal(m.proposals[id]))
	}

	return result, nil
}

// SaveVotes replaces the vote list of a proposal.
func (m *MemoryPersistence) SaveVotes(proposalID string, votes []*types.VoteRecord) error {
	if proposalID == "" {
		return fmt.Errorf("cannot save votes with empty proposal ID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.votes[proposalID] = persistence.CopyVotes(votes)
	return nil
}

// LoadVotes retrieves the vote list of a proposal.
func (m *MemoryPersistence) LoadVotes(proposalID string) ([]*types.VoteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	return persistence.CopyVotes(m.votes[proposalID]), nil
}

// Close marks the persistence layer as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck always succeeds unless closed.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}

	return nil
}
