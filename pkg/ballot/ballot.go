package ballot

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/identity"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
	"go.uber.org/zap"
)

// Service runs the voting workflow on top of a persistence backend.
//
// Mutating operations are serialized so that concurrent read-modify-write
// cycles on the same proposal or vote list cannot lose updates.
type Service struct {
	store  persistence.IBallotPersistence
	proofs *ProofCache
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// Option configures a Service
type Option func(*Service)

// WithProofCache makes Prove reuse proofs for an unchanged voter set
func WithProofCache(cache *ProofCache) Option {
	return func(s *Service) {
		s.proofs = cache
	}
}

// NewService creates a ballot service. The caller keeps ownership of store
// and of any proof cache.
func NewService(store persistence.IBallotPersistence, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterResult is returned by Register
type RegisterResult struct {
	Identity   *types.Identity
	Commitment string
}

// Register creates and stores a fresh local identity. An existing identity is
// replaced only when overwrite is set, otherwise ErrIdentityExists is returned.
func (s *Service) Register(overwrite bool) (*RegisterResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.LoadIdentity()
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}
	if existing != nil && !overwrite {
		return nil, ErrIdentityExists
	}

	id, err := identity.Generate()
	if err != nil {
		return nil, err
	}
	commitment, err := identity.Commitment(id)
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveIdentity(id); err != nil {
		return nil, fmt.Errorf("failed to save identity: %w", err)
	}

	if existing != nil {
		s.logger.Sugar().Warnw("Replaced existing identity", "previous_id", existing.ID, "id", id.ID)
	}
	s.logger.Sugar().Infow("Identity registered", "id", id.ID, "commitment", commitment)

	return &RegisterResult{Identity: id, Commitment: commitment}, nil
}

// LocalCommitment returns the stored identity and its public commitment
func (s *Service) LocalCommitment() (*types.Identity, string, error) {
	id, err := s.store.LoadIdentity()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load identity: %w", err)
	}
	if id == nil {
		return nil, "", ErrNoIdentity
	}

	commitment, err := identity.Commitment(id)
	if err != nil {
		return nil, "", fmt.Errorf("stored identity is invalid: %w", err)
	}
	return id, commitment, nil
}

// CreateProposal stores a yes/no proposal keyed by the slug of question.
// The local identity's commitment is recorded as the creator.
func (s *Service) CreateProposal(question string) (*types.Proposal, error) {
	slug := Slugify(question)
	if slug == "" {
		return nil, ErrInvalidQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, commitment, err := s.LocalCommitment()
	if err != nil {
		return nil, err
	}

	existing, err := s.store.LoadProposal(slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal %s: %w", slug, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrProposalExists, slug)
	}

	proposal := &types.Proposal{
		ID:                  slug,
		Question:            question,
		Options:             []string{types.ChoiceYes, types.ChoiceNo},
		IdentityCommitments: []string{commitment},
		Voters:              []string{},
		VoterRoot:           merkle.EmptyRoot(),
		CreatedAt:           s.now().Format(time.RFC3339),
	}

	if err := s.store.SaveProposal(proposal); err != nil {
		return nil, fmt.Errorf("failed to save proposal %s: %w", slug, err)
	}

	s.logger.Sugar().Infow("Proposal created", "proposal_id", slug, "creator", commitment)
	return proposal, nil
}

// GetProposal loads a proposal, returning ErrProposalNotFound when it doesn't exist
func (s *Service) GetProposal(proposalID string) (*types.Proposal, error) {
	proposal, err := s.store.LoadProposal(proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal %s: %w", proposalID, err)
	}
	if proposal == nil {
		return nil, fmt.Errorf("%w: %s", ErrProposalNotFound, proposalID)
	}
	return proposal, nil
}

// ListProposals returns every proposal sorted by ID
func (s *Service) ListProposals() ([]*types.Proposal, error) {
	return s.store.ListProposals()
}

// RegisterToProposal adds the local commitment to the proposal's voters and
// recomputes the voter root. Registering twice is a no-op reported through
// alreadyRegistered.
func (s *Service) RegisterToProposal(proposalID string) (proposal *types.Proposal, alreadyRegistered bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, commitment, err := s.LocalCommitment()
	if err != nil {
		return nil, false, err
	}

	proposal, err = s.GetProposal(proposalID)
	if err != nil {
		return nil, false, err
	}

	if proposal.HasVoter(commitment) {
		s.logger.Sugar().Infow("Already registered", "proposal_id", proposalID, "commitment", commitment)
		return proposal, true, nil
	}

	proposal.Voters = append(proposal.Voters, commitment)
	tree, err := merkle.BuildMerkleTreeChecked(proposal.Voters)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build voter tree: %w", err)
	}
	proposal.VoterRoot = tree.Root()

	if err := s.store.SaveProposal(proposal); err != nil {
		return nil, false, fmt.Errorf("failed to save proposal %s: %w", proposalID, err)
	}

	s.logger.Sugar().Infow("Registered to proposal",
		"proposal_id", proposalID,
		"commitment", commitment,
		"voters", len(proposal.Voters),
		"voter_root", proposal.VoterRoot,
	)
	return proposal, false, nil
}

// Vote records the local identity's choice on a proposal
func (s *Service) Vote(proposalID, choice string) (*types.VoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, commitment, err := s.LocalCommitment()
	if err != nil {
		return nil, err
	}

	proposal, err := s.GetProposal(proposalID)
	if err != nil {
		return nil, err
	}

	if !proposal.HasVoter(commitment) {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, proposalID)
	}
	if !proposal.HasOption(choice) {
		return nil, fmt.Errorf("%w %q, expected one of %v", ErrInvalidChoice, choice, proposal.Options)
	}

	votes, err := s.store.LoadVotes(proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes for %s: %w", proposalID, err)
	}
	for _, v := range votes {
		if v.Commitment == commitment {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyVoted, proposalID)
		}
	}

	record := &types.VoteRecord{
		Commitment: commitment,
		Choice:     choice,
		CastAt:     s.now(),
	}
	votes = append(votes, record)

	if err := s.store.SaveVotes(proposalID, votes); err != nil {
		return nil, fmt.Errorf("failed to save votes for %s: %w", proposalID, err)
	}

	s.logger.Sugar().Infow("Vote recorded", "proposal_id", proposalID, "choice", choice)
	return record, nil
}

// Tally counts the votes cast on a proposal
func (s *Service) Tally(proposalID string) (*types.TallyResult, error) {
	if _, err := s.GetProposal(proposalID); err != nil {
		return nil, err
	}

	votes, err := s.store.LoadVotes(proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes for %s: %w", proposalID, err)
	}
	if len(votes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoVotes, proposalID)
	}

	counts := make(map[string]int)
	for _, v := range votes {
		counts[v.Choice]++
	}
	return types.NewTallyResult(proposalID, counts), nil
}

// Prove builds a membership proof for commitment in the proposal's voter tree.
// An empty commitment means the local identity's.
func (s *Service) Prove(proposalID, commitment string) (*types.MembershipProof, error) {
	if commitment == "" {
		_, local, err := s.LocalCommitment()
		if err != nil {
			return nil, err
		}
		commitment = local
	}

	proposal, err := s.GetProposal(proposalID)
	if err != nil {
		return nil, err
	}

	if s.proofs != nil {
		if cached, ok := s.proofs.Get(proposalID, proposal.VoterRoot, commitment); ok {
			s.logger.Sugar().Debugw("Membership proof served from cache", "proposal_id", proposalID)
			return cached, nil
		}
	}

	tree, err := merkle.BuildMerkleTreeChecked(proposal.Voters)
	if err != nil {
		return nil, fmt.Errorf("failed to build voter tree: %w", err)
	}

	// Voters excludes padding, so the first match is always a real leaf
	index := -1
	for i, v := range proposal.Voters {
		if v == commitment {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, proposalID)
	}

	proof, err := tree.GenerateProof(index)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof: %w", err)
	}

	membership := &types.MembershipProof{
		ProposalID: proposalID,
		Commitment: commitment,
		LeafIndex:  index,
		Root:       tree.Root(),
		Proof:      proof,
	}

	switch {
	case tree.Root() != proposal.VoterRoot:
		s.logger.Sugar().Warnw("Stored voter root is stale",
			"proposal_id", proposalID,
			"stored", proposal.VoterRoot,
			"computed", tree.Root(),
		)
	case s.proofs != nil:
		if err := s.proofs.Put(membership); err != nil {
			s.logger.Sugar().Warnw("Failed to cache membership proof", "proposal_id", proposalID, "error", err)
		}
	}

	return membership, nil
}

// VerifyMembership checks proof against expectedRoot. With an empty
// expectedRoot the proposal's stored voter root is used, so a proof carrying
// a forged root of its own does not verify.
func (s *Service) VerifyMembership(proof *types.MembershipProof, expectedRoot string) (bool, error) {
	if proof == nil || proof.Proof == nil {
		return false, errors.New("membership proof is empty")
	}

	if expectedRoot == "" {
		proposal, err := s.GetProposal(proof.ProposalID)
		if err != nil {
			return false, err
		}
		expectedRoot = proposal.VoterRoot
	}

	ok := merkle.VerifyProof(proof.Commitment, proof.Proof, expectedRoot)
	s.logger.Debug("Verified membership proof",
		zap.String("proposal_id", proof.ProposalID),
		zap.String("commitment", proof.Commitment),
		zap.Bool("valid", ok),
	)
	return ok, nil
}
