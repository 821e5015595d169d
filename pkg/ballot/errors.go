package ballot

import "errors"

var (
	// ErrNoIdentity is returned when an operation needs the local identity and none is stored
	ErrNoIdentity = errors.New("no local identity, run register first")
	// ErrIdentityExists is returned by Register when an identity is stored and overwrite is off
	ErrIdentityExists = errors.New("local identity already exists")
	// ErrProposalNotFound is returned when no proposal has the requested ID
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrProposalExists is returned by CreateProposal when the question's slug is taken
	ErrProposalExists = errors.New("proposal already exists")
	// ErrInvalidQuestion is returned when a question slugifies to nothing
	ErrInvalidQuestion = errors.New("question must contain at least one letter or digit")
	// ErrNotRegistered is returned when a commitment is not among a proposal's voters
	ErrNotRegistered = errors.New("commitment is not registered for this proposal")
	// ErrInvalidChoice is returned when a vote names a choice the proposal does not offer
	ErrInvalidChoice = errors.New("invalid choice")
	// ErrAlreadyVoted is returned on a second vote by the same commitment
	ErrAlreadyVoted = errors.New("commitment already voted on this proposal")
	// ErrNoVotes is returned by Tally when nothing has been cast
	ErrNoVotes = errors.New("no votes have been cast")
)
