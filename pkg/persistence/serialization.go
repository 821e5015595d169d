package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
)

// MarshalIdentity serializes an Identity to indented JSON bytes.
func MarshalIdentity(identity *types.Identity) ([]byte, error) {
	if identity == nil {
		return nil, fmt.Errorf("cannot marshal nil Identity")
	}

	data, err := json.MarshalIndent(identity, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Identity to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalIdentity deserializes an Identity from JSON bytes.
func UnmarshalIdentity(data []byte) (*types.Identity, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var identity types.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Identity: %w", err)
	}

	return &identity, nil
}

// MarshalProposal serializes a Proposal to indented JSON bytes.
func MarshalProposal(proposal *types.Proposal) ([]byte, error) {
	if proposal == nil {
		return nil, fmt.Errorf("cannot marshal nil Proposal")
	}

	return json.MarshalIndent(proposal, "", "  ")
}

// UnmarshalProposal deserializes a Proposal from JSON bytes.
func UnmarshalProposal(data []byte) (*types.Proposal, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var proposal types.Proposal
	if err := json.Unmarshal(data, &proposal); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Proposal: %w", err)
	}

	return &proposal, nil
}

// MarshalVotes serializes a vote list to indented JSON bytes.
// A nil list is written as an empty array.
func MarshalVotes(votes []*types.VoteRecord) ([]byte, error) {
	if votes == nil {
		votes = []*types.VoteRecord{}
	}

	return json.MarshalIndent(votes, "", "  ")
}

// UnmarshalVotes deserializes a vote list from JSON bytes.
func UnmarshalVotes(data []byte) ([]*types.VoteRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	votes := []*types.VoteRecord{}
	if err := json.Unmarshal(data, &votes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to VoteRecords: %w", err)
	}

	return votes, nil
}

// CopyIdentity returns a deep copy of identity.
func CopyIdentity(identity *types.Identity) *types.Identity {
	if identity == nil {
		return nil
	}
	c := *identity
	return &c
}

// CopyProposal returns a deep copy of proposal.
func CopyProposal(proposal *types.Proposal) *types.Proposal {
	if proposal == nil {
		return nil
	}
	c := *proposal
	c.Options = copyStrings(proposal.Options)
	c.IdentityCommitments = copyStrings(proposal.IdentityCommitments)
	c.Voters = copyStrings(proposal.Voters)
	return &c
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

// CopyVotes returns a deep copy of votes; never nil.
func CopyVotes(votes []*types.VoteRecord) []*types.VoteRecord {
	out := make([]*types.VoteRecord, 0, len(votes))
	for _, v := range votes {
		if v == nil {
			continue
		}
		c := *v
		out = append(out, &c)
	}
	return out
}

// MarshalVoteRecord serializes a single VoteRecord to compact JSON bytes.
func MarshalVoteRecord(vote *types.VoteRecord) ([]byte, error) {
	if vote == nil {
		return nil, fmt.Errorf("cannot marshal nil VoteRecord")
	}

	return json.Marshal(vote)
}

// UnmarshalVoteRecord deserializes a single VoteRecord from JSON bytes.
func UnmarshalVoteRecord(data []byte) (*types.VoteRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var vote types.VoteRecord
	if err := json.Unmarshal(data, &vote); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to VoteRecord: %w", err)
	}

	return &vote, nil
}
