package types

import (
	"sort"
	"time"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/merkle"
)

// Default choices offered by every proposal
const (
	ChoiceYes = "yes"
	ChoiceNo  = "no"
)

// Identity is a voter's local secret. Only its commitment is ever shared.
type Identity struct {
	ID        string `json:"id"`
	Trapdoor  string `json:"trapdoor"`  // 16 bytes, hex, little-endian
	Nullifier string `json:"nullifier"` // 16 bytes, hex, little-endian
	CreatedAt string `json:"created_at"`
}

// Proposal is a yes/no question and the commitments allowed to vote on it
type Proposal struct {
	ID                  string   `json:"id"`
	Question            string   `json:"question"`
	Options             []string `json:"options"`
	IdentityCommitments []string `json:"identity_commitments"` // creator commitments
	Voters              []string `json:"voters"`               // registered commitments, merkle leaves in order
	VoterRoot           string   `json:"voter_root"`           // merkle root over Voters
	CreatedAt           string   `json:"created_at"`           // RFC3339
}

// HasVoter reports whether commitment is registered to the proposal
func (p *Proposal) HasVoter(commitment string) bool {
	for _, v := range p.Voters {
		if v == commitment {
			return true
		}
	}
	return false
}

// HasOption reports whether choice is one of the proposal's options
func (p *Proposal) HasOption(choice string) bool {
	for _, o := range p.Options {
		if o == choice {
			return true
		}
	}
	return false
}

// VoteRecord is one ballot cast on a proposal
type VoteRecord struct {
	Commitment string    `json:"commitment"`
	Choice     string    `json:"choice"`
	CastAt     time.Time `json:"cast_at"`
}

// ChoiceCount is the number of votes for one choice
type ChoiceCount struct {
	Choice string `json:"choice"`
	Count  int    `json:"count"`
}

// TallyResult summarizes the votes on a proposal
type TallyResult struct {
	ProposalID string        `json:"proposal_id"`
	Counts     []ChoiceCount `json:"counts"` // sorted by choice
	Total      int           `json:"total"`
}

// NewTallyResult builds a tally with counts sorted by choice
func NewTallyResult(proposalID string, counts map[string]int) *TallyResult {
	result := &TallyResult{ProposalID: proposalID, Counts: make([]ChoiceCount, 0, len(counts))}
	for choice, count := range counts {
		result.Counts = append(result.Counts, ChoiceCount{Choice: choice, Count: count})
		result.Total += count
	}
	sort.Slice(result.Counts, func(i, j int) bool {
		return result.Counts[i].Choice < result.Counts[j].Choice
	})
	return result
}

// MembershipProof shows that Commitment is a registered voter of ProposalID
// under voter root Root.
type MembershipProof struct {
	ProposalID string              `json:"proposal_id"`
	Commitment string              `json:"commitment"`
	LeafIndex  int                 `json:"leaf_index"`
	Root       string              `json:"root"`
	Proof      *merkle.MerkleProof `json:"proof"`
}
