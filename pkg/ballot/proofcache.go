package ballot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
	"github.com/allegro/bigcache/v3"
)

// DefaultProofCacheTTL is how long a cached membership proof stays usable
const DefaultProofCacheTTL = 10 * time.Minute

// ProofCache keeps encoded membership proofs keyed by proposal, voter root and
// commitment. Registering a voter changes the root, so entries for an older
// voter set are never returned; they simply age out.
type ProofCache struct {
	cache *bigcache.BigCache
}

// NewProofCache creates a proof cache whose entries expire after ttl
func NewProofCache(ctx context.Context, ttl time.Duration) (*ProofCache, error) {
	if ttl <= 0 {
		ttl = DefaultProofCacheTTL
	}

	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 2048
	cfg.CleanWindow = ttl
	cfg.Verbose = false

	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create proof cache: %w", err)
	}
	return &ProofCache{cache: cache}, nil
}

func proofCacheKey(proposalID, root, commitment string) string {
	return proposalID + "|" + root + "|" + commitment
}

// Get returns the cached proof, or false on a miss
func (c *ProofCache) Get(proposalID, root, commitment string) (*types.MembershipProof, bool) {
	data, err := c.cache.Get(proofCacheKey(proposalID, root, commitment))
	if err != nil {
		return nil, false
	}

	var proof types.MembershipProof
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil, false
	}
	return &proof, true
}

// Put stores proof under its own proposal, root and commitment
func (c *ProofCache) Put(proof *types.MembershipProof) error {
	if proof == nil {
		return errors.New("cannot cache nil proof")
	}

	data, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to encode proof: %w", err)
	}
	return c.cache.Set(proofCacheKey(proof.ProposalID, proof.Root, proof.Commitment), data)
}

// Len is the number of cached proofs
func (c *ProofCache) Len() int {
	return c.cache.Len()
}

// Close releases the cache's cleanup goroutine
func (c *ProofCache) Close() error {
	return c.cache.Close()
}
