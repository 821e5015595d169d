package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyIdentity          = "ballot:identity:local"
	keyPrefixProposal    = "ballot:proposal:"
	keyPrefixVotes       = "ballot:votes:" // Redis list, one JSON vote per element
	keySchemaVersion     = "ballot:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Key set for listing operations (Redis doesn't support prefix iteration natively)
	keySetProposals = "ballot:proposals:index"
)

// RedisPersistence is a persistence implementation using Redis.
// Provides durable, shared storage for several ballot clients.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IBallotPersistence = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// If set, this prefix is prepended to all keys, e.g., "myapp:" would result in
	// keys like "myapp:ballot:proposal:foo".
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// SaveIdentity persists the local identity
func (r *RedisPersistence) SaveIdentity(identity *types.Identity) error {
	if identity == nil {
		return fmt.Errorf("cannot save nil Identity")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalIdentity(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal Identity: %w", err)
	}

	return r.client.Set(context.Background(), r.prefixKey(keyIdentity), data, 0).Err()
}

// LoadIdentity retrieves the local identity
func (r *RedisPersistence) LoadIdentity() (*types.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.prefixKey(keyIdentity)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load Identity: %w", err)
	}

	return persistence.UnmarshalIdentity(data)
}

// SaveProposal persists a proposal and adds it to the index set
func (r *RedisPersistence) SaveProposal(proposal *types.Proposal) error {
	if proposal == nil {
		return fmt.Errorf("cannot save nil Proposal")
	}
	if proposal.ID == "" {
		return fmt.Errorf("cannot save Proposal with empty ID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()

	data, err := persistence.MarshalProposal(proposal)
	if err != nil {
		return fmt.Errorf("failed to marshal Proposal: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(keyPrefixProposal+proposal.ID), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetProposals), proposal.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save Proposal: %w", err)
	}

	return nil
}

// LoadProposal retrieves a proposal
func (r *RedisPersistence) LoadProposal(id string) (*types.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.prefixKey(keyPrefixProposal+id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load Proposal: %w", err)
	}

	return persistence.UnmarshalProposal(data)
}

// ListProposals returns all proposals sorted by ID
func (r *RedisPersistence) ListProposals() ([]*types.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetProposals)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list Proposal IDs: %w", err)
	}

	proposals := []*types.Proposal{}
	if len(ids) == 0 {
		return proposals, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(keyPrefixProposal + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Proposals: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for Proposal", "key", keys[i])
			continue
		}

		proposal, err := persistence.UnmarshalProposal([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal Proposal, skipping",
				"key", keys[i], "error", err)
			continue
		}

		proposals = append(proposals, proposal)
	}

	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].ID < proposals[j].ID
	})

	return proposals, nil
}

// SaveVotes replaces the vote list of a proposal atomically
func (r *RedisPersistence) SaveVotes(proposalID string, votes []*types.VoteRecord) error {
	if proposalID == "" {
		return fmt.Errorf("cannot save votes with empty proposal ID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()
	key := r.prefixKey(keyPrefixVotes + proposalID)

	encoded := make([]interface{}, 0, len(votes))
	for _, vote := range votes {
		data, err := persistence.MarshalVoteRecord(vote)
		if err != nil {
			return fmt.Errorf("failed to marshal VoteRecord: %w", err)
		}
		encoded = append(encoded, data)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(encoded) > 0 {
		pipe.RPush(ctx, key, encoded...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save votes: %w", err)
	}

	return nil
}

// LoadVotes retrieves the vote list of a proposal
func (r *RedisPersistence) LoadVotes(proposalID string) ([]*types.VoteRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	entries, err := r.client.LRange(context.Background(), r.prefixKey(keyPrefixVotes+proposalID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}

	votes := make([]*types.VoteRecord, 0, len(entries))
	for _, entry := range entries {
		vote, err := persistence.UnmarshalVoteRecord([]byte(entry))
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal vote for proposal %s: %w", proposalID, err)
		}
		votes = append(votes, vote)
	}

	return votes, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
