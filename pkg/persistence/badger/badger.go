package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyIdentity          = "identity:local"
	keyPrefixProposal    = "proposal:"
	keyPrefixVotes       = "votes:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a persistence implementation using Badger.
// Provides durable, disk-based storage with ACID guarantees.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IBallotPersistence = (*BadgerPersistence)(nil)

// NewBadgerPersistence creates a new Badger-backed persistence layer.
// The database is opened at the specified path with SyncWrites enabled for durability.
// A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic value log garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// get reads a copy of the value at key; nil when missing
func (b *BadgerPersistence) get(key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	return data, err
}

func (b *BadgerPersistence) set(key string, data []byte) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// SaveIdentity persists the local identity
func (b *BadgerPersistence) SaveIdentity(identity *types.Identity) error {
	if identity == nil {
		return fmt.Errorf("cannot save nil Identity")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalIdentity(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal Identity: %w", err)
	}

	return b.set(keyIdentity, data)
}

// LoadIdentity retrieves the local identity
func (b *BadgerPersistence) LoadIdentity() (*types.Identity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(keyIdentity)
	if err != nil {
		return nil, fmt.Errorf("failed to load Identity: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalIdentity(data)
}

// SaveProposal persists a proposal
func (b *BadgerPersistence) SaveProposal(proposal *types.Proposal) error {
	if proposal == nil {
		return fmt.Errorf("cannot save nil Proposal")
	}
	if proposal.ID == "" {
		return fmt.Errorf("cannot save Proposal with empty ID")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalProposal(proposal)
	if err != nil {
		return fmt.Errorf("failed to marshal Proposal: %w", err)
	}

	return b.set(keyPrefixProposal+proposal.ID, data)
}

// LoadProposal retrieves a proposal
func (b *BadgerPersistence) LoadProposal(id string) (*types.Proposal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(keyPrefixProposal + id)
	if err != nil {
		return nil, fmt.Errorf("failed to load Proposal: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalProposal(data)
}

// ListProposals returns all proposals sorted by ID
func (b *BadgerPersistence) ListProposals() ([]*types.Proposal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	proposals := []*types.Proposal{}

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixProposal)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			var data []byte
			err := item.Value(func(val []byte) error {
				data = append([]byte{}, val...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			proposal, err := persistence.UnmarshalProposal(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal Proposal, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}

			proposals = append(proposals, proposal)
		}

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list Proposals: %w", err)
	}

	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].ID < proposals[j].ID
	})

	return proposals, nil
}

// SaveVotes replaces the vote list of a proposal
func (b *BadgerPersistence) SaveVotes(proposalID string, votes []*types.VoteRecord) error {
	if proposalID == "" {
		return fmt.Errorf("cannot save votes with empty proposal ID")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalVotes(votes)
	if err != nil {
		return fmt.Errorf("failed to marshal votes: %w", err)
	}

	return b.set(keyPrefixVotes+proposalID, data)
}

// LoadVotes retrieves the vote list of a proposal
func (b *BadgerPersistence) LoadVotes(proposalID string) ([]*types.VoteRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(keyPrefixVotes + proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}
	if data == nil {
		return []*types.VoteRecord{}, nil
	}

	return persistence.UnmarshalVotes(data)
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
