package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
	"go.uber.org/zap"
)

// On-disk layout under the data directory
const (
	identityFile = "identity.json"
	proposalsDir = "proposals"
	votesDir     = "votes"
	jsonExt      = ".json"
)

// FilePersistence stores ballot state as pretty-printed JSON files:
//
//	<dir>/identity.json
//	<dir>/proposals/<proposal-id>.json
//	<dir>/votes/<proposal-id>.json
//
// Writes go to a temp file that is renamed into place.
type FilePersistence struct {
	dir    string
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

var _ persistence.IBallotPersistence = (*FilePersistence)(nil)

// NewFilePersistence prepares the directory layout under dataDir.
func NewFilePersistence(dataDir string, logger *zap.Logger) (*FilePersistence, error) {
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	for _, sub := range []string{proposalsDir, votesDir} {
		if err := os.MkdirAll(filepath.Join(absPath, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", sub, err)
		}
	}

	logger.Sugar().Debugw("File persistence initialized", "path", absPath)

	return &FilePersistence{dir: absPath, logger: logger}, nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("proposal ID cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid proposal ID %q", id)
	}
	return nil
}

// readFile returns nil data when the file does not exist
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// SaveIdentity writes identity.json
func (f *FilePersistence) SaveIdentity(identity *types.Identity) error {
	if identity == nil {
		return fmt.Errorf("cannot save nil Identity")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalIdentity(identity)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(f.dir, identityFile), data); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	return nil
}

// LoadIdentity reads identity.json
func (f *FilePersistence) LoadIdentity() (*types.Identity, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, persistence.ErrClosed
	}

	data, err := readFile(filepath.Join(f.dir, identityFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalIdentity(data)
}

// SaveProposal writes proposals/<id>.json
func (f *FilePersistence) SaveProposal(proposal *types.Proposal) error {
	if proposal == nil {
		return fmt.Errorf("cannot save nil Proposal")
	}
	if err := validateID(proposal.ID); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalProposal(proposal)
	if err != nil {
		return fmt.Errorf("failed to marshal Proposal: %w", err)
	}

	if err := writeFileAtomic(f.proposalPath(proposal.ID), data); err != nil {
		return fmt.Errorf("failed to write proposal %s: %w", proposal.ID, err)
	}
	return nil
}

// LoadProposal reads proposals/<id>.json
func (f *FilePersistence) LoadProposal(id string) (*types.Proposal, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, persistence.ErrClosed
	}

	data, err := readFile(f.proposalPath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read proposal %s: %w", id, err)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalProposal(data)
}

// ListProposals reads every proposal file, sorted by ID
func (f *FilePersistence) ListProposals() ([]*types.Proposal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, persistence.ErrClosed
	}

	entries, err := os.ReadDir(filepath.Join(f.dir, proposalsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	proposals := []*types.Proposal{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != jsonExt {
			continue
		}

		data, err := os.ReadFile(filepath.Join(f.dir, proposalsDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read proposal %s: %w", name, err)
		}

		proposal, err := persistence.UnmarshalProposal(data)
		if err != nil {
			f.logger.Sugar().Warnw("Failed to unmarshal Proposal, skipping", "file", name, "error", err)
			continue
		}
		proposals = append(proposals, proposal)
	}

	sort.Slice(proposals, func(i, j int) bool {
		return proposals[i].ID < proposals[j].ID
	})

	return proposals, nil
}

// SaveVotes writes votes/<id>.json
func (f *FilePersistence) SaveVotes(proposalID string, votes []*types.VoteRecord) error {
	if err := validateID(proposalID); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalVotes(votes)
	if err != nil {
		return fmt.Errorf("failed to marshal votes: %w", err)
	}

	if err := writeFileAtomic(f.votesPath(proposalID), data); err != nil {
		return fmt.Errorf("failed to write votes for %s: %w", proposalID, err)
	}
	return nil
}

// LoadVotes reads votes/<id>.json
func (f *FilePersistence) LoadVotes(proposalID string) ([]*types.VoteRecord, error) {
	if err := validateID(proposalID); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, persistence.ErrClosed
	}

	data, err := readFile(f.votesPath(proposalID))
	if err != nil {
		return nil, fmt.Errorf("failed to read votes for %s: %w", proposalID, err)
	}
	if data == nil {
		return []*types.VoteRecord{}, nil
	}

	return persistence.UnmarshalVotes(data)
}

// Close marks the store closed; there are no open handles to release
func (f *FilePersistence) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

// HealthCheck verifies the data directory is still present and writable
func (f *FilePersistence) HealthCheck() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return persistence.ErrClosed
	}

	probe, err := os.CreateTemp(f.dir, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("data directory %s is not writable: %w", f.dir, err)
	}
	_ = probe.Close()
	return os.Remove(probe.Name())
}

func (f *FilePersistence) proposalPath(id string) string {
	return filepath.Join(f.dir, proposalsDir, id+jsonExt)
}

func (f *FilePersistence) votesPath(id string) string {
	return filepath.Join(f.dir, votesDir, id+jsonExt)
}
