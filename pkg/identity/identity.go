package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Layr-Labs/eigenx-ballot-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-ballot-go/pkg/types"
	"github.com/google/uuid"
)

// SecretSize is the byte length of a trapdoor or nullifier (a 128-bit value)
const SecretSize = 16

// Generate creates a fresh identity with random trapdoor and nullifier
func Generate() (*types.Identity, error) {
	trapdoor, err := randomSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate trapdoor: %w", err)
	}
	nullifier, err := randomSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nullifier: %w", err)
	}

	return &types.Identity{
		ID:        fmt.Sprintf("local-identity-%s", uuid.New().String()),
		Trapdoor:  hex.EncodeToString(trapdoor),
		Nullifier: hex.EncodeToString(nullifier),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// Commitment returns sha256(trapdoor || nullifier) as lowercase hex. The
// commitment is the identity's public leaf in a proposal's voter tree.
func Commitment(id *types.Identity) (string, error) {
	if id == nil {
		return "", fmt.Errorf("identity is nil")
	}

	trapdoor, err := decodeSecret("trapdoor", id.Trapdoor)
	if err != nil {
		return "", err
	}
	nullifier, err := decodeSecret("nullifier", id.Nullifier)
	if err != nil {
		return "", err
	}

	data := make([]byte, 0, 2*SecretSize)
	data = append(data, trapdoor...)
	data = append(data, nullifier...)
	return merkle.HashHex(data), nil
}

// Validate checks that both secrets decode to SecretSize bytes
func Validate(id *types.Identity) error {
	_, err := Commitment(id)
	return err
}

func randomSecret() ([]byte, error) {
	b := make([]byte, SecretSize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeSecret(name, value string) ([]byte, error) {
	b, err := merkle.DecodeHex(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	if len(b) != SecretSize {
		return nil, fmt.Errorf("invalid %s: expected %d bytes, got %d", name, SecretSize, len(b))
	}
	return b, nil
}
