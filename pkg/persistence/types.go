package persistence

import "errors"

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("persistence layer is closed")

// Persistence backend names accepted by configuration
const (
	TypeFile   = "file"
	TypeMemory = "memory"
	TypeBadger = "badger"
	TypeRedis  = "redis"
)

// SupportedTypes lists every persistence backend name
func SupportedTypes() []string {
	return []string{TypeFile, TypeMemory, TypeBadger, TypeRedis}
}
