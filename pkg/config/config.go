package config

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for ballot configuration
const (
	EnvBallotDataDir         = "BALLOT_DATA_DIR"
	EnvBallotPersistenceType = "BALLOT_PERSISTENCE_TYPE"
	EnvBallotRedisAddress    = "BALLOT_REDIS_ADDRESS"
	EnvBallotRedisPassword   = "BALLOT_REDIS_PASSWORD"
	EnvBallotRedisDB         = "BALLOT_REDIS_DB"
	EnvBallotRedisKeyPrefix  = "BALLOT_REDIS_KEY_PREFIX"
	EnvBallotVerbose         = "BALLOT_VERBOSE"
)

// PersistenceType selects the storage backend
type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeFile   PersistenceType = "file"
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// Defaults used by the CLI
const (
	DefaultDataDir         = ".ballot"
	DefaultPersistenceType = PersistenceTypeFile
	DefaultRedisAddress    = "localhost:6379"
)

// GetSupportedPersistenceTypes returns all supported backends
func GetSupportedPersistenceTypes() []PersistenceType {
	return []PersistenceType{
		PersistenceTypeFile,
		PersistenceTypeMemory,
		PersistenceTypeBadger,
		PersistenceTypeRedis,
	}
}

// GetSupportedPersistenceTypesString returns supported backends for CLI help
func GetSupportedPersistenceTypesString() string {
	names := make([]string, 0, 4)
	for _, t := range GetSupportedPersistenceTypes() {
		names = append(names, t.String())
	}
	return strings.Join(names, ", ")
}

// BallotConfig represents the configuration of the ballot CLI
type BallotConfig struct {
	// Storage
	DataDir         string          `json:"data_dir"`
	PersistenceType PersistenceType `json:"persistence_type"`

	// Redis backend only
	RedisAddress   string `json:"redis_address"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`

	Debug bool `json:"debug"`
}

// Validate validates the ballot configuration
func (c *BallotConfig) Validate() error {
	var allErrors field.ErrorList

	switch c.PersistenceType {
	case PersistenceTypeFile, PersistenceTypeBadger:
		if c.DataDir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataDir"),
				fmt.Sprintf("dataDir is required for %s persistence", c.PersistenceType)))
		}
	case PersistenceTypeMemory:
	case PersistenceTypeRedis:
		if c.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDB"), c.RedisDB, "redisDB must be between 0-15"))
		}
	case "":
		allErrors = append(allErrors, field.Required(field.NewPath("persistenceType"), "persistenceType is required"))
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType, GetSupportedPersistenceTypes()))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
