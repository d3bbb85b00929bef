package store

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Type string

const (
	TypeMemory Type = "memory"
	TypeYAML   Type = "yaml"
	TypeSQLite Type = "sqlite"
)

type Config struct {
	Type Type   `yaml:"type" mapstructure:"type"`
	Path string `yaml:"path" mapstructure:"path"`
}

// Open creates the store described by config.
func Open(config Config) (Store, error) {
	log.Debug().Str("type", string(config.Type)).Str("path", config.Path).Msg("opening store")

	switch config.Type {
	case TypeMemory, "":
		return NewMemoryStore(), nil
	case TypeYAML:
		return NewYAMLFileStore(config.Path)
	case TypeSQLite:
		dsn, err := SQLiteDSNForFile(config.Path)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(dsn)
	default:
		return nil, errors.Errorf("unknown store type %q", config.Type)
	}
}
