package config

import "fmt"

// StorageConfig defines the storage backend for the local task transcript
type StorageConfig struct {
	Backend string `hcl:"backend,optional"` // "memory" or "sqlite"
	Path    string `hcl:"path,optional"`    // SQLite file path (default: ".lifeline/store.db")
}

// ApplyDefaults fills in default values for unset fields
func (s *StorageConfig) ApplyDefaults() {
	if s.Backend == "" {
		s.Backend = "memory"
	}
	if s.Path == "" {
		s.Path = ".lifeline/store.db"
	}
}

func (s *StorageConfig) Validate() error {
	switch s.Backend {
	case "", "memory", "sqlite":
		return nil
	default:
		return fmt.Errorf("unknown backend %q (expected 'memory' or 'sqlite')", s.Backend)
	}
}
