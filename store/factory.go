package store

import (
	"fmt"
	"os"
	"path/filepath"

	"lifeline/config"
)

// NewBundle builds the store bundle the storage config asks for. A nil
// config means the caller wants no persistence, which the memory bundle
// provides.
func NewBundle(cfg *config.StorageConfig) (*Bundle, error) {
	backend, path := "", ""
	if cfg != nil {
		backend, path = cfg.Backend, cfg.Path
	}

	switch backend {
	case "", "memory":
		return NewMemoryBundle(), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create storage directory for %s: %w", path, err)
		}
		return NewSQLiteBundle(path)
	}
	return nil, fmt.Errorf("storage backend %q is not supported (use memory or sqlite)", backend)
}
