package storage

import (
	"fmt"

	"github.com/propertydesk/propertydesk/internal/config"
)

// FactoryFunc builds a backend from the application config.
type FactoryFunc func(*config.Config) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register makes a backend available under name.
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStorage builds the backend selected by storage.default_backend.
func NewStorage(cfg *config.Config) (Storage, error) {
	factory, ok := factories[cfg.Storage.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %q (must be 'local', 's3', 'azure' or 'gcs')", cfg.Storage.DefaultBackend)
	}
	return factory(cfg)
}
