package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/pingbot/internal/config"
)

// Registry stores the ids of users who opted into summaries.
type Registry interface {
	// Add inserts id; adding an existing id is a no-op.
	Add(ctx context.Context, id string) error
	// Remove deletes id; removing a missing id is a no-op.
	Remove(ctx context.Context, id string) error
	// Clear deletes every id.
	Clear(ctx context.Context) error
	// List returns every id in insertion order.
	List(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

// errUnsupportedDriver is returned by Open for an unknown backend.
var errUnsupportedDriver = errors.New("unsupported users driver")

// Open creates the registry selected by cfg.
//
//nolint:ireturn // Callers only need the interface; the backend is a config choice.
func Open(ctx context.Context, cfg config.UsersConfig) (Registry, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryRegistry(), nil
	case config.DriverFile:
		return NewFileRegistry(cfg.DSN), nil
	case config.DriverSQLite:
		registry, err := OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}

		return registry, nil
	case config.DriverPostgres:
		registry, err := OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}

		return registry, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedDriver, cfg.Driver)
	}
}
