package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/handoff/internal/common"
	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/storage/badger"
)

// NewStorageManager opens the Badger store and loads the seed fixture into
// it when empty
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	manager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	if err := manager.LoadSeedFile(ctx, config.Storage.Seed.Path); err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("failed to load seed data: %w", err)
	}

	return manager, nil
}
