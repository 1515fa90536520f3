// Package catalog persists the cloud service records the pipeline
// retrieves from and recommends over. The store is a Badger key-value
// database holding one JSON value per service under a service: key
// prefix, with an in-memory mode for tests and ephemeral runs. The
// retrieval indexes are built by iterating the full store.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/nimbium/cirro/pkg/types"
)

// servicePrefix namespaces service records in the key space, leaving
// room for other record kinds next to them.
const servicePrefix = "service:"

// ErrNotFound is returned when no service record exists for an ID.
var ErrNotFound = errors.New("service not found in catalog")

// Config configures the catalog store backend.
type Config struct {
	// Path is the Badger database directory. Ignored when InMemory is set.
	Path string `json:"path,omitempty"`
	// InMemory runs the store without persistence.
	InMemory bool `json:"in_memory,omitempty"`
}

// Stats summarizes the catalog contents.
type Stats struct {
	// Total is the number of service records.
	Total int `json:"total"`
	// Embedded is the number of records carrying a stored dense vector.
	Embedded int `json:"embedded"`
	// ByProvider counts records per cloud provider.
	ByProvider map[types.Provider]int `json:"by_provider"`
	// ByCategory counts records per service category.
	ByCategory map[types.ServiceCategory]int `json:"by_category"`
}

// Store is a Badger-backed catalog of CloudService records.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the catalog store. With InMemory set the
// store lives in process memory and Path is ignored; otherwise Path
// must name a directory Badger can own.
func Open(config Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if config.Path == "" {
			return nil, fmt.Errorf("catalog path is required for a persistent store")
		}
		opts = badger.DefaultOptions(config.Path)
	}
	// Badger's own logger is noisy at info level; slog carries our lines.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}

	location := config.Path
	if config.InMemory {
		location = "in-memory"
	}
	logger.Info("catalog store opened", "location", location)

	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func serviceKey(id string) []byte {
	return []byte(servicePrefix + id)
}

// Put stores one service record, replacing any existing record with the
// same ID.
func (s *Store) Put(ctx context.Context, svc *types.CloudService) error {
	if svc == nil {
		return types.ErrNilService
	}
	if err := svc.Validate(); err != nil {
		return fmt.Errorf("invalid service record: %w", err)
	}

	data, err := json.Marshal(svc)
	if err != nil {
		return fmt.Errorf("failed to marshal service %s: %w", svc.ID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(serviceKey(svc.ID), data)
	})
}

// PutBatch stores many service records in one write batch. Invalid
// records are skipped with a warning rather than failing the batch; the
// returned count is the number actually stored.
func (s *Store) PutBatch(ctx context.Context, services []*types.CloudService) (int, error) {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	stored := 0
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if svc == nil {
			continue
		}
		if err := svc.Validate(); err != nil {
			s.logger.Warn("skipping invalid service record", "id", svc.ID, "error", err)
			continue
		}
		data, err := json.Marshal(svc)
		if err != nil {
			s.logger.Warn("skipping unmarshalable service record", "id", svc.ID, "error", err)
			continue
		}
		if err := wb.Set(serviceKey(svc.ID), data); err != nil {
			return stored, fmt.Errorf("failed to batch service %s: %w", svc.ID, err)
		}
		stored++
	}

	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush catalog batch: %w", err)
	}

	s.logger.Info("catalog records stored", "count", stored, "skipped", len(services)-stored)
	return stored, nil
}

// Get retrieves one service record by ID.
func (s *Store) Get(ctx context.Context, id string) (*types.CloudService, error) {
	var svc types.CloudService

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(serviceKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read service %s: %w", id, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &svc)
		})
	})
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// List returns every service record, ordered by ID. Badger iterates in
// key order, so the ordering is stable across calls.
func (s *Store) List(ctx context.Context) ([]*types.CloudService, error) {
	var services []*types.CloudService

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(servicePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var svc types.CloudService
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &svc)
			})
			if err != nil {
				s.logger.Warn("skipping unreadable catalog record",
					"key", string(item.Key()), "error", err)
				continue
			}
			services = append(services, &svc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return services, nil
}

// Count returns the number of service records without reading values.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(servicePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Delete removes one service record. Deleting an absent ID returns
// ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := serviceKey(id)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return fmt.Errorf("failed to read service %s: %w", id, err)
		}
		return txn.Delete(key)
	})
}

// Stats scans the catalog and reports counts by provider and category.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByProvider: make(map[types.Provider]int),
		ByCategory: make(map[types.ServiceCategory]int),
	}

	services, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, svc := range services {
		stats.Total++
		stats.ByProvider[svc.Provider]++
		if svc.Category != "" {
			stats.ByCategory[svc.Category]++
		}
		if len(svc.Embedding) > 0 {
			stats.Embedded++
		}
	}
	return stats, nil
}
