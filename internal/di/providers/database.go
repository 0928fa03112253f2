package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/nurole/shorttoken/internal/config"
	"github.com/nurole/shorttoken/internal/domain"
	"github.com/nurole/shorttoken/internal/logger"
	"github.com/nurole/shorttoken/internal/record"
	"github.com/nurole/shorttoken/internal/store"
	"github.com/nurole/shorttoken/internal/store/memory"
	"github.com/nurole/shorttoken/internal/store/sqlite"
)

// Badger key prefixes per record type.
const (
	LinkPrefix   = "link:"
	InvitePrefix = "invite:"
)

// StoreHandle holds the record stores of the configured backend.
type StoreHandle struct {
	Name    string
	Links   record.Store[domain.Link]
	Invites record.Store[domain.Invite]

	// ping is nil for the in-memory backend.
	ping  func(ctx context.Context) error
	close func() error
}

// Ping implements api.Pinger. It is only handed to the API when non-nil.
func (h *StoreHandle) Ping(ctx context.Context) error {
	if h.ping == nil {
		return nil
	}
	return h.ping(ctx)
}

// Durable reports whether the backend has something to ping.
func (h *StoreHandle) Durable() bool {
	return h.ping != nil
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// ProvideStore opens the backend selected by STORAGE_BACKEND.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	h, err := OpenStore(cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	log.Info("Record store initialized", "backend", h.Name, "path", cfg.Storage.DataPath)
	return h, nil
}

// OpenStore opens the record stores for a storage configuration.
func OpenStore(cfg config.StorageConfig, log *logger.Logger) (*StoreHandle, error) {
	switch cfg.Backend {
	case config.BackendBadger:
		dbPath := filepath.Join(cfg.DataPath, "badger")
		db, err := store.New(dbPath, log.Logger)
		if err != nil {
			return nil, err
		}
		return &StoreHandle{
			Name:    cfg.Backend,
			Links:   BadgerLinks(db),
			Invites: BadgerInvites(db),
			ping:    db.Ping,
			close:   db.Close,
		}, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.DataPath, 0o750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := sqlite.Open(filepath.Join(cfg.DataPath, "shorttoken.db"), log.Logger)
		if err != nil {
			return nil, err
		}
		return &StoreHandle{
			Name:    cfg.Backend,
			Links:   db.Links(),
			Invites: db.Invites(),
			ping:    db.Ping,
			close:   db.Close,
		}, nil

	case config.BackendMemory:
		return &StoreHandle{
			Name:    cfg.Backend,
			Links:   memory.NewTable("link", domain.LinkID, domain.LinkToken),
			Invites: memory.NewTable("invite", domain.InviteID, domain.InviteCode, domain.InviteEmail),
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// BadgerLinks declares the link entity and its unique token index.
func BadgerLinks(db *store.Store) *store.Entity[domain.Link] {
	return store.NewEntity(db, "link", LinkPrefix, domain.LinkID).WithFields(domain.LinkToken)
}

// BadgerInvites declares the invite entity with unique code and email indexes.
func BadgerInvites(db *store.Store) *store.Entity[domain.Invite] {
	return store.NewEntity(db, "invite", InvitePrefix, domain.InviteID).
		WithFields(domain.InviteCode, domain.InviteEmail)
}
