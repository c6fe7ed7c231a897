package store

import (
	"context"
	"fmt"

	"qrattend/internal/attendance"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMongo    = "mongo"
)

// Backend is a repository that owns a connection.
type Backend interface {
	attendance.Repository
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	DatabaseURL   string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// Open connects the configured backend. Connection failures are returned as
// is; there is no fallback to another backend.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendPostgres:
		db, err := NewDB(ctx, opts.DatabaseURL)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		pg, err := NewPostgres(ctx, db.Client)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return pg, nil
	case BackendSQLite:
		lite, err := NewSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return lite, nil
	case BackendMongo:
		m, err := NewMongo(ctx, opts.MongoURI, opts.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
