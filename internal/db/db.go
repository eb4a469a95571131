// Package db opens the configured storage backend and hands out the
// task, actor and event stores that live on it.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // SQLite driver

	"tasking/internal/config"
	"tasking/pkg/actor"
	"tasking/pkg/eventgraph"
	"tasking/pkg/task"
)

// Connect opens a PostgreSQL pool and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// OpenSQL opens a database/sql handle for the sqlite or mysql driver.
func OpenSQL(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s %s: %w", driver, dsn, err)
	}
	if driver == config.DriverSQLite {
		db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Stores bundles the three stores of one backend.
type Stores struct {
	Tasks  task.Store
	Actors actor.Store
	Events eventgraph.EventStore
	close  func()
}

// Close releases the backend's connections.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// EnsureTables creates every table the stores need.
func (s *Stores) EnsureTables(ctx context.Context) error {
	if err := s.Tasks.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure tasks table: %w", err)
	}
	if err := s.Actors.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure actors table: %w", err)
	}
	if err := s.Events.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure events table: %w", err)
	}
	return nil
}

// Open builds the stores for cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return &Stores{
			Tasks:  task.NewMemStore(),
			Actors: actor.NewMemStore(),
			Events: eventgraph.NewMemStore(),
		}, nil

	case config.DriverPostgres:
		pool, err := Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Tasks:  task.NewPgStore(pool),
			Actors: actor.NewPgStore(pool),
			Events: eventgraph.NewPgStore(pool),
			close:  pool.Close,
		}, nil

	case config.DriverSQLite, config.DriverMySQL:
		sqlDB, err := OpenSQL(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		stores, err := sqlStores(sqlDB, cfg.Driver)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		return stores, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func sqlStores(sqlDB *sql.DB, driver string) (*Stores, error) {
	tasks, err := task.NewSQLStore(sqlDB, driver)
	if err != nil {
		return nil, err
	}
	actors, err := actor.NewSQLStore(sqlDB, driver)
	if err != nil {
		return nil, err
	}
	events, err := eventgraph.NewSQLStore(sqlDB, driver)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Tasks:  tasks,
		Actors: actors,
		Events: events,
		close:  func() { sqlDB.Close() },
	}, nil
}
