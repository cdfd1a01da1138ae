// Package pgstore implements the versioned record store on PostgreSQL.
//
// It mirrors the SQLite backend's semantics but leans on Postgres
// machinery where it helps: row locks (SELECT ... FOR UPDATE) serialize
// racing writers on the same subject, and the partial unique index on
// open versions backstops anything the lock protocol misses. Schema
// changes ship as embedded golang-migrate migrations.
package pgstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sentinelMicros is temporal.Sentinel in unix microseconds, the value
// the partial unique index keys on.
const sentinelMicros = 253402300799000000

// Store is a PostgreSQL-backed temporal store.
type Store struct {
	db  *sqlx.DB
	ids temporal.IDGenerator
	log zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the version ID generator. Tests use a
// deterministic sequence generator.
func WithIDGenerator(g temporal.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// Open connects to the database at dsn and runs pending migrations.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s := &Store{
		db:  db,
		ids: temporal.UUIDv7Generator{},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading migration source: %w", err)
	}
	driver, err := pgmigrate.WithInstance(db, &pgmigrate.Config{})
	if err != nil {
		return fmt.Errorf("preparing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// versionRow is the sqlx scan target for the versions table.
type versionRow struct {
	ID        string `db:"id"`
	SubjectID string `db:"subject_id"`
	Kind      string `db:"kind"`
	Payload   string `db:"payload"`
	ValidFrom int64  `db:"valid_from"`
	ValidTo   int64  `db:"valid_to"`
}

func (r versionRow) toVersion() temporal.Version {
	return temporal.Version{
		ID:        r.ID,
		SubjectID: r.SubjectID,
		Kind:      r.Kind,
		Payload:   []byte(r.Payload),
		ValidFrom: fromMicros(r.ValidFrom),
		ValidTo:   fromMicros(r.ValidTo),
	}
}

func micros(t time.Time) int64 {
	if temporal.IsSentinel(t) {
		return sentinelMicros
	}
	return t.UTC().Truncate(time.Microsecond).UnixMicro()
}

func fromMicros(us int64) time.Time {
	if us == sentinelMicros {
		return temporal.Sentinel
	}
	return time.UnixMicro(us).UTC()
}

var (
	_ temporal.Store   = (*Store)(nil)
	_ temporal.Auditor = (*Store)(nil)
)
