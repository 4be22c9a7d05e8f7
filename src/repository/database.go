package repository

import (
	"embed"
	"errors"
	"fmt"
	"net/http"

	cfg "storefront/src/configuration"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to postgres. It returns nil without error when no DSN is set.
func Open(config *cfg.Properties) (*sqlx.DB, error) {
	if config.Database.DSN == "" {
		return nil, nil
	}
	db, err := sqlx.Connect("postgres", config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(config.Database.MaxOpenConns)
	return db, nil
}

func migrationSource() (source.Driver, error) {
	return httpfs.New(http.FS(migrations), "migrations")
}

// Migrate applies the embedded migrations that dsn has not seen yet.
func Migrate(dsn string) error {
	src, err := migrationSource()
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	mig, err := migrate.NewWithSourceInstance("embed", src, dsn)
	if err != nil {
		src.Close()
		return fmt.Errorf("prepare migrations: %w", err)
	}
	defer mig.Close()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// NewCatalogStore picks the catalog backend the same way NewAuthDataBase does.
func NewCatalogStore(config *cfg.Properties, db *sqlx.DB) (CatalogStore, error) {
	if db != nil {
		return NewPostgresCatalog(db), nil
	}
	if config.Database.SeedFile == "" {
		return NewMemoryCatalog(Catalog{}), nil
	}
	catalog, err := LoadCatalogFile(config.Database.SeedFile)
	if err != nil {
		return nil, err
	}
	return NewMemoryCatalog(catalog), nil
}
