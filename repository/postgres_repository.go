package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ammiranda/category_service/config"
	"github.com/ammiranda/category_service/migrations"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// lockCategories blocks other writers for the rest of the transaction while
// still letting plain SELECTs through.
const lockCategories = "LOCK TABLE categories IN EXCLUSIVE MODE"

var postgresDialect = dialect{
	rebind: rebindDollar,
	insert: func(ctx context.Context, q queryer, c *Category) (int64, error) {
		now := time.Now().UTC()
		var id int64
		err := q.QueryRowContext(ctx,
			`INSERT INTO categories (name, description, left_value, right_value, parent_id, image_id, icon_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			c.Name, c.Description, c.LeftValue, c.RightValue,
			toNullInt64(c.ParentID), toNullInt64(c.ImageID), toNullInt64(c.IconID),
			now, now,
		).Scan(&id)
		return id, err
	},
}

// PostgresRepository implements Store using PostgreSQL
type PostgresRepository struct {
	sqlReader
	db     *sql.DB
	config *config.DatabaseConfig
	log    zerolog.Logger
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(cfg *config.DatabaseConfig, log zerolog.Logger) *PostgresRepository {
	return &PostgresRepository{
		config: cfg,
		log:    log.With().Str("store", "postgres").Logger(),
	}
}

// NewPostgresRepositoryWithDB creates a repository around an open connection.
// Migrations are not applied.
func NewPostgresRepositoryWithDB(db *sql.DB, log zerolog.Logger) *PostgresRepository {
	r := &PostgresRepository{
		db:  db,
		log: log.With().Str("store", "postgres").Logger(),
	}
	r.sqlReader = sqlReader{q: db, dialect: postgresDialect}
	return r
}

// Initialize connects to PostgreSQL and applies migrations
func (r *PostgresRepository) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", r.config.DSN())
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error pinging database: %w", err)
	}

	if err := migrations.RunMigrations(db, migrations.Postgres); err != nil {
		db.Close()
		return err
	}

	r.db = db
	r.sqlReader = sqlReader{q: db, dialect: postgresDialect}
	r.log.Info().Str("host", r.config.Host).Str("database", r.config.DBName).Msg("postgres store ready")
	return nil
}

// Cleanup closes the database connection
func (r *PostgresRepository) Cleanup(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithTx runs fn inside a transaction holding an exclusive lock on the
// categories table, so concurrent inserts are applied one after another.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	return runTx(ctx, tx, postgresDialect, lockCategories, fn)
}
