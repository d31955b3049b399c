package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ammiranda/category_service/migrations"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var sqliteDialect = dialect{
	rebind: rebindNone,
	insert: func(ctx context.Context, q queryer, c *Category) (int64, error) {
		now := time.Now().UTC()
		result, err := q.ExecContext(ctx,
			`INSERT INTO categories (name, description, left_value, right_value, parent_id, image_id, icon_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.Name, c.Description, c.LeftValue, c.RightValue,
			toNullInt64(c.ParentID), toNullInt64(c.ImageID), toNullInt64(c.IconID),
			now, now,
		)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	},
}

// SQLiteRepository implements Store using SQLite
type SQLiteRepository struct {
	sqlReader
	db     *sql.DB
	dbPath string
	log    zerolog.Logger
}

// NewSQLiteRepository creates a new SQLite repository stored at dbPath
func NewSQLiteRepository(dbPath string, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		dbPath: dbPath,
		log:    log.With().Str("store", "sqlite").Logger(),
	}
}

// Initialize opens the SQLite database and applies migrations
func (r *SQLiteRepository) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(r.dbPath), 0755); err != nil {
		return fmt.Errorf("error creating data directory: %w", err)
	}

	// Immediate transactions take the write lock at BEGIN, so the max right
	// value and the parent row are read under the same lock that covers the
	// range updates.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_foreign_keys=on&_busy_timeout=5000", r.dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("error pinging database: %w", err)
	}

	if err := migrations.RunMigrations(db, migrations.SQLite); err != nil {
		db.Close()
		return err
	}

	r.db = db
	r.sqlReader = sqlReader{q: db, dialect: sqliteDialect}
	r.log.Info().Str("path", r.dbPath).Msg("sqlite store ready")
	return nil
}

// Cleanup closes the database connection
func (r *SQLiteRepository) Cleanup(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// WithTx runs fn inside an immediate transaction
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	return runTx(ctx, tx, sqliteDialect, "", fn)
}
