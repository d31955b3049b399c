package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const categoryColumns = "c.id, c.name, c.description, c.left_value, c.right_value, c.parent_id, c.image_id, c.icon_id, c.created_at, c.updated_at"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect captures what differs between the SQL backends.
type dialect struct {
	// rebind rewrites '?' placeholders into the driver's syntax
	rebind func(query string) string
	// insert writes a category row and returns its ID
	insert func(ctx context.Context, q queryer, c *Category) (int64, error)
}

// sqlReader implements Reader on top of a database or a transaction.
type sqlReader struct {
	q       queryer
	dialect dialect
}

// GetCategory retrieves a category by ID
func (r *sqlReader) GetCategory(ctx context.Context, id int64) (*Category, error) {
	row := r.q.QueryRowContext(ctx,
		r.dialect.rebind("SELECT "+categoryColumns+" FROM categories c WHERE c.id = ?"),
		id,
	)
	c, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("error getting category: %w", err)
	}
	return c, nil
}

// ListCategories returns every category ordered by left value
func (r *sqlReader) ListCategories(ctx context.Context) ([]*Category, error) {
	return r.list(ctx, "")
}

// ListRootCategories returns the categories without a parent
func (r *sqlReader) ListRootCategories(ctx context.Context) ([]*Category, error) {
	return r.list(ctx, "WHERE c.parent_id IS NULL")
}

// ListLeafCategories returns the categories with no descendants
func (r *sqlReader) ListLeafCategories(ctx context.Context) ([]*Category, error) {
	return r.list(ctx, "WHERE c.right_value = c.left_value + 1")
}

// ListAncestors returns the categories whose interval strictly contains the
// interval of category id, read in a single statement.
func (r *sqlReader) ListAncestors(ctx context.Context, id int64) ([]*Category, error) {
	return r.list(ctx,
		"JOIN categories t ON t.id = ? WHERE c.left_value < t.left_value AND c.right_value > t.right_value",
		id,
	)
}

// ListDescendants returns the categories whose interval lies strictly inside
// the interval of category id, read in a single statement.
func (r *sqlReader) ListDescendants(ctx context.Context, id int64) ([]*Category, error) {
	return r.list(ctx,
		"JOIN categories t ON t.id = ? WHERE c.left_value > t.left_value AND c.right_value < t.right_value",
		id,
	)
}

func (r *sqlReader) list(ctx context.Context, clause string, args ...any) ([]*Category, error) {
	query := "SELECT " + categoryColumns + " FROM categories c"
	if clause != "" {
		query += " " + clause
	}
	query += " ORDER BY c.left_value, c.id"

	rows, err := r.q.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error listing categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

// sqlTx implements Tx on top of a *sql.Tx.
type sqlTx struct {
	sqlReader
}

func (t *sqlTx) MaxRightValue(ctx context.Context) (int64, error) {
	var max int64
	err := t.q.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(right_value), 0) FROM categories",
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("error reading max right value: %w", err)
	}
	return max, nil
}

func (t *sqlTx) IncrementRightValues(ctx context.Context, threshold, delta int64) error {
	_, err := t.q.ExecContext(ctx,
		t.dialect.rebind("UPDATE categories SET right_value = right_value + ?, updated_at = ? WHERE right_value >= ?"),
		delta, time.Now().UTC(), threshold,
	)
	if err != nil {
		return fmt.Errorf("error shifting right values: %w", err)
	}
	return nil
}

func (t *sqlTx) IncrementLeftValues(ctx context.Context, threshold, delta int64) error {
	_, err := t.q.ExecContext(ctx,
		t.dialect.rebind("UPDATE categories SET left_value = left_value + ?, updated_at = ? WHERE left_value > ?"),
		delta, time.Now().UTC(), threshold,
	)
	if err != nil {
		return fmt.Errorf("error shifting left values: %w", err)
	}
	return nil
}

func (t *sqlTx) InsertCategory(ctx context.Context, category *Category) (int64, error) {
	if category.Name == "" || category.LeftValue >= category.RightValue {
		return 0, ErrInvalidInput
	}
	id, err := t.dialect.insert(ctx, t.q, category)
	if err != nil {
		return 0, fmt.Errorf("error creating category: %w", err)
	}
	return id, nil
}

// runTx executes prepare (if any) and fn inside tx. The transaction is rolled
// back unless fn and the commit both succeed.
func runTx(ctx context.Context, tx *sql.Tx, d dialect, prepare string, fn func(tx Tx) error) error {
	defer tx.Rollback()

	if prepare != "" {
		if _, err := tx.ExecContext(ctx, prepare); err != nil {
			return fmt.Errorf("error preparing transaction: %w", err)
		}
	}

	if err := fn(&sqlTx{sqlReader{q: tx, dialect: d}}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*Category, error) {
	var c Category
	var parentID, imageID, iconID sql.NullInt64
	err := row.Scan(
		&c.ID, &c.Name, &c.Description,
		&c.LeftValue, &c.RightValue,
		&parentID, &imageID, &iconID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ParentID = fromNullInt64(parentID)
	c.ImageID = fromNullInt64(imageID)
	c.IconID = fromNullInt64(iconID)
	return &c, nil
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func toNullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// rebindDollar rewrites '?' placeholders into $1, $2, ...
func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rebindNone(query string) string {
	return query
}
