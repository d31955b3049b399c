package repository

import (
	"context"
	"errors"
	"time"
)

// Category is a single row of the nested-set category table.
type Category struct {
	ID          int64     // Store-assigned identifier
	Name        string    // Display name
	Description string    // Free-form description
	LeftValue   int64     // Left boundary of the nested-set interval
	RightValue  int64     // Right boundary of the nested-set interval
	ParentID    *int64    // Immediate parent, nil for roots
	ImageID     *int64    // Opaque reference to an uploaded image
	IconID      *int64    // Opaque reference to an uploaded icon
	CreatedAt   time.Time // Set by the store on insert
	UpdatedAt   time.Time // Set by the store on every write
}

// IsLeaf reports whether the category has no descendants.
func (c *Category) IsLeaf() bool {
	return c.RightValue == c.LeftValue+1
}

// Contains reports whether other lies strictly inside c's interval.
func (c *Category) Contains(other *Category) bool {
	return c.LeftValue < other.LeftValue && other.RightValue < c.RightValue
}

// Span is the width of the category's interval.
func (c *Category) Span() int64 {
	return c.RightValue - c.LeftValue
}

// Clone returns a deep copy of the category.
func (c *Category) Clone() *Category {
	cp := *c
	cp.ParentID = cloneID(c.ParentID)
	cp.ImageID = cloneID(c.ImageID)
	cp.IconID = cloneID(c.IconID)
	return &cp
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// Reader groups the read-only queries available both inside and outside
// a write transaction. Every listing is ordered by left value.
type Reader interface {
	// GetCategory retrieves a category by its ID.
	// Returns ErrCategoryNotFound if no category exists with the given ID.
	GetCategory(ctx context.Context, id int64) (*Category, error)

	// ListCategories returns every category.
	ListCategories(ctx context.Context) ([]*Category, error)

	// ListRootCategories returns the categories without a parent.
	ListRootCategories(ctx context.Context) ([]*Category, error)

	// ListLeafCategories returns the categories whose right value is left value + 1.
	ListLeafCategories(ctx context.Context) ([]*Category, error)

	// ListAncestors returns the categories whose interval strictly contains
	// the interval of the given category. Empty for roots and unknown IDs.
	ListAncestors(ctx context.Context, id int64) ([]*Category, error)

	// ListDescendants returns the categories whose interval lies strictly
	// inside the interval of the given category. Empty for leaves and unknown IDs.
	ListDescendants(ctx context.Context, id int64) ([]*Category, error)
}

// Tx is a write transaction against the category table.
type Tx interface {
	Reader

	// MaxRightValue returns the largest right value in the table, 0 when it is empty.
	MaxRightValue(ctx context.Context) (int64, error)

	// IncrementRightValues adds delta to the right value of every row with
	// right value >= threshold.
	IncrementRightValues(ctx context.Context, threshold, delta int64) error

	// IncrementLeftValues adds delta to the left value of every row with
	// left value > threshold.
	IncrementLeftValues(ctx context.Context, threshold, delta int64) error

	// InsertCategory writes a new row and returns its assigned ID.
	InsertCategory(ctx context.Context, category *Category) (int64, error)
}

// Store defines the persistence contract of the category tree.
type Store interface {
	Reader

	// Initialize performs any necessary setup for the store.
	// This may include opening connections and applying migrations.
	Initialize(ctx context.Context) error

	// Cleanup releases the resources held by the store.
	Cleanup(ctx context.Context) error

	// WithTx runs fn inside a single write transaction. The transaction
	// commits when fn returns nil and rolls back otherwise. Write
	// transactions are serialized against each other, so fn always sees
	// the latest committed interval numbering.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Common errors
var (
	// ErrCategoryNotFound is returned when a requested category does not exist
	ErrCategoryNotFound = errors.New("category not found")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
)
