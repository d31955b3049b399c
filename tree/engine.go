// Package tree maintains the category hierarchy as a nested-set model.
//
// Each category owns an interval [left, right]. A category is an ancestor of
// another exactly when its interval strictly contains the other's, and a leaf
// exactly when right == left + 1. Inserting a child opens a two-wide gap at
// the parent's right boundary by shifting every boundary at or after it.
package tree

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ammiranda/category_service/models"
	"github.com/ammiranda/category_service/repository"
)

// NewCategory holds the attributes of a category to insert
type NewCategory struct {
	Name        string
	Description string
	ImageID     *int64
	IconID      *int64
	ParentID    *int64 // nil inserts a new root
}

// Engine owns the nested-set numbering of the categories in a store.
// It keeps no state between calls.
type Engine struct {
	store repository.Store
	log   zerolog.Logger
}

// NewEngine creates an engine backed by store
func NewEngine(store repository.Store, log zerolog.Logger) *Engine {
	return &Engine{
		store: store,
		log:   log.With().Str("component", "category_tree").Logger(),
	}
}

// Insert adds a category as a new root or as the last child of ParentID.
// The interval computation, the renumbering of existing categories and the
// new row are written in one transaction.
func (e *Engine) Insert(ctx context.Context, in NewCategory) (*repository.Category, error) {
	var created *repository.Category

	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		category := &repository.Category{
			Name:        in.Name,
			Description: in.Description,
			ImageID:     in.ImageID,
			IconID:      in.IconID,
		}

		if in.ParentID == nil {
			if err := placeRoot(ctx, tx, category); err != nil {
				return err
			}
		} else {
			if err := placeChild(ctx, tx, category, *in.ParentID); err != nil {
				return err
			}
		}

		id, err := tx.InsertCategory(ctx, category)
		if err != nil {
			return err
		}

		// Re-read so the caller sees store-assigned fields.
		created, err = tx.GetCategory(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	event := e.log.Info().
		Int64("id", created.ID).
		Str("name", created.Name).
		Int64("left", created.LeftValue).
		Int64("right", created.RightValue)
	if created.ParentID != nil {
		event.Int64("parent_id", *created.ParentID).Msg("category created as child")
	} else {
		event.Msg("category created as root")
	}

	return created, nil
}

// placeRoot puts category to the right of every existing interval.
func placeRoot(ctx context.Context, tx repository.Tx, category *repository.Category) error {
	maxRight, err := tx.MaxRightValue(ctx)
	if err != nil {
		return err
	}
	category.LeftValue = maxRight + 1
	category.RightValue = maxRight + 2
	return nil
}

// placeChild opens a gap at the parent's right boundary and puts category in it.
func placeChild(ctx context.Context, tx repository.Tx, category *repository.Category, parentID int64) error {
	parent, err := tx.GetCategory(ctx, parentID)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return fmt.Errorf("%w: %d", ErrParentNotFound, parentID)
		}
		return err
	}

	// The parent's own right boundary is included, so it grows around the gap.
	boundary := parent.RightValue
	if err := tx.IncrementRightValues(ctx, boundary, 2); err != nil {
		return err
	}
	if err := tx.IncrementLeftValues(ctx, boundary, 2); err != nil {
		return err
	}

	category.LeftValue = boundary
	category.RightValue = boundary + 1
	category.ParentID = &parent.ID
	return nil
}

// GetCategory returns a single category
func (e *Engine) GetCategory(ctx context.Context, id int64) (*repository.Category, error) {
	return e.store.GetCategory(ctx, id)
}

// ListRoots returns the categories without a parent, ordered by left value
func (e *Engine) ListRoots(ctx context.Context) ([]*repository.Category, error) {
	return e.store.ListRootCategories(ctx)
}

// ListLeaves returns the categories without children, ordered by left value
func (e *Engine) ListLeaves(ctx context.Context) ([]*repository.Category, error) {
	return e.store.ListLeafCategories(ctx)
}

// GetFullTree returns every root with its descendants nested under it.
// Roots and children are ordered by left value. The snapshot is verified
// first and ErrInconsistentTree is returned if it breaks any invariant.
func (e *Engine) GetFullTree(ctx context.Context) ([]*models.CategoryNode, error) {
	categories, err := e.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	if err := Verify(categories); err != nil {
		e.log.Error().Err(err).Msg("category tree failed verification")
		return nil, err
	}

	return BuildForest(categories), nil
}

// BuildForest nests categories under their parents. Categories whose parent
// is missing from the input are dropped.
func BuildForest(categories []*repository.Category) []*models.CategoryNode {
	sorted := make([]*repository.Category, len(categories))
	copy(sorted, categories)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LeftValue < sorted[j].LeftValue
	})

	nodes := make(map[int64]*models.CategoryNode, len(sorted))
	for _, c := range sorted {
		nodes[c.ID] = models.NewCategoryNode(c)
	}

	roots := make([]*models.CategoryNode, 0)
	for _, c := range sorted {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*c.ParentID]; ok {
			parent.AddChild(node)
		}
	}
	return roots
}

// FindAncestors returns every category enclosing id, nearest first
func (e *Engine) FindAncestors(ctx context.Context, id int64) ([]*repository.Category, error) {
	if _, err := e.store.GetCategory(ctx, id); err != nil {
		return nil, err
	}

	ancestors, err := e.store.ListAncestors(ctx, id)
	if err != nil {
		return nil, err
	}

	sort.Slice(ancestors, func(i, j int) bool {
		return ancestors[i].Span() < ancestors[j].Span()
	})
	return ancestors, nil
}

// FindSubtree returns id followed by all of its descendants in left order
func (e *Engine) FindSubtree(ctx context.Context, id int64) ([]*repository.Category, error) {
	root, err := e.store.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	descendants, err := e.store.ListDescendants(ctx, id)
	if err != nil {
		return nil, err
	}

	return append([]*repository.Category{root}, descendants...), nil
}

// Verify checks the invariants over everything currently stored
func (e *Engine) Verify(ctx context.Context) error {
	categories, err := e.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	return Verify(categories)
}
