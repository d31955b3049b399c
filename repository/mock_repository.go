package repository

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockRepository implements Store in memory. It backs the tests and the
// "memory" database driver.
type MockRepository struct {
	mu         sync.RWMutex
	txMu       sync.Mutex
	categories map[int64]*Category
	nextID     int64
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{
		categories: make(map[int64]*Category),
		nextID:     1,
	}
}

// Initialize performs any necessary setup
func (m *MockRepository) Initialize(ctx context.Context) error {
	return nil
}

// Cleanup drops every stored category
func (m *MockRepository) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories = make(map[int64]*Category)
	m.nextID = 1
	return nil
}

// Put stores a category as-is, bypassing the nested-set bookkeeping.
// Tests use it to seed corrupted trees.
func (m *MockRepository) Put(category *Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := category.Clone()
	if c.ID == 0 {
		c.ID = m.nextID
	}
	if c.ID >= m.nextID {
		m.nextID = c.ID + 1
	}
	m.categories[c.ID] = c
}

// WithTx runs fn while holding the transaction lock. Changes made by fn are
// applied to a working copy that replaces the live data only on success.
func (m *MockRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	tx := &mockTx{
		categories: make(map[int64]*Category, len(m.categories)),
		nextID:     m.nextID,
	}
	for id, c := range m.categories {
		tx.categories[id] = c.Clone()
	}
	m.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.categories = tx.categories
	m.nextID = tx.nextID
	m.mu.Unlock()
	return nil
}

// GetCategory retrieves a category by ID
func (m *MockRepository) GetCategory(ctx context.Context, id int64) (*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return getCategory(m.categories, id)
}

// ListCategories returns every category ordered by left value
func (m *MockRepository) ListCategories(ctx context.Context) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterCategories(m.categories, func(*Category) bool { return true }), nil
}

// ListRootCategories returns the categories without a parent
func (m *MockRepository) ListRootCategories(ctx context.Context) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterCategories(m.categories, func(c *Category) bool { return c.ParentID == nil }), nil
}

// ListLeafCategories returns the categories with no descendants
func (m *MockRepository) ListLeafCategories(ctx context.Context) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterCategories(m.categories, (*Category).IsLeaf), nil
}

// ListAncestors returns the categories strictly containing category id
func (m *MockRepository) ListAncestors(ctx context.Context, id int64) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return listAncestors(m.categories, id), nil
}

// ListDescendants returns the categories strictly inside category id
func (m *MockRepository) ListDescendants(ctx context.Context, id int64) ([]*Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return listDescendants(m.categories, id), nil
}

// mockTx is the working copy handed to WithTx callbacks.
type mockTx struct {
	categories map[int64]*Category
	nextID     int64
}

func (t *mockTx) GetCategory(ctx context.Context, id int64) (*Category, error) {
	return getCategory(t.categories, id)
}

func (t *mockTx) ListCategories(ctx context.Context) ([]*Category, error) {
	return filterCategories(t.categories, func(*Category) bool { return true }), nil
}

func (t *mockTx) ListRootCategories(ctx context.Context) ([]*Category, error) {
	return filterCategories(t.categories, func(c *Category) bool { return c.ParentID == nil }), nil
}

func (t *mockTx) ListLeafCategories(ctx context.Context) ([]*Category, error) {
	return filterCategories(t.categories, (*Category).IsLeaf), nil
}

func (t *mockTx) ListAncestors(ctx context.Context, id int64) ([]*Category, error) {
	return listAncestors(t.categories, id), nil
}

func (t *mockTx) ListDescendants(ctx context.Context, id int64) ([]*Category, error) {
	return listDescendants(t.categories, id), nil
}

func (t *mockTx) MaxRightValue(ctx context.Context) (int64, error) {
	var max int64
	for _, c := range t.categories {
		if c.RightValue > max {
			max = c.RightValue
		}
	}
	return max, nil
}

func (t *mockTx) IncrementRightValues(ctx context.Context, threshold, delta int64) error {
	now := time.Now().UTC()
	for _, c := range t.categories {
		if c.RightValue >= threshold {
			c.RightValue += delta
			c.UpdatedAt = now
		}
	}
	return nil
}

func (t *mockTx) IncrementLeftValues(ctx context.Context, threshold, delta int64) error {
	now := time.Now().UTC()
	for _, c := range t.categories {
		if c.LeftValue > threshold {
			c.LeftValue += delta
			c.UpdatedAt = now
		}
	}
	return nil
}

func (t *mockTx) InsertCategory(ctx context.Context, category *Category) (int64, error) {
	if category.Name == "" || category.LeftValue >= category.RightValue {
		return 0, ErrInvalidInput
	}

	c := category.Clone()
	c.ID = t.nextID
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	t.categories[c.ID] = c
	t.nextID++
	return c.ID, nil
}

func getCategory(categories map[int64]*Category, id int64) (*Category, error) {
	c, ok := categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return c.Clone(), nil
}

func listAncestors(categories map[int64]*Category, id int64) []*Category {
	target, ok := categories[id]
	if !ok {
		return []*Category{}
	}
	return filterCategories(categories, func(c *Category) bool { return c.Contains(target) })
}

func listDescendants(categories map[int64]*Category, id int64) []*Category {
	target, ok := categories[id]
	if !ok {
		return []*Category{}
	}
	return filterCategories(categories, target.Contains)
}

// filterCategories copies the matching categories ordered by left value.
func filterCategories(categories map[int64]*Category, keep func(*Category) bool) []*Category {
	result := make([]*Category, 0, len(categories))
	for _, c := range categories {
		if keep(c) {
			result = append(result, c.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LeftValue != result[j].LeftValue {
			return result[i].LeftValue < result[j].LeftValue
		}
		return result[i].ID < result[j].ID
	})
	return result
}
