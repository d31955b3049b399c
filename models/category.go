package models

import (
	"time"

	"github.com/ammiranda/category_service/repository"
)

// Category is the flat JSON shape of a category
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LeftValue   int64     `json:"leftValue"`
	RightValue  int64     `json:"rightValue"`
	ParentID    *int64    `json:"parentId"`
	ImageID     *int64    `json:"imageId"`
	IconID      *int64    `json:"iconId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewCategory maps a stored category to its JSON shape
func NewCategory(c *repository.Category) *Category {
	return &Category{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		LeftValue:   c.LeftValue,
		RightValue:  c.RightValue,
		ParentID:    c.ParentID,
		ImageID:     c.ImageID,
		IconID:      c.IconID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// NewCategories maps a list of stored categories
func NewCategories(categories []*repository.Category) []*Category {
	result := make([]*Category, 0, len(categories))
	for _, c := range categories {
		result = append(result, NewCategory(c))
	}
	return result
}

// CategoryNode represents a single category in the nested tree
type CategoryNode struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	LeftValue   int64           `json:"leftValue"`
	RightValue  int64           `json:"rightValue"`
	ImageID     *int64          `json:"imageId"`
	IconID      *int64          `json:"iconId"`
	Children    []*CategoryNode `json:"children"`
}

// NewCategoryNode creates a tree node without children
func NewCategoryNode(c *repository.Category) *CategoryNode {
	return &CategoryNode{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		LeftValue:   c.LeftValue,
		RightValue:  c.RightValue,
		ImageID:     c.ImageID,
		IconID:      c.IconID,
		Children:    make([]*CategoryNode, 0),
	}
}

// AddChild adds a child node to the current node
func (n *CategoryNode) AddChild(child *CategoryNode) {
	n.Children = append(n.Children, child)
}

// Pagination describes one page of root categories
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// PaginatedTreeResponse is one page of the category forest
type PaginatedTreeResponse struct {
	Data       []*CategoryNode `json:"data"`
	Pagination Pagination      `json:"pagination"`
}

// Paginate slices the forest into the requested page of roots
func Paginate(roots []*CategoryNode, page, pageSize int) *PaginatedTreeResponse {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := int64(len(roots))
	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)

	// Pages past the end are empty; checking first keeps the offset from overflowing.
	data := make([]*CategoryNode, 0)
	if page >= 1 && int64(page-1) < totalPages {
		start := (page - 1) * pageSize
		end := start + pageSize
		if end > len(roots) {
			end = len(roots)
		}
		data = append(data, roots[start:end]...)
	}

	return &PaginatedTreeResponse{
		Data: data,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    int64(page) < totalPages,
			HasPrev:    page > 1,
		},
	}
}
