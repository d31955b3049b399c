package models

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// CreateCategoryRequest represents the request body for creating a category
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"required,min=1,max=1000"`
	ImageID     *int64 `json:"imageId,omitempty" validate:"omitempty,gt=0"`
	IconID      *int64 `json:"iconId,omitempty" validate:"omitempty,gt=0"`
	ParentID    *int64 `json:"parentId,omitempty" validate:"omitempty,gt=0"`
}

// Validate validates the create category request
func (r *CreateCategoryRequest) Validate() error {
	return getValidator().Struct(r)
}

// PageRequest holds the pagination query parameters of the tree endpoint
type PageRequest struct {
	Page     int `form:"page"`
	PageSize int `form:"pageSize"`
}

// Normalize replaces missing values with the defaults and caps the page size
func (p *PageRequest) Normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
}

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPage         = 1_000_000
)
