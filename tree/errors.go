package tree

import (
	"errors"

	"github.com/ammiranda/category_service/repository"
)

var (
	// ErrParentNotFound is returned when a child insertion names a parent that does not exist
	ErrParentNotFound = errors.New("parent category not found")
	// ErrInconsistentTree is returned when the stored intervals and parent links disagree
	ErrInconsistentTree = errors.New("inconsistent category tree")
	// ErrCategoryNotFound is returned when a queried category does not exist
	ErrCategoryNotFound = repository.ErrCategoryNotFound
)
