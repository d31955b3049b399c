package tree

import (
	"fmt"
	"sort"

	"github.com/ammiranda/category_service/repository"
)

// Verify checks the nested-set invariants over a complete snapshot of the
// category table:
//
//   - every interval is non-empty (left < right)
//   - no two categories share a boundary value
//   - any two intervals are disjoint or strictly nested
//   - every parent link names the tightest enclosing interval, and
//     categories without a parent are not enclosed by anything
//
// It sweeps the categories in left order with a stack of open intervals, so
// the top of the stack is always the tightest interval that can still
// enclose the next category.
func Verify(categories []*repository.Category) error {
	sorted := make([]*repository.Category, len(categories))
	copy(sorted, categories)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LeftValue < sorted[j].LeftValue
	})

	owners := make(map[int64]int64, 2*len(sorted))
	for _, c := range sorted {
		if c.LeftValue >= c.RightValue {
			return fmt.Errorf("%w: category %d has empty interval [%d, %d]",
				ErrInconsistentTree, c.ID, c.LeftValue, c.RightValue)
		}
		for _, boundary := range []int64{c.LeftValue, c.RightValue} {
			if owner, taken := owners[boundary]; taken {
				return fmt.Errorf("%w: categories %d and %d share boundary %d",
					ErrInconsistentTree, owner, c.ID, boundary)
			}
			owners[boundary] = c.ID
		}
	}

	stack := make([]*repository.Category, 0, 16)
	for _, c := range sorted {
		for len(stack) > 0 && stack[len(stack)-1].RightValue < c.LeftValue {
			stack = stack[:len(stack)-1]
		}

		var enclosing *repository.Category
		if len(stack) > 0 {
			enclosing = stack[len(stack)-1]
			if c.RightValue > enclosing.RightValue {
				return fmt.Errorf("%w: categories %d and %d partially overlap",
					ErrInconsistentTree, enclosing.ID, c.ID)
			}
		}

		switch {
		case enclosing == nil && c.ParentID != nil:
			return fmt.Errorf("%w: category %d links to parent %d but no interval encloses it",
				ErrInconsistentTree, c.ID, *c.ParentID)
		case enclosing != nil && c.ParentID == nil:
			return fmt.Errorf("%w: root category %d lies inside category %d",
				ErrInconsistentTree, c.ID, enclosing.ID)
		case enclosing != nil && *c.ParentID != enclosing.ID:
			return fmt.Errorf("%w: category %d links to parent %d but is directly inside category %d",
				ErrInconsistentTree, c.ID, *c.ParentID, enclosing.ID)
		}

		stack = append(stack, c)
	}

	return nil
}
