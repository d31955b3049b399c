package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ammiranda/category_service/repository"
)

func parentOf(id int64) *int64 {
	return &id
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name       string
		categories []*repository.Category
		wantErr    bool
	}{
		{
			name:       "empty forest",
			categories: nil,
		},
		{
			name: "well formed forest",
			categories: []*repository.Category{
				{ID: 1, LeftValue: 1, RightValue: 8},
				{ID: 2, LeftValue: 2, RightValue: 5, ParentID: parentOf(1)},
				{ID: 3, LeftValue: 3, RightValue: 4, ParentID: parentOf(2)},
				{ID: 4, LeftValue: 6, RightValue: 7, ParentID: parentOf(1)},
				{ID: 5, LeftValue: 9, RightValue: 10},
			},
		},
		{
			name: "gaps between intervals are allowed",
			categories: []*repository.Category{
				{ID: 1, LeftValue: 1, RightValue: 10},
				{ID: 2, LeftValue: 4, RightValue: 5, ParentID: parentOf(1)},
				{ID: 3, LeftValue: 20, RightValue: 21},
			},
		},
		{
			name: "empty interval",
			categories: []*repository.Category{
				{ID: 1, LeftValue: 3, RightValue: 3},
			},
			wantErr: true,
		},
		{
			name: "shared boundary",
			categories: []*repository.Category{
				{ID: 1, LeftValue: 1, RightValue: 4},
				{ID: 2, LeftValue: 4, RightValue: 5},
			},
			wantErr: true,
		},
		{
			name: "partial overlap",
			categories: []*repository.Category{
				{ID: 1, LeftValue: 1, RightValue: 4},
				{ID: 2, LeftValue: 2, RightValue: 5, ParentID: parentOf(1)},
			},
			wantErr: true,
		},
		{
			name: "parent link skips a level",
			categories: []*repository.Category{
				{ID: 1, LeftValue: 1, RightValue: 6},
				{ID: 2, LeftValue: 2, RightValue: 5, ParentID: parentOf(1)},
				{ID: 3, LeftValue: 3, RightValue: 4, ParentID: parentOf(1)},
			},
			wantErr: true,
		},
		{
			name: "root nested inside another category",
			categories: []*repository.Category{
				{ID: 1, LeftValue: 1, RightValue: 4},
				{ID: 2, LeftValue: 2, RightValue: 3},
			},
			wantErr: true,
		},
		{
			name: "parent link without enclosing interval",
			categories: []*repository.Category{
				{ID: 1, LeftValue: 1, RightValue: 2, ParentID: parentOf(99)},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.categories)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInconsistentTree)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyDoesNotReorderInput(t *testing.T) {
	categories := []*repository.Category{
		{ID: 2, LeftValue: 3, RightValue: 4},
		{ID: 1, LeftValue: 1, RightValue: 2},
	}
	assert.NoError(t, Verify(categories))
	assert.Equal(t, int64(2), categories[0].ID)
}
