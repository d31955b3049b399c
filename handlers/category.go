package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/ammiranda/category_service/cache"
	"github.com/ammiranda/category_service/models"
	"github.com/ammiranda/category_service/repository"
	"github.com/ammiranda/category_service/tree"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ErrInvalidID is returned when a path segment is not a positive category ID
var ErrInvalidID = errors.New("invalid category id")

// CategoryHandler handles category-related HTTP requests
type CategoryHandler struct {
	engine *tree.Engine
	log    zerolog.Logger
}

// NewCategoryHandler creates a new CategoryHandler instance
func NewCategoryHandler(engine *tree.Engine, log zerolog.Logger) *CategoryHandler {
	return &CategoryHandler{
		engine: engine,
		log:    log,
	}
}

// RegisterRoutes mounts the category routes under /api/categories
func (h *CategoryHandler) RegisterRoutes(r gin.IRouter) {
	categories := r.Group("/api/categories")
	{
		categories.POST("", h.CreateCategory)
		categories.GET("/roots", h.ListRoots)
		categories.GET("/leaves", h.ListLeaves)
		categories.GET("/tree", h.GetTree)
		categories.GET("/integrity", h.CheckIntegrity)
		categories.GET("/:id", h.GetCategory)
		categories.GET("/:id/ancestors", h.GetAncestors)
		categories.GET("/:id/subtree", h.GetSubtree)
	}
}

// StatusFor maps an engine error to an HTTP status code
func StatusFor(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, tree.ErrParentNotFound), errors.Is(err, repository.ErrCategoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidInput), errors.Is(err, ErrInvalidID), errors.As(err, &validationErrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// TreePage returns one page of the category forest, reading through the tree cache
func TreePage(ctx context.Context, engine *tree.Engine, req models.PageRequest) (*models.PaginatedTreeResponse, error) {
	req.Normalize()

	if cached, found := cache.GetPaginatedTree(req.Page, req.PageSize); found {
		return cached, nil
	}

	gen := cache.Generation()
	roots, err := engine.GetFullTree(ctx)
	if err != nil {
		return nil, err
	}

	response := models.Paginate(roots, req.Page, req.PageSize)
	// Only pages that hold data are cached, so the key space stays bounded
	// by the number of roots.
	if len(response.Data) > 0 {
		cache.SetPaginatedTreeAt(gen, req.Page, req.PageSize, response)
	}
	return response, nil
}

// CreateFromRequest validates req and inserts the category it describes.
// The tree cache is invalidated after a successful insert.
func CreateFromRequest(ctx context.Context, engine *tree.Engine, req *models.CreateCategoryRequest) (*repository.Category, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	created, err := engine.Insert(ctx, tree.NewCategory{
		Name:        req.Name,
		Description: req.Description,
		ImageID:     req.ImageID,
		IconID:      req.IconID,
		ParentID:    req.ParentID,
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateCache()
	return created, nil
}

// ParseID parses a category ID path segment
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

func (h *CategoryHandler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// CreateCategory creates a new root or child category
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := CreateFromRequest(c.Request.Context(), h.engine, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.NewCategory(created))
}

// ListRoots returns every root category
func (h *CategoryHandler) ListRoots(c *gin.Context) {
	roots, err := h.engine.ListRoots(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewCategories(roots))
}

// ListLeaves returns every category without children
func (h *CategoryHandler) ListLeaves(c *gin.Context) {
	leaves, err := h.engine.ListLeaves(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewCategories(leaves))
}

// GetTree returns a page of root categories with their descendants nested
func (h *CategoryHandler) GetTree(c *gin.Context) {
	var req models.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := TreePage(c.Request.Context(), h.engine, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// GetCategory returns a single category
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id, err := ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	category, err := h.engine.GetCategory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewCategory(category))
}

// GetAncestors returns the ancestors of a category, nearest first
func (h *CategoryHandler) GetAncestors(c *gin.Context) {
	id, err := ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	ancestors, err := h.engine.FindAncestors(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewCategories(ancestors))
}

// GetSubtree returns a category followed by all of its descendants
func (h *CategoryHandler) GetSubtree(c *gin.Context) {
	id, err := ParseID(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	subtree, err := h.engine.FindSubtree(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewCategories(subtree))
}

// CheckIntegrity verifies the nested-set invariants over the stored tree
func (h *CategoryHandler) CheckIntegrity(c *gin.Context) {
	if err := h.engine.Verify(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("integrity check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
