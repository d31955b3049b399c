package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammiranda/category_service/cache"
	"github.com/ammiranda/category_service/models"
	"github.com/ammiranda/category_service/repository"
	"github.com/ammiranda/category_service/tree"
)

type testEnv struct {
	repo   *repository.MockRepository
	cache  *cache.MockCache
	router *gin.Engine
}

func setupTest(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	// Create mock repository
	repo := repository.NewMockRepository()
	require.NoError(t, repo.Initialize(context.Background()))

	// Install a mock cache as the global provider
	mockCache := cache.NewMockCache()
	require.NoError(t, cache.SetProvider(mockCache))

	engine := tree.NewEngine(repo, zerolog.Nop())
	router := NewRouter(NewCategoryHandler(engine, zerolog.Nop()), zerolog.Nop())

	t.Cleanup(func() {
		if err := repo.Cleanup(context.Background()); err != nil {
			t.Errorf("Failed to cleanup repository: %v", err)
		}
		cache.ResetProvider()
	})

	return &testEnv{repo: repo, cache: mockCache, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) create(t *testing.T, name string, parentID *int64) models.Category {
	t.Helper()
	body := map[string]interface{}{"name": name, "description": name + " description"}
	if parentID != nil {
		body["parentId"] = *parentID
	}
	w := e.do(t, http.MethodPost, "/api/categories", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []models.Category {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list []models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	return list
}

func listNames(list []models.Category) []string {
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Name)
	}
	return names
}

func TestCreateCategory(t *testing.T) {
	env := setupTest(t)

	electronics := env.create(t, "Electronics", nil)
	assert.Equal(t, int64(1), electronics.LeftValue)
	assert.Equal(t, int64(2), electronics.RightValue)
	assert.Nil(t, electronics.ParentID)

	phones := env.create(t, "Phones", &electronics.ID)
	assert.Equal(t, int64(2), phones.LeftValue)
	assert.Equal(t, int64(3), phones.RightValue)
	require.NotNil(t, phones.ParentID)
	assert.Equal(t, electronics.ID, *phones.ParentID)

	_, _, invalidate, _, _ := env.cache.GetCallCounts()
	assert.Equal(t, 2, invalidate, "every create should invalidate the tree cache")
}

func TestCreateCategoryValidation(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing name", map[string]interface{}{"description": "d"}},
		{"missing description", map[string]interface{}{"name": "n"}},
		{"name too long", map[string]interface{}{"name": string(bytes.Repeat([]byte("x"), 101)), "description": "d"}},
		{"zero parent", map[string]interface{}{"name": "n", "description": "d", "parentId": 0}},
		{"negative image", map[string]interface{}{"name": "n", "description": "d", "imageId": -1}},
		{"not json", "plain string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/categories", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	all, err := env.repo.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateCategoryUnknownParent(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodPost, "/api/categories", map[string]interface{}{
		"name": "Orphan", "description": "d", "parentId": 42,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "parent category not found")

	_, _, invalidate, _, _ := env.cache.GetCallCounts()
	assert.Zero(t, invalidate)
}

func TestListRootsAndLeaves(t *testing.T) {
	env := setupTest(t)

	electronics := env.create(t, "Electronics", nil)
	env.create(t, "Phones", &electronics.ID)
	env.create(t, "Clothing", nil)

	roots := decodeList(t, env.do(t, http.MethodGet, "/api/categories/roots", nil))
	assert.Equal(t, []string{"Electronics", "Clothing"}, listNames(roots))

	leaves := decodeList(t, env.do(t, http.MethodGet, "/api/categories/leaves", nil))
	assert.Equal(t, []string{"Phones", "Clothing"}, listNames(leaves))
}

func TestGetCategory(t *testing.T) {
	env := setupTest(t)
	created := env.create(t, "Books", nil)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/categories/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var category models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &category))
	assert.Equal(t, "Books", category.Name)

	w = env.do(t, http.MethodGet, "/api/categories/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/categories/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/categories/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAncestorsAndSubtree(t *testing.T) {
	env := setupTest(t)

	a := env.create(t, "A", nil)
	b := env.create(t, "B", &a.ID)
	c := env.create(t, "C", &b.ID)

	ancestors := decodeList(t, env.do(t, http.MethodGet, fmt.Sprintf("/api/categories/%d/ancestors", c.ID), nil))
	assert.Equal(t, []string{"B", "A"}, listNames(ancestors))

	subtree := decodeList(t, env.do(t, http.MethodGet, fmt.Sprintf("/api/categories/%d/subtree", a.ID), nil))
	assert.Equal(t, []string{"A", "B", "C"}, listNames(subtree))

	w := env.do(t, http.MethodGet, "/api/categories/77/ancestors", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/categories/77/subtree", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTreePaginatesAndCaches(t *testing.T) {
	env := setupTest(t)

	electronics := env.create(t, "Electronics", nil)
	env.create(t, "Phones", &electronics.ID)
	env.create(t, "Clothing", nil)
	env.create(t, "Garden", nil)

	w := env.do(t, http.MethodGet, "/api/categories/tree?page=1&pageSize=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response models.PaginatedTreeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Data, 2)
	assert.Equal(t, "Electronics", response.Data[0].Name)
	require.Len(t, response.Data[0].Children, 1)
	assert.Equal(t, "Phones", response.Data[0].Children[0].Name)
	assert.Equal(t, "Clothing", response.Data[1].Name)
	assert.Equal(t, models.Pagination{Page: 1, PageSize: 2, Total: 3, TotalPages: 2, HasNext: true, HasPrev: false}, response.Pagination)

	// Second request is served from cache
	_, setBefore, _, _, _ := env.cache.GetCallCounts()
	w = env.do(t, http.MethodGet, "/api/categories/tree?page=1&pageSize=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, setAfter, _, _, _ := env.cache.GetCallCounts()
	assert.Equal(t, setBefore, setAfter)

	w = env.do(t, http.MethodGet, "/api/categories/tree?page=2&pageSize=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Data, 1)
	assert.Equal(t, "Garden", response.Data[0].Name)
	assert.False(t, response.Pagination.HasNext)
	assert.True(t, response.Pagination.HasPrev)
}

func TestGetTreeDefaultsAndLimits(t *testing.T) {
	env := setupTest(t)
	env.create(t, "Only", nil)

	w := env.do(t, http.MethodGet, "/api/categories/tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var response models.PaginatedTreeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, models.DefaultPage, response.Pagination.Page)
	assert.Equal(t, models.DefaultPageSize, response.Pagination.PageSize)

	w = env.do(t, http.MethodGet, "/api/categories/tree?pageSize=1000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, models.MaxPageSize, response.Pagination.PageSize)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/categories/tree?page=%d&pageSize=2", math.MaxInt), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Empty(t, response.Data)
	assert.Equal(t, models.MaxPage, response.Pagination.Page)

	w = env.do(t, http.MethodGet, "/api/categories/tree?page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTreeEmpty(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodGet, "/api/categories/tree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var response models.PaginatedTreeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Empty(t, response.Data)
	assert.Equal(t, int64(0), response.Pagination.Total)
}

func TestGetTreeSkipsCachingEmptyPages(t *testing.T) {
	env := setupTest(t)
	env.create(t, "Only", nil)

	for page := 2; page <= 50; page++ {
		w := env.do(t, http.MethodGet, fmt.Sprintf("/api/categories/tree?page=%d&pageSize=1", page), nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	_, set, _, _, _ := env.cache.GetCallCounts()
	assert.Equal(t, 0, set, "pages past the last one should not be cached")

	w := env.do(t, http.MethodGet, "/api/categories/tree?page=1&pageSize=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, set, _, _, _ = env.cache.GetCallCounts()
	assert.Equal(t, 1, set)
}

func TestCorruptedTree(t *testing.T) {
	env := setupTest(t)

	parent := int64(1)
	env.repo.Put(&repository.Category{ID: 1, Name: "A", LeftValue: 1, RightValue: 4})
	env.repo.Put(&repository.Category{ID: 2, Name: "B", LeftValue: 2, RightValue: 5, ParentID: &parent})

	w := env.do(t, http.MethodGet, "/api/categories/tree", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = env.do(t, http.MethodGet, "/api/categories/integrity", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Contains(t, response["error"], "inconsistent category tree")
}

func TestIntegrityOK(t *testing.T) {
	env := setupTest(t)
	root := env.create(t, "Root", nil)
	env.create(t, "Child", &root.ID)

	w := env.do(t, http.MethodGet, "/api/categories/integrity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRequestIDHeader(t *testing.T) {
	env := setupTest(t)

	w := env.do(t, http.MethodGet, "/api/categories/roots", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req, err := http.NewRequest(http.MethodGet, "/api/categories/roots", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "client-supplied")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, "client-supplied", w.Header().Get(RequestIDHeader))
}

func TestRequestLoggerWritesOneLine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	router := gin.New()
	router.Use(RequestID(), RequestLogger(log))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req, err := http.NewRequest(http.MethodGet, "/ping", nil)
	require.NoError(t, err)
	router.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "/ping", line["path"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.NotEmpty(t, line["request_id"])
}

func TestRouterLogsPanickingRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	repo := repository.NewMockRepository()
	require.NoError(t, repo.Initialize(context.Background()))

	router := NewRouter(NewCategoryHandler(tree.NewEngine(repo, zerolog.Nop()), zerolog.Nop()), zerolog.New(&buf))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	req, err := http.NewRequest(http.MethodGet, "/boom", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "panic-request")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "panic-request", w.Header().Get(RequestIDHeader))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "/boom", line["path"])
	assert.Equal(t, float64(http.StatusInternalServerError), line["status"])
	assert.Equal(t, "panic-request", line["request_id"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("%w: 3", tree.ErrParentNotFound)))
	assert.Equal(t, http.StatusNotFound, StatusFor(repository.ErrCategoryNotFound))
	assert.Equal(t, http.StatusBadRequest, StatusFor(repository.ErrInvalidInput))
	assert.Equal(t, http.StatusBadRequest, StatusFor(ErrInvalidID))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(tree.ErrInconsistentTree))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(context.DeadlineExceeded))
}
