package lambda

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammiranda/category_service/cache"
	"github.com/ammiranda/category_service/handlers"
	"github.com/ammiranda/category_service/models"
	"github.com/ammiranda/category_service/repository"
	"github.com/ammiranda/category_service/tree"
)

func setupHandler(t *testing.T) (*Handler, *repository.MockRepository) {
	t.Helper()
	repo := repository.NewMockRepository()
	require.NoError(t, repo.Initialize(context.Background()))
	require.NoError(t, cache.SetProvider(cache.NewMemoryCache()))
	t.Cleanup(cache.ResetProvider)

	return NewHandler(tree.NewEngine(repo, zerolog.Nop()), zerolog.Nop()), repo
}

func call(t *testing.T, h *Handler, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	t.Helper()
	resp, err := h.Handle(context.Background(), request)
	require.NoError(t, err)
	return resp
}

func createCategory(t *testing.T, h *Handler, name string, parentID *int64) models.Category {
	t.Helper()
	body, err := json.Marshal(models.CreateCategoryRequest{Name: name, Description: name, ParentID: parentID})
	require.NoError(t, err)

	resp := call(t, h, events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/api/categories",
		Body:       string(body),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, resp.Body)

	var created models.Category
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &created))
	return created
}

func TestHandleCreateAndQuery(t *testing.T) {
	h, _ := setupHandler(t)

	electronics := createCategory(t, h, "Electronics", nil)
	phones := createCategory(t, h, "Phones", &electronics.ID)
	createCategory(t, h, "Clothing", nil)
	assert.Equal(t, int64(2), phones.LeftValue)

	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"roots", "/api/categories/roots", []string{"Electronics", "Clothing"}},
		{"leaves", "/api/categories/leaves", []string{"Phones", "Clothing"}},
		{"ancestors", fmt.Sprintf("/api/categories/%d/ancestors", phones.ID), []string{"Electronics"}},
		{"subtree", fmt.Sprintf("/api/categories/%d/subtree/", electronics.ID), []string{"Electronics", "Phones"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, h, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: tt.path})
			require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)

			var list []models.Category
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &list))
			names := make([]string, 0, len(list))
			for _, c := range list {
				names = append(names, c.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}

	resp := call(t, h, events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       fmt.Sprintf("/api/categories/%d", phones.ID),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var category models.Category
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &category))
	assert.Equal(t, "Phones", category.Name)
}

func TestHandleTree(t *testing.T) {
	h, _ := setupHandler(t)
	root := createCategory(t, h, "Root", nil)
	createCategory(t, h, "Child", &root.ID)
	createCategory(t, h, "Other", nil)

	resp := call(t, h, events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		Path:                  "/api/categories/tree",
		QueryStringParameters: map[string]string{"page": "1", "pageSize": "1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)

	var page models.PaginatedTreeResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Root", page.Data[0].Name)
	require.Len(t, page.Data[0].Children, 1)
	assert.Equal(t, int64(2), page.Pagination.Total)
	assert.True(t, page.Pagination.HasNext)

	resp = call(t, h, events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		Path:                  "/api/categories/tree",
		QueryStringParameters: map[string]string{"page": strconv.Itoa(math.MaxInt), "pageSize": "2"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &page))
	assert.Empty(t, page.Data)
	assert.Equal(t, models.MaxPage, page.Pagination.Page)
	assert.False(t, page.Pagination.HasNext)

	resp = call(t, h, events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodGet,
		Path:                  "/api/categories/tree",
		QueryStringParameters: map[string]string{"page": "x"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleErrors(t *testing.T) {
	h, repo := setupHandler(t)

	tests := []struct {
		name    string
		request events.APIGatewayProxyRequest
		status  int
	}{
		{"unknown route", events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/tree"}, http.StatusNotFound},
		{"unknown method", events.APIGatewayProxyRequest{HTTPMethod: http.MethodDelete, Path: "/api/categories/1"}, http.StatusNotFound},
		{"unknown category", events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/categories/5"}, http.StatusNotFound},
		{"bad id", events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/categories/five/subtree"}, http.StatusBadRequest},
		{"bad body", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/api/categories", Body: "{"}, http.StatusBadRequest},
		{"invalid body", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/api/categories", Body: `{"name":"x"}`}, http.StatusBadRequest},
		{"missing parent", events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/api/categories", Body: `{"name":"x","description":"y","parentId":9}`}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, h, tt.request)
			assert.Equal(t, tt.status, resp.StatusCode, resp.Body)
			assert.Equal(t, "application/json", resp.Headers["Content-Type"])

			var body map[string]string
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
			assert.NotEmpty(t, body["error"])
		})
	}

	all, err := repo.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHandleIntegrity(t *testing.T) {
	h, repo := setupHandler(t)

	resp := call(t, h, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/categories/integrity"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body)

	repo.Put(&repository.Category{ID: 1, Name: "A", LeftValue: 1, RightValue: 3})
	repo.Put(&repository.Category{ID: 2, Name: "B", LeftValue: 3, RightValue: 4})

	resp = call(t, h, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/categories/integrity"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleRequestID(t *testing.T) {
	h, _ := setupHandler(t)

	resp := call(t, h, events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodGet,
		Path:       "/api/categories/roots",
		Headers:    map[string]string{handlers.RequestIDHeader: "abc-123"},
	})
	assert.Equal(t, "abc-123", resp.Headers[handlers.RequestIDHeader])

	resp = call(t, h, events.APIGatewayProxyRequest{
		HTTPMethod:     http.MethodGet,
		Path:           "/api/categories/roots",
		RequestContext: events.APIGatewayProxyRequestContext{RequestID: "gateway-id"},
	})
	assert.Equal(t, "gateway-id", resp.Headers[handlers.RequestIDHeader])

	resp = call(t, h, events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/categories/roots"})
	assert.NotEmpty(t, resp.Headers[handlers.RequestIDHeader])
}
