package lambda

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ammiranda/category_service/handlers"
	"github.com/ammiranda/category_service/models"
	"github.com/ammiranda/category_service/repository"
	"github.com/ammiranda/category_service/tree"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const basePath = "/api/categories"

// Handler represents the Lambda handler with its dependencies
type Handler struct {
	engine *tree.Engine
	log    zerolog.Logger
}

// NewHandler creates a new Handler backed by engine
func NewHandler(engine *tree.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log,
	}
}

// Handle processes API Gateway events
func (h *Handler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := request.Headers[handlers.RequestIDHeader]
	if requestID == "" {
		requestID = request.RequestContext.RequestID
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	resp := h.route(ctx, request)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["Content-Type"] = "application/json"
	resp.Headers[handlers.RequestIDHeader] = requestID

	h.log.Info().
		Str("request_id", requestID).
		Str("method", request.HTTPMethod).
		Str("path", request.Path).
		Int("status", resp.StatusCode).
		Msg("request handled")
	return resp, nil
}

func (h *Handler) route(ctx context.Context, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	path := strings.TrimSuffix(request.Path, "/")
	if path != basePath && !strings.HasPrefix(path, basePath+"/") {
		return errorResponse(http.StatusNotFound, "not found")
	}
	segments := strings.Split(strings.TrimPrefix(strings.TrimPrefix(path, basePath), "/"), "/")
	if segments[0] == "" {
		segments = nil
	}

	switch request.HTTPMethod {
	case http.MethodPost:
		if len(segments) == 0 {
			return h.handleCreate(ctx, request)
		}
	case http.MethodGet:
		switch {
		case len(segments) == 1 && segments[0] == "roots":
			return h.handleList(h.engine.ListRoots(ctx))
		case len(segments) == 1 && segments[0] == "leaves":
			return h.handleList(h.engine.ListLeaves(ctx))
		case len(segments) == 1 && segments[0] == "tree":
			return h.handleTree(ctx, request)
		case len(segments) == 1 && segments[0] == "integrity":
			return h.handleIntegrity(ctx)
		case len(segments) == 1:
			return h.handleGet(ctx, segments[0])
		case len(segments) == 2 && segments[1] == "ancestors":
			return h.handleByID(ctx, segments[0], h.engine.FindAncestors)
		case len(segments) == 2 && segments[1] == "subtree":
			return h.handleByID(ctx, segments[0], h.engine.FindSubtree)
		}
	}
	return errorResponse(http.StatusNotFound, "not found")
}

func (h *Handler) handleCreate(ctx context.Context, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var req models.CreateCategoryRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(http.StatusBadRequest, "invalid request: "+err.Error())
	}

	created, err := handlers.CreateFromRequest(ctx, h.engine, &req)
	if err != nil {
		return h.failure(err)
	}
	return jsonResponse(http.StatusCreated, models.NewCategory(created))
}

func (h *Handler) handleTree(ctx context.Context, request events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var req models.PageRequest
	for param, target := range map[string]*int{"page": &req.Page, "pageSize": &req.PageSize} {
		raw, ok := request.QueryStringParameters[param]
		if !ok || raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return errorResponse(http.StatusBadRequest, "invalid "+param+": "+raw)
		}
		*target = value
	}

	response, err := handlers.TreePage(ctx, h.engine, req)
	if err != nil {
		return h.failure(err)
	}
	return jsonResponse(http.StatusOK, response)
}

func (h *Handler) handleIntegrity(ctx context.Context) events.APIGatewayProxyResponse {
	if err := h.engine.Verify(ctx); err != nil {
		h.log.Error().Err(err).Msg("integrity check failed")
		return errorResponse(http.StatusInternalServerError, err.Error())
	}
	return jsonResponse(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGet(ctx context.Context, rawID string) events.APIGatewayProxyResponse {
	id, err := handlers.ParseID(rawID)
	if err != nil {
		return h.failure(err)
	}
	category, err := h.engine.GetCategory(ctx, id)
	if err != nil {
		return h.failure(err)
	}
	return jsonResponse(http.StatusOK, models.NewCategory(category))
}

func (h *Handler) handleByID(ctx context.Context, rawID string, find func(context.Context, int64) ([]*repository.Category, error)) events.APIGatewayProxyResponse {
	id, err := handlers.ParseID(rawID)
	if err != nil {
		return h.failure(err)
	}
	return h.handleList(find(ctx, id))
}

func (h *Handler) handleList(categories []*repository.Category, err error) events.APIGatewayProxyResponse {
	if err != nil {
		return h.failure(err)
	}
	return jsonResponse(http.StatusOK, models.NewCategories(categories))
}

func (h *Handler) failure(err error) events.APIGatewayProxyResponse {
	status := handlers.StatusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	return errorResponse(status, err.Error())
}

func jsonResponse(status int, payload interface{}) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, "failed to marshal response: "+err.Error())
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
	}
}

func errorResponse(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
	}
}
