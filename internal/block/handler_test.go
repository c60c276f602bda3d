package block

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"collaborative-workspace/internal/errors"
	"collaborative-workspace/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockService is a mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) GetBlock(ctx context.Context, workspaceID, documentID, blockID string) (*Block, error) {
	args := m.Called(ctx, workspaceID, documentID, blockID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Block), args.Error(1)
}

func (m *MockService) ListBlocks(ctx context.Context, workspaceID, documentID string, page, pageSize int) (*PaginatedBlocks, error) {
	args := m.Called(ctx, workspaceID, documentID, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaginatedBlocks), args.Error(1)
}

func (m *MockService) DocumentBlocks(ctx context.Context, workspaceID, documentID string) ([]Block, error) {
	args := m.Called(ctx, workspaceID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Block), args.Error(1)
}

func (m *MockService) SaveBlock(ctx context.Context, b *Block) error {
	return m.Called(ctx, b).Error(0)
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler(zerolog.Nop()))

	router.GET("/workspaces/:workspaceId/documents/:documentId/blocks", handler.ShowDocumentBlocks)
	router.GET("/workspaces/:workspaceId/documents/:documentId/blocks/:blockId", handler.ShowBlock)
	return router
}

func TestShowBlock_Success(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("GetBlock", mock.Anything, "ws-1", "doc-1", "b-1").Return(&Block{
		WorkspaceID: "ws-1",
		DocumentID:  "doc-1",
		BlockID:     "b-1",
		Content:     "Remote text",
		Version:     4,
		BlockType:   DefaultType,
	}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workspaces/ws-1/documents/doc-1/blocks/b-1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var got Block
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Remote text", got.Content)
	assert.Equal(t, int64(4), got.Version)
	mockService.AssertExpectations(t)
}

func TestShowBlock_NotFound(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("GetBlock", mock.Anything, "ws-1", "doc-1", "nope").
		Return(nil, errors.NotFound("Block not found", nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workspaces/ws-1/documents/doc-1/blocks/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Block not found"}`, w.Body.String())
}

// TestShowDocumentBlocks tests pagination params are forwarded to the service
func TestShowDocumentBlocks(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("ListBlocks", mock.Anything, "ws-1", "doc-1", 2, 5).Return(&PaginatedBlocks{
		Data: []Block{{BlockID: "b-6"}},
		Meta: BlocksMeta{Total: 6, CurrentPage: 2, PerPage: 5, TotalPage: 2},
	}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workspaces/ws-1/documents/doc-1/blocks?page=2&per_page=5", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var got PaginatedBlocks
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.Data, 1)
	assert.Equal(t, 2, got.Meta.TotalPage)
	mockService.AssertExpectations(t)
}

func TestShowDocumentBlocks_Error(t *testing.T) {
	mockService := new(MockService)
	router := setupRouter(NewHandler(mockService))

	mockService.On("ListBlocks", mock.Anything, "ws-1", "doc-1", 1, 20).Return(nil, errors.Internal(assert.AnError))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workspaces/ws-1/documents/doc-1/blocks", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
