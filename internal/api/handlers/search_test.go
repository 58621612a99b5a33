package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/synapse-hq/synapse/internal/domain"
	"github.com/synapse-hq/synapse/internal/search"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input search.SearchInput) (*search.SearchOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.SearchOutput), args.Error(1)
}

func TestSearchHandler_Search_Success(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	expected := &search.SearchOutput{
		Mode: search.ModeHybrid,
		Results: []*search.Result{
			{ChunkID: "doc-1:0", DocumentID: "doc-1", Content: "Grace Hopper worked at IBM.", Score: 0.9},
		},
	}
	mockSvc.On("Search", mock.Anything, mock.MatchedBy(func(input search.SearchInput) bool {
		return input.Query == "who worked at IBM" && input.Mode == search.Mode("hybrid") && input.TopK == 5
	})).Return(expected, nil)

	body := `{"query":"who worked at IBM","mode":"hybrid","top_k":5}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "hybrid", data["mode"])
	results := data["results"].([]interface{})
	require.Len(t, results, 1)
	mockSvc.AssertExpectations(t)
}

func TestSearchHandler_Search_MissingQuery(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	body := `{"mode":"vector"}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "query is required")
}

func TestSearchHandler_Search_InvalidJSON(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(`not json`)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_Search_InvalidMode(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, mock.Anything).
		Return(nil, domain.ErrInvalidSearchMode)

	body := `{"query":"anything","mode":"telepathy"}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSearchHandler_Search_VectorUnavailable(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, mock.Anything).
		Return(nil, domain.ErrVectorStoreUnavailable)

	body := `{"query":"anything","mode":"vector"}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "VECTOR_UNAVAILABLE")
	mockSvc.AssertExpectations(t)
}
