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
	"github.com/synapse-hq/synapse/internal/ingest"
)

type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) IngestDocument(ctx context.Context, input ingest.IngestInput) (*ingest.IngestionResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ingest.IngestionResult), args.Error(1)
}

func (m *MockIngestService) DeleteDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func TestIngestHandler_Ingest_Success(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	expected := &ingest.IngestionResult{
		DocumentID:  "doc-1",
		ChunkIDs:    []string{"doc-1:0", "doc-1:1"},
		EntityCount: 3,
	}
	mockSvc.On("IngestDocument", mock.Anything, mock.MatchedBy(func(input ingest.IngestInput) bool {
		return input.Content == "Grace Hopper worked at IBM." && input.Source == "notes.txt"
	})).Return(expected, nil)

	body := `{"source":"notes.txt","content":"Grace Hopper worked at IBM."}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "doc-1", data["document_id"])
	assert.Equal(t, float64(3), data["entity_count"])
	mockSvc.AssertExpectations(t)
}

func TestIngestHandler_Ingest_InvalidJSON(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(`{invalid`)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestIngestHandler_Ingest_MissingContent(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	body := `{"source":"notes.txt"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "content is required")
}

func TestIngestHandler_Ingest_Conflict(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	mockSvc.On("IngestDocument", mock.Anything, mock.Anything).
		Return(nil, domain.ErrDocumentAlreadyExists)

	body := `{"document_id":"doc-1","content":"same text again"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_EXISTS")
	mockSvc.AssertExpectations(t)
}

func TestIngestHandler_Ingest_WarningsPassedThrough(t *testing.T) {
	mockSvc := new(MockIngestService)
	handler := NewIngestHandler(mockSvc)

	expected := &ingest.IngestionResult{
		DocumentID: "doc-1",
		ChunkIDs:   []string{"doc-1:0"},
		Warnings:   []string{"embedding failed for chunk doc-1:0"},
	}
	mockSvc.On("IngestDocument", mock.Anything, mock.Anything).Return(expected, nil)

	body := `{"content":"some text"}`
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Ingest(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "embedding failed for chunk doc-1:0")
}
