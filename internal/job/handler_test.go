package job

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/lanedispatch/common"
	"github.com/joshu-sajeev/lanedispatch/internal/dto"
	"github.com/joshu-sajeev/lanedispatch/internal/lane"
	"github.com/joshu-sajeev/lanedispatch/internal/mocks"
	"github.com/joshu-sajeev/lanedispatch/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupRouter(service ServiceInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	RegisterRoutes(r, NewHandler(service))
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Submit(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Submit", mock.Anything, mock.MatchedBy(func(req *dto.SubmitJobDTO) bool {
		return string(req.Payload) == `{"task":"demo"}` && req.TimeoutMs == 2000
	})).Return(&dto.SubmitJobResponseDTO{ID: "id-1"}, nil)

	r := setupRouter(service)
	w := doRequest(r, http.MethodPost, "/jobs", gin.H{
		"payload":    gin.H{"task": "demo"},
		"timeout_ms": 2000,
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var resp dto.SubmitJobResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "id-1", resp.ID)
	service.AssertExpectations(t)
}

func TestHandler_SubmitMissingPayload(t *testing.T) {
	service := new(mocks.ServiceMock)
	r := setupRouter(service)

	w := doRequest(r, http.MethodPost, "/jobs", gin.H{"timeout_ms": 100})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestHandler_SubmitMalformedBody(t *testing.T) {
	service := new(mocks.ServiceMock)
	r := setupRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(`{broken`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_SubmitServiceError(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Submit", mock.Anything, mock.Anything).
		Return(nil, common.Errf(http.StatusServiceUnavailable, "dispatcher is shut down"))

	r := setupRouter(service)
	w := doRequest(r, http.MethodPost, "/jobs", gin.H{"payload": gin.H{"a": 1}})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "shut down")
}

func TestHandler_Complete(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Complete", mock.Anything, "id-1").Return(true, nil)

	r := setupRouter(service)
	w := doRequest(r, http.MethodPost, "/jobs/id-1/complete", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"finalized": true}`, w.Body.String())
}

func TestHandler_CompleteUnknownIDIsStillOK(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Complete", mock.Anything, "nope").Return(false, nil)

	r := setupRouter(service)
	w := doRequest(r, http.MethodPost, "/jobs/nope/complete", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"finalized": false}`, w.Body.String())
}

func TestHandler_Fail(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Fail", mock.Anything, "id-1", "boom").Return(true, nil)

	r := setupRouter(service)
	w := doRequest(r, http.MethodPost, "/jobs/id-1/fail", gin.H{"error": "boom"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"finalized": true}`, w.Body.String())
	service.AssertExpectations(t)
}

func TestHandler_Resize(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Resize", mock.Anything, 4).Return(nil)

	r := setupRouter(service)
	w := doRequest(r, http.MethodPost, "/lanes/resize", gin.H{"count": 4})

	assert.Equal(t, http.StatusNoContent, w.Code)
	service.AssertExpectations(t)
}

func TestHandler_ResizeRejectsNonPositiveCount(t *testing.T) {
	service := new(mocks.ServiceMock)
	r := setupRouter(service)

	w := doRequest(r, http.MethodPost, "/lanes/resize", gin.H{"count": 0})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "Resize", mock.Anything, mock.Anything)
}

func TestHandler_UpdateConcurrency(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("UpdateConcurrency", mock.Anything, 8).Return(nil)

	r := setupRouter(service)
	w := doRequest(r, http.MethodPost, "/lanes/concurrency", gin.H{"limit": 8})

	assert.Equal(t, http.StatusNoContent, w.Code)
	service.AssertExpectations(t)
}

func TestHandler_PauseResume(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Pause", mock.Anything).Return(nil)
	service.On("Resume", mock.Anything).Return(nil)

	r := setupRouter(service)

	assert.Equal(t, http.StatusNoContent, doRequest(r, http.MethodPost, "/lanes/pause", nil).Code)
	assert.Equal(t, http.StatusNoContent, doRequest(r, http.MethodPost, "/lanes/resume", nil).Code)
	service.AssertExpectations(t)
}

func TestHandler_Stats(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Stats", mock.Anything).Return([]lane.Stats{
		{LaneIndex: 0, Pending: 1, Running: 2, Concurrency: 5, Active: true},
	}, nil)

	r := setupRouter(service)
	w := doRequest(r, http.MethodGet, "/lanes/stats", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var stats []lane.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Running)
}

func TestHandler_Cleanup(t *testing.T) {
	service := new(mocks.ServiceMock)
	service.On("Cleanup", mock.Anything, mock.Anything).Return(int64(5), nil)

	r := setupRouter(service)
	w := doRequest(r, http.MethodPost, "/jobs/cleanup?age_hours=24", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted": 5}`, w.Body.String())
}

func TestHandler_CleanupRejectsBadAge(t *testing.T) {
	service := new(mocks.ServiceMock)
	r := setupRouter(service)

	w := doRequest(r, http.MethodPost, "/jobs/cleanup?age_hours=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "Cleanup", mock.Anything, mock.Anything)
}
