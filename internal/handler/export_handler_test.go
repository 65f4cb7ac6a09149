package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paud-api/internal/middleware"
	"github.com/noah-isme/paud-api/internal/models"
	"github.com/noah-isme/paud-api/internal/service"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type exportServiceMock struct {
	createResp  *models.ExportJobResponse
	createErr   error
	statusResp  *models.ExportStatusResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error

	lastActor string
	lastRole  models.UserRole
}

func (m *exportServiceMock) CreateJob(ctx context.Context, req models.ExportRequest, actorID string, role models.UserRole) (*models.ExportJobResponse, error) {
	m.lastActor, m.lastRole = actorID, role
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*models.ExportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestExportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{
		createResp: &models.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued},
	}
	handler := NewExportHandler(mockSvc, nil)

	payload, _ := json.Marshal(models.ExportRequest{Type: models.ExportTypeStatistics, TermID: "term-1", ClassroomID: "room-1", Format: models.ExportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Create(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.lastActor)
	assert.Equal(t, models.RoleTeacher, mockSvc.lastRole)
	assert.Contains(t, w.Body.String(), `"job-1"`)
}

func TestExportHandlerCreateForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{createErr: appErrors.Clone(appErrors.ErrForbidden, "classroom is not yours")}
	handler := NewExportHandler(mockSvc, nil)

	payload, _ := json.Marshal(models.ExportRequest{Type: models.ExportTypeReportCards, TermID: "term-1", ClassroomID: "room-2", Format: models.ExportFormatPDF})
	c, w := newGinContext(http.MethodPost, "/exports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Create(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerCreateRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(&exportServiceMock{}, nil)
	c, w := newGinContext(http.MethodPost, "/exports", []byte(`{}`))

	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/exports/download/tok"
	mockSvc := &exportServiceMock{
		statusResp: &models.ExportStatusResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100, DownloadURL: &url},
	}
	handler := NewExportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Status(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), url)
}

func TestExportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "statistics.csv")
	require.NoError(t, os.WriteFile(path, []byte("Metrik,Nilai\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	mockSvc := &exportServiceMock{download: &service.ExportDownload{File: file, Filename: "statistics.csv", Format: models.ExportFormatCSV}}
	handler := NewExportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/exports/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "statistics.csv")
	assert.Equal(t, "Metrik,Nilai\n", w.Body.String())
}

func TestExportHandlerDownloadExpired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &exportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrUnauthorized, "download link expired")}
	handler := NewExportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/exports/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
