package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/xuri/excelize/v2"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
)

// MockImportJobsRepository is a mock implementation of ImportJobsRepositoryInterface
type MockImportJobsRepository struct {
	mock.Mock
}

var _ repository.ImportJobsRepositoryInterface = (*MockImportJobsRepository)(nil)

func (m *MockImportJobsRepository) Create(ctx context.Context, job *models.ImportJob) error {
	args := m.Called(ctx, job)
	if args.Error(0) == nil {
		job.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockImportJobsRepository) GetByID(ctx context.Context, tenantID string, jobID uuid.UUID) (*models.ImportJob, error) {
	args := m.Called(ctx, tenantID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportJob), args.Error(1)
}

func (m *MockImportJobsRepository) List(ctx context.Context, tenantID string, status *models.ImportJobStatus, page, limit int) ([]models.ImportJob, int64, error) {
	args := m.Called(ctx, tenantID, status, page, limit)
	return args.Get(0).([]models.ImportJob), args.Get(1).(int64), args.Error(2)
}

func (m *MockImportJobsRepository) Save(ctx context.Context, job *models.ImportJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockImportJobsRepository) UpdateProgress(ctx context.Context, jobID uuid.UUID, processed, success, failed int) error {
	args := m.Called(ctx, jobID, processed, success, failed)
	return args.Error(0)
}

func (m *MockImportJobsRepository) Delete(ctx context.Context, tenantID string, jobID uuid.UUID) error {
	args := m.Called(ctx, tenantID, jobID)
	return args.Error(0)
}

// Helper to setup test router with tenant and user context preset
func setupTestRouter(handler *ImportHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("tenant_id", "tenant-1")
		c.Set("user_id", "user-1")
		c.Next()
	})

	catalog := r.Group("/api/v1/catalog")
	catalog.POST("/import", handler.ImportCatalog)
	catalog.GET("/import/template", handler.GetImportTemplate)
	catalog.GET("/import/jobs", handler.ListJobs)
	catalog.GET("/import/jobs/:id", handler.GetJob)
	catalog.GET("/import/jobs/:id/errors/report", handler.DownloadErrorReport)
	catalog.DELETE("/import/jobs/:id", handler.DeleteJob)
	return r
}

func newTestHandler(jobs repository.ImportJobsRepositoryInterface) *ImportHandler {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewImportHandler(
		jobs, nil,
		services.NewTemplateBuilder(), services.NewErrorReporter(),
		nil,
		10, 20, 100,
		logger,
	)
}

// ===========================================
// Job Status Tests
// ===========================================

func TestGetJob_ReturnsDerivedProgress(t *testing.T) {
	jobID := uuid.New()
	job := &models.ImportJob{
		ID:            jobID,
		TenantID:      "tenant-1",
		Status:        models.ImportJobStatusProcessing,
		TotalRows:     4,
		ProcessedRows: 3,
	}

	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("GetByID", mock.Anything, "tenant-1", jobID).Return(job, nil)
	router := setupTestRouter(newTestHandler(mockRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/jobs/"+jobID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ImportJobResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 75, resp.Progress)
	assert.Equal(t, models.ImportJobStatusProcessing, resp.Data.Status)
}

func TestGetJob_NotFound(t *testing.T) {
	jobID := uuid.New()
	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("GetByID", mock.Anything, "tenant-1", jobID).Return(nil, repository.ErrNotFound)
	router := setupTestRouter(newTestHandler(mockRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/jobs/"+jobID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "JOB_NOT_FOUND")
}

func TestGetJob_InvalidID(t *testing.T) {
	router := setupTestRouter(newTestHandler(new(MockImportJobsRepository)))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/jobs/not-a-uuid", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_JOB_ID")
}

// ===========================================
// Job Listing Tests
// ===========================================

func TestListJobs_Paginates(t *testing.T) {
	jobs := []models.ImportJob{
		{ID: uuid.New(), TenantID: "tenant-1", Status: models.ImportJobStatusCompleted},
	}
	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("List", mock.Anything, "tenant-1", (*models.ImportJobStatus)(nil), 2, 1).
		Return(jobs, int64(5), nil)
	router := setupTestRouter(newTestHandler(mockRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/jobs?page=2&limit=1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ImportJobListResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, int64(5), resp.Pagination.Total)
	assert.Equal(t, 5, resp.Pagination.TotalPages)
	assert.True(t, resp.Pagination.HasNext)
	assert.True(t, resp.Pagination.HasPrevious)
}

func TestListJobs_FiltersByStatus(t *testing.T) {
	status := models.ImportJobStatusFailed
	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("List", mock.Anything, "tenant-1", &status, 1, 20).
		Return([]models.ImportJob{}, int64(0), nil)
	router := setupTestRouter(newTestHandler(mockRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/jobs?status=failed", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestListJobs_InvalidStatus(t *testing.T) {
	router := setupTestRouter(newTestHandler(new(MockImportJobsRepository)))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/jobs?status=bogus", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_STATUS")
}

// ===========================================
// Deletion Tests
// ===========================================

func TestDeleteJob_ConflictWhileProcessing(t *testing.T) {
	jobID := uuid.New()
	job := &models.ImportJob{ID: jobID, TenantID: "tenant-1", Status: models.ImportJobStatusProcessing}

	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("GetByID", mock.Anything, "tenant-1", jobID).Return(job, nil)
	router := setupTestRouter(newTestHandler(mockRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/catalog/import/jobs/"+jobID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "JOB_PROCESSING")
	mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteJob_Success(t *testing.T) {
	jobID := uuid.New()
	job := &models.ImportJob{ID: jobID, TenantID: "tenant-1", Status: models.ImportJobStatusCompleted}

	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("GetByID", mock.Anything, "tenant-1", jobID).Return(job, nil)
	mockRepo.On("Delete", mock.Anything, "tenant-1", jobID).Return(nil)
	router := setupTestRouter(newTestHandler(mockRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/v1/catalog/import/jobs/"+jobID.String(), nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockRepo.AssertExpectations(t)
}

// ===========================================
// Template and Error Report Tests
// ===========================================

func TestGetImportTemplate_JSON(t *testing.T) {
	router := setupTestRouter(newTestHandler(new(MockImportJobsRepository)))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/template", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "productId")
	assert.Contains(t, w.Body.String(), "\"entity\":\"catalog\"")
}

func TestGetImportTemplate_XLSX(t *testing.T) {
	router := setupTestRouter(newTestHandler(new(MockImportJobsRepository)))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/template?format=xlsx", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())
}

func TestDownloadErrorReport_NoErrors(t *testing.T) {
	jobID := uuid.New()
	job := &models.ImportJob{ID: jobID, TenantID: "tenant-1", Status: models.ImportJobStatusCompleted}

	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("GetByID", mock.Anything, "tenant-1", jobID).Return(job, nil)
	router := setupTestRouter(newTestHandler(mockRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/jobs/"+jobID.String()+"/errors/report", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NO_ERRORS")
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestDownloadErrorReport_StreamsWorkbook(t *testing.T) {
	jobID := uuid.New()
	rowErrors := models.JSONArray{
		models.RowError{Row: 3, Field: "sku", Message: "sku \"TSH-001\" already exists in the catalog"},
	}
	job := &models.ImportJob{
		ID:       jobID,
		TenantID: "tenant-1",
		Status:   models.ImportJobStatusPartial,
		Errors:   &rowErrors,
	}

	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("GetByID", mock.Anything, "tenant-1", jobID).Return(job, nil)
	router := setupTestRouter(newTestHandler(mockRepo))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/catalog/import/jobs/"+jobID.String()+"/errors/report", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), jobID.String())
	assert.NotZero(t, w.Body.Len())
}

// ===========================================
// Upload Intake Tests
// ===========================================

// newUploadHandler wires a real orchestrator so accepted uploads can spawn
// their background run
func newUploadHandler(jobs repository.ImportJobsRepositoryInterface) *ImportHandler {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	orchestrator := services.NewImportOrchestrator(
		services.NewWorkbookParser(),
		services.NewRowValidator(nil, logger),
		services.NewAssetImporter(nil, time.Second, logger),
		services.NewRowCommitter(nil, logger),
		jobs, nil, nil,
		logger,
	)
	return NewImportHandler(
		jobs, orchestrator,
		services.NewTemplateBuilder(), services.NewErrorReporter(),
		nil,
		10, 20, 100,
		logger,
	)
}

func emptyWorkbookUpload(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "Products")
	f.SetCellValue("Products", "A1", "sku")

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "catalog.xlsx")
	assert.NoError(t, err)
	assert.NoError(t, f.Write(part))
	assert.NoError(t, f.Close())
	assert.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestImportCatalog_AcceptsWorkbook(t *testing.T) {
	mockRepo := new(MockImportJobsRepository)
	mockRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	mockRepo.On("Save", mock.Anything, mock.Anything).Return(nil).Maybe()
	router := setupTestRouter(newUploadHandler(mockRepo))

	body, contentType := emptyWorkbookUpload(t)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/catalog/import", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	// the response reflects the job as queued, before the background run
	// starts mutating it
	var resp models.ImportAcceptedResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEqual(t, uuid.Nil, resp.JobID)
	assert.Equal(t, models.ImportJobStatusPending, resp.Status)
	mockRepo.AssertCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestImportCatalog_RejectsNonXlsx(t *testing.T) {
	mockRepo := new(MockImportJobsRepository)
	router := setupTestRouter(newTestHandler(mockRepo))

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, _ := writer.CreateFormFile("file", "catalog.csv")
	part.Write([]byte("sku,productName\nTSH-001,Shirt\n"))
	writer.Close()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/catalog/import", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "UNSUPPORTED_FILE_TYPE")
	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestImportCatalog_MissingFile(t *testing.T) {
	router := setupTestRouter(newTestHandler(new(MockImportJobsRepository)))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/catalog/import", bytes.NewBufferString(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "FILE_REQUIRED")
}
