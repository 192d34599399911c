package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
	"catalog-import-service/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ImportHandler struct {
	jobs            repository.ImportJobsRepositoryInterface
	orchestrator    *services.ImportOrchestrator
	template        *services.TemplateBuilder
	reporter        *services.ErrorReporter
	store           storage.ObjectStoreInterface
	maxUploadBytes  int64
	defaultPageSize int
	maxPageSize     int
	logger          *logrus.Entry
}

func NewImportHandler(
	jobs repository.ImportJobsRepositoryInterface,
	orchestrator *services.ImportOrchestrator,
	template *services.TemplateBuilder,
	reporter *services.ErrorReporter,
	store storage.ObjectStoreInterface,
	maxUploadSizeMB, defaultPageSize, maxPageSize int,
	logger *logrus.Logger,
) *ImportHandler {
	return &ImportHandler{
		jobs:            jobs,
		orchestrator:    orchestrator,
		template:        template,
		reporter:        reporter,
		store:           store,
		maxUploadBytes:  int64(maxUploadSizeMB) * 1024 * 1024,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		logger:          logger.WithField("component", "import_handler"),
	}
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/catalog/import/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	switch format {
	case "xlsx":
		c.Header("Content-Type", xlsxContentType)
		c.Header("Content-Disposition", "attachment; filename=catalog_import_template.xlsx")
		if err := h.template.WriteTo(c.Writer); err != nil {
			h.logger.WithError(err).Error("Failed to write template workbook")
		}
	case "json":
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": models.CatalogImportTemplate(),
		})
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_FORMAT",
				Message: "Template format must be 'json' or 'xlsx'",
			},
		})
	}
}

// ImportCatalog accepts an uploaded workbook and queues an import job
// POST /api/v1/catalog/import
func (h *ImportHandler) ImportCatalog(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	userID := middleware.GetUserID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		code := "FILE_REQUIRED"
		message := "Please upload an Excel (.xlsx) file"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			code = "FILE_TOO_LARGE"
			message = fmt.Sprintf("Uploaded file exceeds the %dMB limit", h.maxUploadBytes/(1024*1024))
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: code, Message: message},
		})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UNSUPPORTED_FILE_TYPE",
				Message: "Only .xlsx workbooks are supported, download the template and try again",
			},
		})
		return
	}

	tmp, err := os.CreateTemp("", "catalog-import-*.xlsx")
	if err != nil {
		h.logger.WithError(err).Error("Failed to create temp file for upload")
		h.internalError(c, "Failed to store uploaded file")
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		h.logger.WithError(err).Error("Failed to write uploaded file")
		h.internalError(c, "Failed to store uploaded file")
		return
	}
	tmp.Close()

	job := &models.ImportJob{
		TenantID: tenantID,
		UserID:   userID,
		FileName: filepath.Base(header.Filename),
		FilePath: tmp.Name(),
		Status:   models.ImportJobStatusPending,
	}
	if err := h.jobs.Create(c.Request.Context(), job); err != nil {
		os.Remove(tmp.Name())
		h.logger.WithError(err).Error("Failed to create import job")
		h.internalError(c, "Failed to create import job")
		return
	}

	// Backup is best effort, the import proceeds either way
	if h.store != nil {
		if obj, err := h.store.StoreBackup(c.Request.Context(), tenantID, job.ID, job.FilePath, job.FileName); err != nil {
			h.logger.WithField("jobId", job.ID).WithError(err).Warn("Failed to back up uploaded workbook")
		} else {
			job.BackupStorageKey = &obj.PublicID
			job.BackupURL = &obj.URL
			if err := h.jobs.Save(c.Request.Context(), job); err != nil {
				h.logger.WithField("jobId", job.ID).WithError(err).Warn("Failed to record workbook backup")
			}
		}
	}

	h.logger.WithFields(logrus.Fields{
		"jobId":    job.ID,
		"tenantId": tenantID,
		"fileName": job.FileName,
	}).Info("Import job queued")

	// The response is built before the orchestrator starts, it owns the
	// job record from here on
	accepted := models.ImportAcceptedResponse{
		Success: true,
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Import queued. Poll the job endpoint for progress.",
	}

	// Detached context, processing outlives the request
	go h.orchestrator.Run(context.Background(), job)

	c.JSON(http.StatusAccepted, accepted)
}

// ListJobs returns the tenant's import jobs, newest first
// GET /api/v1/catalog/import/jobs
func (h *ImportHandler) ListJobs(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.defaultPageSize)))
	if limit < 1 {
		limit = h.defaultPageSize
	}
	if limit > h.maxPageSize {
		limit = h.maxPageSize
	}

	var status *models.ImportJobStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ImportJobStatus(raw)
		switch s {
		case models.ImportJobStatusPending, models.ImportJobStatusProcessing,
			models.ImportJobStatusCompleted, models.ImportJobStatusFailed, models.ImportJobStatusPartial:
			status = &s
		default:
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "INVALID_STATUS",
					Message: "Status must be one of: pending, processing, completed, failed, partial",
				},
			})
			return
		}
	}

	jobs, total, err := h.jobs.List(c.Request.Context(), tenantID, status, page, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list import jobs")
		h.internalError(c, "Failed to list import jobs")
		return
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	c.JSON(http.StatusOK, models.ImportJobListResponse{
		Success: true,
		Data:    jobs,
		Pagination: &models.PaginationInfo{
			Page:        page,
			Limit:       limit,
			Total:       total,
			TotalPages:  totalPages,
			HasNext:     page < totalPages,
			HasPrevious: page > 1,
		},
	})
}

// GetJob returns one import job with its derived progress
// GET /api/v1/catalog/import/jobs/:id
func (h *ImportHandler) GetJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, models.ImportJobResponse{
		Success:  true,
		Data:     job,
		Progress: job.Progress(),
	})
}

// DownloadErrorReport streams the job's row errors as a workbook
// GET /api/v1/catalog/import/jobs/:id/errors/report
func (h *ImportHandler) DownloadErrorReport(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	report, err := h.reporter.Build(job)
	if err != nil {
		if errors.Is(err, services.ErrNoErrors) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NO_ERRORS",
					Message: "This import job has no errors to report",
				},
			})
			return
		}
		h.logger.WithField("jobId", job.ID).WithError(err).Error("Failed to build error report")
		h.internalError(c, "Failed to build error report")
		return
	}
	defer report.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=import_errors_%s.xlsx", job.ID))
	if err := report.Write(c.Writer); err != nil {
		h.logger.WithField("jobId", job.ID).WithError(err).Error("Failed to write error report")
	}
}

// DeleteJob removes a finished import job and its stored backup
// DELETE /api/v1/catalog/import/jobs/:id
func (h *ImportHandler) DeleteJob(c *gin.Context) {
	job, ok := h.loadJob(c)
	if !ok {
		return
	}

	if job.Status == models.ImportJobStatusProcessing {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "JOB_PROCESSING",
				Message: "Import job is still processing and cannot be deleted",
			},
		})
		return
	}

	if err := h.jobs.Delete(c.Request.Context(), job.TenantID, job.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.notFound(c)
			return
		}
		h.logger.WithField("jobId", job.ID).WithError(err).Error("Failed to delete import job")
		h.internalError(c, "Failed to delete import job")
		return
	}

	// Backup cleanup is best effort
	if h.store != nil && job.BackupStorageKey != nil {
		if err := h.store.Delete(c.Request.Context(), *job.BackupStorageKey); err != nil {
			h.logger.WithField("jobId", job.ID).WithError(err).Warn("Failed to delete workbook backup")
		}
	}

	message := "Import job deleted"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: &message,
	})
}

// loadJob parses the :id param and fetches the tenant's job, writing the
// error response itself when the job cannot be served.
func (h *ImportHandler) loadJob(c *gin.Context) (*models.ImportJob, bool) {
	tenantID := middleware.GetTenantID(c)

	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_JOB_ID",
				Message: "Job ID must be a valid UUID",
			},
		})
		return nil, false
	}

	job, err := h.jobs.GetByID(c.Request.Context(), tenantID, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.notFound(c)
			return nil, false
		}
		h.logger.WithField("jobId", jobID).WithError(err).Error("Failed to load import job")
		h.internalError(c, "Failed to load import job")
		return nil, false
	}
	return job, true
}

func (h *ImportHandler) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "JOB_NOT_FOUND",
			Message: "Import job not found",
		},
	})
}

func (h *ImportHandler) internalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "INTERNAL_ERROR",
			Message: message,
		},
	})
}
