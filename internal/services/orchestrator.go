package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"github.com/sirupsen/logrus"
)

// ImportEventPublisher publishes the completion event for a finished job
type ImportEventPublisher interface {
	PublishImportCompleted(job *models.ImportJob)
}

// ImportOrchestrator drives one import job from the uploaded workbook to a
// terminal status. Run is the only entry point and owns all mutation of the
// job record while the job is processing.
type ImportOrchestrator struct {
	parser    *WorkbookParser
	validator *RowValidator
	assets    *AssetImporter
	committer *RowCommitter
	jobs      repository.ImportJobsRepositoryInterface
	catalog   repository.CatalogRepositoryInterface
	publisher ImportEventPublisher
	logger    *logrus.Entry
}

// NewImportOrchestrator creates a new ImportOrchestrator. publisher may be
// nil when no event broker is configured.
func NewImportOrchestrator(
	parser *WorkbookParser,
	validator *RowValidator,
	assets *AssetImporter,
	committer *RowCommitter,
	jobs repository.ImportJobsRepositoryInterface,
	catalog repository.CatalogRepositoryInterface,
	publisher ImportEventPublisher,
	logger *logrus.Logger,
) *ImportOrchestrator {
	return &ImportOrchestrator{
		parser:    parser,
		validator: validator,
		assets:    assets,
		committer: committer,
		jobs:      jobs,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger.WithField("component", "import_orchestrator"),
	}
}

// Run processes the job to completion. The uploaded workbook is removed
// from local disk on every exit path, including fatal failures.
func (o *ImportOrchestrator) Run(ctx context.Context, job *models.ImportJob) {
	defer func() {
		if err := os.Remove(job.FilePath); err != nil && !os.IsNotExist(err) {
			o.logger.WithField("jobId", job.ID).WithError(err).Warn("Failed to remove uploaded workbook")
		}
	}()

	log := o.logger.WithFields(logrus.Fields{
		"jobId":    job.ID,
		"tenantId": job.TenantID,
	})

	source, err := o.parser.Open(job.FilePath)
	if err != nil {
		log.WithError(err).Error("Failed to open uploaded workbook")
		o.failJob(ctx, job, models.RowError{
			Row:     0,
			Field:   "file",
			Message: fmt.Sprintf("file could not be processed: %v", err),
		})
		return
	}
	defer source.Close()

	started := time.Now()
	job.Status = models.ImportJobStatusProcessing
	job.StartedAt = &started
	job.TotalRows = source.TotalRows()
	if err := o.jobs.Save(ctx, job); err != nil {
		log.WithError(err).Error("Failed to mark job as processing")
		return
	}

	log.WithField("totalRows", job.TotalRows).Info("Import job started")

	var (
		rowErrors []models.RowError
		warnings  []models.ImportWarning
		processed int
		success   int
		failed    int
	)
	claimedSKUs := make(map[string]int)
	claimedProductIDs := make(map[string]int)

	for {
		row, ok, err := source.Next()
		if err != nil {
			rowErrors = append(rowErrors, models.RowError{
				Row:     source.CurrentRow(),
				Field:   "file",
				Message: fmt.Sprintf("row could not be read: %v", err),
			})
			failed++
			processed++
			break
		}
		if !ok {
			break
		}

		rowNum, _ := strconv.Atoi(row["_row"])

		if dupErrors := o.checkBatchDuplicates(row, rowNum, claimedSKUs, claimedProductIDs); len(dupErrors) > 0 {
			rowErrors = append(rowErrors, dupErrors...)
			failed++
			processed++
			o.reportProgress(ctx, job, processed, success, failed)
			continue
		}

		result, err := o.validator.Validate(ctx, job.TenantID, row, rowNum)
		if err != nil {
			log.WithField("row", rowNum).WithError(err).Error("Validation aborted by infrastructure error")
			// rows already committed keep their counters and errors
			job.ProcessedRows = processed
			job.SuccessCount = success
			job.FailedCount = failed
			job.Status = models.ImportJobStatusFailed
			o.finishJob(ctx, job, append(rowErrors, models.RowError{
				Row:     rowNum,
				Field:   "general",
				Message: "import aborted by an internal error, no further rows were processed",
			}), warnings)
			return
		}

		if !result.Valid {
			rowErrors = append(rowErrors, result.Errors...)
			failed++
		} else {
			claimedSKUs[result.Normalized.SKU] = rowNum
			claimedProductIDs[result.Normalized.ProductID] = rowNum

			assets := o.assets.ImportRowAssets(ctx, job.TenantID, result.Normalized, rowNum)
			warnings = append(warnings, assets.Warnings...)

			if err := o.committer.Commit(ctx, job.TenantID, job.UserID, result.Normalized, assets); err != nil {
				rowErrors = append(rowErrors, models.RowError{
					Row:     rowNum,
					Field:   "general",
					Message: err.Error(),
					Data:    row.Snapshot(),
				})
				failed++
			} else {
				success++
			}
		}

		processed++
		o.reportProgress(ctx, job, processed, success, failed)
	}

	job.ProcessedRows = processed
	job.SuccessCount = success
	job.FailedCount = failed
	job.Status = terminalStatus(success, failed)
	o.finishJob(ctx, job, rowErrors, warnings)

	if success > 0 {
		o.catalog.InvalidateCatalogCaches(ctx, job.TenantID)
		if o.publisher != nil {
			o.publisher.PublishImportCompleted(job)
		}
	}

	log.WithFields(logrus.Fields{
		"status":       job.Status,
		"successCount": success,
		"failedCount":  failed,
	}).Info("Import job finished")
}

// checkBatchDuplicates rejects rows whose SKU or product ID was already
// claimed by an earlier valid row of the same workbook.
func (o *ImportOrchestrator) checkBatchDuplicates(row RawRow, rowNum int, skus, productIDs map[string]int) []models.RowError {
	var errs []models.RowError
	if sku := row["sku"]; sku != "" {
		if firstRow, taken := skus[sku]; taken {
			errs = append(errs, models.RowError{
				Row:     rowNum,
				Field:   "sku",
				Message: fmt.Sprintf("SKU '%s' is a duplicate within this upload, first used on row %d", sku, firstRow),
				Data:    row.Snapshot(),
			})
		}
	}
	if productID := row["productid"]; productID != "" {
		if firstRow, taken := productIDs[productID]; taken {
			errs = append(errs, models.RowError{
				Row:     rowNum,
				Field:   "productId",
				Message: fmt.Sprintf("product ID '%s' is a duplicate within this upload, first used on row %d", productID, firstRow),
				Data:    row.Snapshot(),
			})
		}
	}
	return errs
}

func (o *ImportOrchestrator) reportProgress(ctx context.Context, job *models.ImportJob, processed, success, failed int) {
	if err := o.jobs.UpdateProgress(ctx, job.ID, processed, success, failed); err != nil {
		o.logger.WithField("jobId", job.ID).WithError(err).Warn("Failed to update job progress")
	}
}

// failJob moves the job to failed with a single file-level error. Used
// when the workbook is rejected before any row was processed.
func (o *ImportOrchestrator) failJob(ctx context.Context, job *models.ImportJob, cause models.RowError) {
	job.Status = models.ImportJobStatusFailed
	o.finishJob(ctx, job, []models.RowError{cause}, nil)
}

func (o *ImportOrchestrator) finishJob(ctx context.Context, job *models.ImportJob, rowErrors []models.RowError, warnings []models.ImportWarning) {
	completed := time.Now()
	job.CompletedAt = &completed
	if job.StartedAt != nil {
		job.ProcessingTimeSeconds = completed.Sub(*job.StartedAt).Seconds()
	}

	if len(rowErrors) > 0 {
		arr := make(models.JSONArray, 0, len(rowErrors))
		for _, e := range rowErrors {
			arr = append(arr, e)
		}
		job.Errors = &arr
	}
	if len(warnings) > 0 {
		arr := make(models.JSONArray, 0, len(warnings))
		for _, w := range warnings {
			arr = append(arr, w)
		}
		job.Warnings = &arr
	}

	if err := o.jobs.Save(ctx, job); err != nil {
		o.logger.WithField("jobId", job.ID).WithError(err).Error("Failed to save finished job")
	}
}

// terminalStatus maps final counters to the job's terminal status
func terminalStatus(success, failed int) models.ImportJobStatus {
	switch {
	case failed == 0:
		return models.ImportJobStatusCompleted
	case success > 0:
		return models.ImportJobStatusPartial
	default:
		return models.ImportJobStatusFailed
	}
}
