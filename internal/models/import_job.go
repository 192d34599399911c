package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ImportJobStatus represents the lifecycle status of an import job
type ImportJobStatus string

const (
	ImportJobStatusPending    ImportJobStatus = "pending"
	ImportJobStatusProcessing ImportJobStatus = "processing"
	ImportJobStatusCompleted  ImportJobStatus = "completed"
	ImportJobStatusFailed     ImportJobStatus = "failed"
	ImportJobStatusPartial    ImportJobStatus = "partial"
)

// RowError represents a row-scoped import failure. Row numbers are
// 1-based spreadsheet rows including the header, so data row i is i+2.
type RowError struct {
	Row     int               `json:"row"`
	Field   string            `json:"field"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

// ImportWarning represents a non-fatal issue on a row that still committed,
// such as an image that could not be re-hosted.
type ImportWarning struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ImportJob tracks the lifecycle, counters and full error list of one
// bulk catalog upload. Mutated only by the orchestrator while processing.
type ImportJob struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"not null;index:idx_import_jobs_tenant;index:idx_import_jobs_tenant_status"`
	UserID   string    `json:"userId" gorm:"not null"`

	FileName         string  `json:"fileName" gorm:"not null"`
	FilePath         string  `json:"-" gorm:"not null"`
	BackupStorageKey *string `json:"backupStorageKey,omitempty"`
	BackupURL        *string `json:"backupUrl,omitempty"`

	TotalRows     int `json:"totalRows" gorm:"not null;default:0"`
	ProcessedRows int `json:"processedRows" gorm:"not null;default:0"`
	SuccessCount  int `json:"successCount" gorm:"not null;default:0"`
	FailedCount   int `json:"failedCount" gorm:"not null;default:0"`

	Status   ImportJobStatus `json:"status" gorm:"not null;default:'pending';index:idx_import_jobs_tenant_status"`
	Errors   *JSONArray      `json:"errors,omitempty" gorm:"type:jsonb"`
	Warnings *JSONArray      `json:"warnings,omitempty" gorm:"type:jsonb"`

	StartedAt             *time.Time `json:"startedAt,omitempty"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
	ProcessingTimeSeconds float64    `json:"processingTimeSeconds"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// Progress returns the completion percentage, 0 when no rows were counted.
func (j *ImportJob) Progress() int {
	if j.TotalRows == 0 {
		return 0
	}
	return int(math.Round(float64(j.ProcessedRows) / float64(j.TotalRows) * 100))
}

// ImportJobResponse wraps a job with its derived progress percentage
type ImportJobResponse struct {
	Success  bool       `json:"success"`
	Data     *ImportJob `json:"data"`
	Progress int        `json:"progress"`
}

// ImportJobListResponse represents a paginated job listing
type ImportJobListResponse struct {
	Success    bool            `json:"success"`
	Data       []ImportJob     `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

// ImportAcceptedResponse is returned by the upload intake once the job is queued
type ImportAcceptedResponse struct {
	Success bool            `json:"success"`
	JobID   uuid.UUID       `json:"jobId"`
	Status  ImportJobStatus `json:"status"`
	Message string          `json:"message"`
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number, enum, url, uuid
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of the import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// CatalogImportColumns returns the canonical column set of the bulk
// catalog import template. The order here is the header order.
func CatalogImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "productId", Description: "Merchant-unique product identifier", Required: true, Type: "string", Example: "PRD-001"},
		{Name: "productName", Description: "Product display name", Required: true, Type: "string", Example: "Blue Cotton T-Shirt"},
		{Name: "description", Description: "Product description", Required: false, Type: "string", Example: "Soft cotton crew-neck tee"},
		{Name: "categoryId", Description: "Category UUID (must be an active category)", Required: true, Type: "uuid", Example: "7f0f3e5a-93b1-4f07-9c60-1a2b3c4d5e6f"},
		{Name: "subCategoryId", Description: "Subcategory UUID (must belong to categoryId)", Required: true, Type: "uuid", Example: "0d9e8c7b-6a5f-4e3d-2c1b-a09f8e7d6c5b"},
		{Name: "brand", Description: "Brand name", Required: false, Type: "string", Example: "Acme"},
		{Name: "unit", Description: "Unit of sale: pc, kg, gm, ltr, ml, box, pack, pair, dozen", Required: true, Type: "enum", Example: "pc"},
		{Name: "sku", Description: "Unique stock keeping unit", Required: true, Type: "string", Example: "TSH-BLU-001"},
		{Name: "unitPrice", Description: "Price per unit", Required: true, Type: "number", Example: "29.99"},
		{Name: "currentStock", Description: "Opening stock quantity", Required: true, Type: "number", Example: "100"},
		{Name: "minimumOrderQty", Description: "Minimum order quantity (default 1)", Required: false, Type: "number", Example: "1"},
		{Name: "discountType", Description: "Discount type: flat or percentage", Required: false, Type: "enum", Example: "percentage"},
		{Name: "discountValue", Description: "Discount amount (flat: <= unitPrice, percentage: 0-100)", Required: false, Type: "number", Example: "10"},
		{Name: "taxType", Description: "Tax type: inclusive or exclusive", Required: false, Type: "enum", Example: "exclusive"},
		{Name: "tags", Description: "Comma-separated tags (lower-cased, deduplicated)", Required: false, Type: "string", Example: "summer, cotton"},
		{Name: "status", Description: "active or inactive (default active)", Required: false, Type: "enum", Example: "active"},
		{Name: "imageUrl", Description: "Primary image URL (http/https)", Required: false, Type: "url", Example: "https://example.com/images/tshirt.jpg"},
		{Name: "additionalImages", Description: "Up to 5 secondary image URLs, comma-separated", Required: false, Type: "url", Example: "https://example.com/images/tshirt-back.jpg"},
		{Name: "seoImage", Description: "SEO/OG image URL", Required: false, Type: "url", Example: "https://example.com/images/tshirt-og.jpg"},
		{Name: "seoTitle", Description: "SEO title", Required: false, Type: "string", Example: "Blue Cotton T-Shirt | Acme"},
		{Name: "seoDescription", Description: "SEO description", Required: false, Type: "string", Example: "Breathable everyday tee in blue"},
	}
}

// CatalogImportTemplate returns the template definition for catalog import
func CatalogImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "catalog",
		Version: "1.0",
		Columns: CatalogImportColumns(),
	}
}
