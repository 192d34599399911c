package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntryStatus represents the status of a catalog entry
type EntryStatus string

const (
	EntryStatusActive   EntryStatus = "active"
	EntryStatusInactive EntryStatus = "inactive"
)

// DiscountType represents how a discount value is interpreted
type DiscountType string

const (
	DiscountTypeFlat       DiscountType = "flat"
	DiscountTypePercentage DiscountType = "percentage"
)

// TaxType represents whether tax is included in the unit price
type TaxType string

const (
	TaxTypeInclusive TaxType = "inclusive"
	TaxTypeExclusive TaxType = "exclusive"
)

// Units accepted by the import template
var ValidUnits = []string{"pc", "kg", "gm", "ltr", "ml", "box", "pack", "pair", "dozen"}

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// EntryImage represents a re-hosted image attached to a catalog entry
type EntryImage struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// CatalogEntry represents one persisted, normalized catalog product.
// The import pipeline only creates entries; it never mutates them afterward.
type CatalogEntry struct {
	ID              uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID        string          `json:"tenantId" gorm:"not null;index:idx_catalog_tenant_id;index:idx_catalog_tenant_sku,unique;index:idx_catalog_tenant_product_id,unique"`
	ProductID       string          `json:"productId" gorm:"not null;index:idx_catalog_tenant_product_id,unique"`
	SKU             string          `json:"sku" gorm:"not null;index:idx_catalog_tenant_sku,unique"`
	Name            string          `json:"name" gorm:"not null"`
	Description     *string         `json:"description,omitempty"`
	Brand           *string         `json:"brand,omitempty"`
	CategoryID      string          `json:"categoryId" gorm:"not null;index"`
	SubCategoryID   string          `json:"subCategoryId" gorm:"not null;index"`
	Unit            string          `json:"unit" gorm:"not null"`
	UnitPrice       float64         `json:"unitPrice" gorm:"not null"`
	CurrentStock    int             `json:"currentStock" gorm:"not null;default:0"`
	MinimumOrderQty int             `json:"minimumOrderQty" gorm:"not null;default:1"`
	DiscountType    DiscountType    `json:"discountType" gorm:"not null;default:'flat'"`
	DiscountValue   float64         `json:"discountValue" gorm:"not null;default:0"`
	TaxType         TaxType         `json:"taxType" gorm:"not null;default:'exclusive'"`
	Tags            *JSONArray      `json:"tags,omitempty" gorm:"type:jsonb"`
	Status          EntryStatus     `json:"status" gorm:"not null;default:'active';index"`
	Images          *JSONArray      `json:"images,omitempty" gorm:"type:jsonb"`
	SeoImage        *JSON           `json:"seoImage,omitempty" gorm:"column:seo_image;type:jsonb"`
	SeoTitle        *string         `json:"seoTitle,omitempty" gorm:"column:seo_title;type:text"`
	SeoDescription  *string         `json:"seoDescription,omitempty" gorm:"column:seo_description;type:text"`
	CreatedBy       *string         `json:"createdBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DeletedAt       *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// MovementType represents the direction of a stock movement
type MovementType string

const (
	MovementTypeIn  MovementType = "in"
	MovementTypeOut MovementType = "out"
)

// StockMovement represents one immutable inventory ledger record.
// Append-only; never updated or deleted by the import pipeline.
type StockMovement struct {
	ID            uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      string       `json:"tenantId" gorm:"not null;index"`
	EntryID       uuid.UUID    `json:"entryId" gorm:"type:uuid;not null;index"`
	Type          MovementType `json:"type" gorm:"not null"`
	Quantity      int          `json:"quantity" gorm:"not null"`
	Reason        string       `json:"reason" gorm:"not null"`
	PreviousStock int          `json:"previousStock" gorm:"not null"`
	NewStock      int          `json:"newStock" gorm:"not null"`
	PerformedBy   string       `json:"performedBy" gorm:"not null"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// Category represents a taxonomy category (read-only for import lookup)
type Category struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID string    `json:"tenantId" gorm:"column:tenant_id;not null;index"`
	Name     string    `json:"name" gorm:"not null"`
	IsActive *bool     `json:"isActive" gorm:"column:is_active;default:true"`
}

// SubCategory represents a taxonomy subcategory (read-only for import lookup)
type SubCategory struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID   string    `json:"tenantId" gorm:"column:tenant_id;not null;index"`
	CategoryID uuid.UUID `json:"categoryId" gorm:"column:category_id;type:uuid;not null;index"`
	Name       string    `json:"name" gorm:"not null"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// TableName returns the table name for the CatalogEntry model
func (CatalogEntry) TableName() string {
	return "catalog_entries"
}

// TableName returns the table name for the StockMovement model
func (StockMovement) TableName() string {
	return "stock_movements"
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// TableName returns the table name for the SubCategory model
func (SubCategory) TableName() string {
	return "sub_categories"
}
