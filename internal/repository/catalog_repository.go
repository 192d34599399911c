package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"catalog-import-service/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrDuplicateEntry signals a unique-constraint violation on SKU or
// productId. Two concurrent uploads can both pass the pre-check for the
// same key; the constraint is the authoritative duplicate signal and its
// violation stays row-scoped.
var ErrDuplicateEntry = errors.New("catalog entry with this SKU or product ID already exists")

// CatalogRepositoryInterface abstracts the taxonomy store, the catalog
// uniqueness checks and the catalog/ledger writer (mockable in tests)
type CatalogRepositoryInterface interface {
	FindActiveCategory(ctx context.Context, tenantID, categoryID string) (*models.Category, error)
	FindSubCategory(ctx context.Context, tenantID, subCategoryID, parentID string) (*models.SubCategory, error)
	ExistsBySKU(ctx context.Context, tenantID, sku string) (bool, error)
	ExistsByProductID(ctx context.Context, tenantID, productID string) (bool, error)
	CreateEntryWithMovement(ctx context.Context, entry *models.CatalogEntry, movement *models.StockMovement) error
	InvalidateCatalogCaches(ctx context.Context, tenantID string)
}

// CatalogRepository handles taxonomy lookups and catalog/ledger writes
type CatalogRepository struct {
	db     *gorm.DB
	redis  *redis.Client
	logger *logrus.Entry
}

var _ CatalogRepositoryInterface = (*CatalogRepository)(nil)

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *gorm.DB, redisClient *redis.Client, logger *logrus.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		redis:  redisClient,
		logger: logger.WithField("component", "catalog_repository"),
	}
}

// FindActiveCategory resolves a category by id, requiring it to be active.
// Returns ErrNotFound for missing or inactive categories; any other error
// is an infrastructure failure.
func (r *CatalogRepository) FindActiveCategory(ctx context.Context, tenantID, categoryID string) (*models.Category, error) {
	id, err := uuid.Parse(categoryID)
	if err != nil {
		return nil, ErrNotFound
	}

	var category models.Category
	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND is_active = true", tenantID, id).
		First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &category, nil
}

// FindSubCategory resolves a subcategory by id, requiring its parent to be
// exactly the given category. A subcategory that exists under a different
// parent is ErrNotFound, never a fallback.
func (r *CatalogRepository) FindSubCategory(ctx context.Context, tenantID, subCategoryID, parentID string) (*models.SubCategory, error) {
	subID, err := uuid.Parse(subCategoryID)
	if err != nil {
		return nil, ErrNotFound
	}
	catID, err := uuid.Parse(parentID)
	if err != nil {
		return nil, ErrNotFound
	}

	var sub models.SubCategory
	err = r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND category_id = ?", tenantID, subID, catID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// ExistsBySKU reports whether a catalog entry with this SKU already exists
// for the tenant. Soft-deleted entries still count against the unique index.
func (r *CatalogRepository) ExistsBySKU(ctx context.Context, tenantID, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.CatalogEntry{}).
		Where("tenant_id = ? AND sku = ?", tenantID, sku).
		Count(&count).Error
	return count > 0, err
}

// ExistsByProductID reports whether a catalog entry with this merchant
// product id already exists for the tenant
func (r *CatalogRepository) ExistsByProductID(ctx context.Context, tenantID, productID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.CatalogEntry{}).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Count(&count).Error
	return count > 0, err
}

// CreateEntryWithMovement persists a catalog entry and its opening-stock
// ledger record as one transaction: a committed entry always has a
// matching movement.
func (r *CatalogRepository) CreateEntryWithMovement(ctx context.Context, entry *models.CatalogEntry, movement *models.StockMovement) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		movement.EntryID = entry.ID
		movement.TenantID = entry.TenantID
		movement.CreatedAt = time.Now()
		return tx.Create(movement).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEntry
		}
		return err
	}
	return nil
}

// InvalidateCatalogCaches drops cached catalog listings for a tenant.
// Fired once per job when at least one row committed.
func (r *CatalogRepository) InvalidateCatalogCaches(ctx context.Context, tenantID string) {
	if r.redis == nil {
		return
	}

	pattern := fmt.Sprintf("catalog:list:%s:*", tenantID)
	iter := r.redis.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.logger.WithError(err).WithField("tenantId", tenantID).Warn("Failed to scan catalog cache keys")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		r.logger.WithError(err).WithField("tenantId", tenantID).Warn("Failed to invalidate catalog caches")
	}
}

// isUniqueViolation detects a Postgres unique-constraint error (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
