package services

import (
	"context"
	"errors"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"github.com/sirupsen/logrus"
)

const openingStockReason = "bulk_upload"

// RowCommitter persists one validated row as a catalog entry plus its
// opening-stock ledger record
type RowCommitter struct {
	catalog repository.CatalogRepositoryInterface
	logger  *logrus.Entry
}

// NewRowCommitter creates a new RowCommitter
func NewRowCommitter(catalog repository.CatalogRepositoryInterface, logger *logrus.Logger) *RowCommitter {
	return &RowCommitter{
		catalog: catalog,
		logger:  logger.WithField("component", "row_committer"),
	}
}

// Commit writes the entry and its ledger record as one logical unit.
// Returned errors are human-readable and row-scoped; raw store errors are
// logged but never placed in the merchant-facing error list.
func (c *RowCommitter) Commit(ctx context.Context, tenantID, userID string, row *NormalizedRow, assets *ImportedAssets) error {
	entry := &models.CatalogEntry{
		TenantID:        tenantID,
		ProductID:       row.ProductID,
		SKU:             row.SKU,
		Name:            row.Name,
		Description:     optionalString(row.Description),
		Brand:           optionalString(row.Brand),
		CategoryID:      row.CategoryID,
		SubCategoryID:   row.SubCategoryID,
		Unit:            row.Unit,
		UnitPrice:       row.UnitPrice,
		CurrentStock:    row.CurrentStock,
		MinimumOrderQty: row.MinimumOrderQty,
		DiscountType:    row.DiscountType,
		DiscountValue:   row.DiscountValue,
		TaxType:         row.TaxType,
		Status:          row.Status,
		SeoTitle:        optionalString(row.SeoTitle),
		SeoDescription:  optionalString(row.SeoDescription),
		CreatedBy:       optionalString(userID),
	}

	if len(row.Tags) > 0 {
		tags := make(models.JSONArray, 0, len(row.Tags))
		for _, tag := range row.Tags {
			tags = append(tags, tag)
		}
		entry.Tags = &tags
	}
	if len(assets.Images) > 0 {
		images := make(models.JSONArray, 0, len(assets.Images))
		for _, img := range assets.Images {
			images = append(images, map[string]interface{}{"url": img.URL, "publicId": img.PublicID})
		}
		entry.Images = &images
	}
	if assets.SeoImage != nil {
		seo := models.JSON{"url": assets.SeoImage.URL, "publicId": assets.SeoImage.PublicID}
		entry.SeoImage = &seo
	}

	movement := &models.StockMovement{
		Type:          models.MovementTypeIn,
		Quantity:      row.CurrentStock,
		Reason:        openingStockReason,
		PreviousStock: 0,
		NewStock:      row.CurrentStock,
		PerformedBy:   userID,
	}

	if err := c.catalog.CreateEntryWithMovement(ctx, entry, movement); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// concurrent upload claimed the key between pre-check and commit
			return errors.New("SKU or product ID was claimed by another upload moments ago")
		}
		c.logger.WithFields(logrus.Fields{
			"tenantId": tenantID,
			"sku":      row.SKU,
		}).WithError(err).Error("Failed to commit catalog entry")
		return errors.New("failed to save catalog entry, please retry this row")
	}
	return nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
