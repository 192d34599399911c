package services

import (
	"context"
	"time"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/storage"
	"github.com/sirupsen/logrus"
)

// ImportedAssets holds the re-hosted image references for one row plus any
// non-fatal warnings produced while fetching them
type ImportedAssets struct {
	Images   []models.EntryImage
	SeoImage *models.EntryImage
	Warnings []models.ImportWarning
}

// AssetImporter re-hosts externally supplied image URLs into the platform
// object store. Failures never fail the row: the image is dropped, logged,
// and surfaced as a warning on the job.
type AssetImporter struct {
	store        storage.ObjectStoreInterface
	fetchTimeout time.Duration
	logger       *logrus.Entry
}

// NewAssetImporter creates a new AssetImporter. A nil store disables
// re-hosting; source URLs are then kept as-is.
func NewAssetImporter(store storage.ObjectStoreInterface, fetchTimeout time.Duration, logger *logrus.Logger) *AssetImporter {
	return &AssetImporter{
		store:        store,
		fetchTimeout: fetchTimeout,
		logger:       logger.WithField("component", "asset_importer"),
	}
}

// ImportRowAssets re-hosts the primary, secondary and SEO images of one
// validated row. Each fetch is individually time-bounded so one hanging
// host cannot stall the batch.
func (a *AssetImporter) ImportRowAssets(ctx context.Context, tenantID string, row *NormalizedRow, rowNum int) *ImportedAssets {
	assets := &ImportedAssets{}

	if row.ImageURL != "" {
		if img, ok := a.importOne(ctx, tenantID, row.ImageURL, "imageUrl", rowNum, assets); ok {
			assets.Images = append(assets.Images, img)
		}
	}
	for _, src := range row.SecondaryImages {
		if img, ok := a.importOne(ctx, tenantID, src, "additionalImages", rowNum, assets); ok {
			assets.Images = append(assets.Images, img)
		}
	}
	if row.SeoImage != "" {
		if img, ok := a.importOne(ctx, tenantID, row.SeoImage, "seoImage", rowNum, assets); ok {
			assets.SeoImage = &img
		}
	}
	return assets
}

func (a *AssetImporter) importOne(ctx context.Context, tenantID, sourceURL, field string, rowNum int, assets *ImportedAssets) (models.EntryImage, bool) {
	if a.store == nil {
		return models.EntryImage{URL: sourceURL}, true
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	obj, err := a.store.ImportFromURL(fetchCtx, tenantID, sourceURL)
	if err != nil {
		a.logger.WithFields(logrus.Fields{
			"tenantId": tenantID,
			"row":      rowNum,
			"url":      sourceURL,
		}).WithError(err).Warn("Failed to re-host image, skipping")
		assets.Warnings = append(assets.Warnings, models.ImportWarning{
			Row:     rowNum,
			Field:   field,
			Message: "image could not be downloaded and was skipped: " + sourceURL,
		})
		return models.EntryImage{}, false
	}
	return models.EntryImage{URL: obj.URL, PublicID: obj.PublicID}, true
}
