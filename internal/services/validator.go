package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"github.com/sirupsen/logrus"
)

const maxSecondaryImages = 5

// NormalizedRow is the validated, coerced form of one spreadsheet row,
// ready for asset import and commit
type NormalizedRow struct {
	ProductID       string
	Name            string
	Description     string
	Brand           string
	CategoryID      string
	SubCategoryID   string
	Unit            string
	SKU             string
	UnitPrice       float64
	CurrentStock    int
	MinimumOrderQty int
	DiscountType    models.DiscountType
	DiscountValue   float64
	TaxType         models.TaxType
	Tags            []string
	Status          models.EntryStatus
	ImageURL        string
	SecondaryImages []string
	SeoImage        string
	SeoTitle        string
	SeoDescription  string
}

// ValidationResult is either a normalized row or the full list of
// field-level errors found on it
type ValidationResult struct {
	Valid      bool
	Normalized *NormalizedRow
	Errors     []models.RowError
}

// RowValidator applies structural, referential and business-rule checks to
// one raw row. Checks are independent and all reported; type checks are
// skipped only where the field was already reported missing.
type RowValidator struct {
	catalog repository.CatalogRepositoryInterface
	logger  *logrus.Entry
}

// NewRowValidator creates a new RowValidator
func NewRowValidator(catalog repository.CatalogRepositoryInterface, logger *logrus.Logger) *RowValidator {
	return &RowValidator{
		catalog: catalog,
		logger:  logger.WithField("component", "row_validator"),
	}
}

var requiredFields = []string{
	"productid", "productname", "categoryid", "subcategoryid",
	"unit", "sku", "unitprice", "currentstock",
}

// field display names as they appear in the template header
var fieldNames = map[string]string{
	"productid":        "productId",
	"productname":      "productName",
	"categoryid":       "categoryId",
	"subcategoryid":    "subCategoryId",
	"unit":             "unit",
	"sku":              "sku",
	"unitprice":        "unitPrice",
	"currentstock":     "currentStock",
	"minimumorderqty":  "minimumOrderQty",
	"discounttype":     "discountType",
	"discountvalue":    "discountValue",
	"taxtype":          "taxType",
	"status":           "status",
	"imageurl":         "imageUrl",
	"additionalimages": "additionalImages",
	"seoimage":         "seoImage",
}

// Validate checks one raw row against its 1-based sheet row. The returned
// error is non-nil only for infrastructure failures (store unreachable),
// which are fatal for the whole job; everything row-scoped lands in the
// result's error list.
func (v *RowValidator) Validate(ctx context.Context, tenantID string, row RawRow, rowNum int) (*ValidationResult, error) {
	snapshot := row.Snapshot()

	var rowErrors []models.RowError
	addError := func(field, message string) {
		rowErrors = append(rowErrors, models.RowError{
			Row:     rowNum,
			Field:   field,
			Message: message,
			Data:    snapshot,
		})
	}

	// 1. required-field presence
	missing := make(map[string]bool)
	for _, field := range requiredFields {
		if row[field] == "" {
			missing[field] = true
			addError(fieldNames[field], fmt.Sprintf("%s is required", fieldNames[field]))
		}
	}

	normalized := &NormalizedRow{
		ProductID:       row["productid"],
		Name:            row["productname"],
		Description:     row["description"],
		Brand:           row["brand"],
		CategoryID:      row["categoryid"],
		SubCategoryID:   row["subcategoryid"],
		Unit:            strings.ToLower(row["unit"]),
		SKU:             row["sku"],
		MinimumOrderQty: 1,
		DiscountType:    models.DiscountTypeFlat,
		TaxType:         models.TaxTypeExclusive,
		Status:          models.EntryStatusActive,
		SeoTitle:        row["seotitle"],
		SeoDescription:  row["seodescription"],
	}

	// 2. enum membership
	if !missing["unit"] && !containsString(models.ValidUnits, normalized.Unit) {
		addError("unit", fmt.Sprintf("invalid unit %q, must be one of: %s", row["unit"], strings.Join(models.ValidUnits, ", ")))
	}
	if raw := strings.ToLower(row["discounttype"]); raw != "" {
		switch models.DiscountType(raw) {
		case models.DiscountTypeFlat, models.DiscountTypePercentage:
			normalized.DiscountType = models.DiscountType(raw)
		default:
			addError("discountType", fmt.Sprintf("invalid discountType %q, must be one of: flat, percentage", row["discounttype"]))
		}
	}
	if raw := strings.ToLower(row["taxtype"]); raw != "" {
		switch models.TaxType(raw) {
		case models.TaxTypeInclusive, models.TaxTypeExclusive:
			normalized.TaxType = models.TaxType(raw)
		default:
			addError("taxType", fmt.Sprintf("invalid taxType %q, must be one of: inclusive, exclusive", row["taxtype"]))
		}
	}
	if raw := strings.ToLower(row["status"]); raw != "" {
		switch models.EntryStatus(raw) {
		case models.EntryStatusActive, models.EntryStatusInactive:
			normalized.Status = models.EntryStatus(raw)
		default:
			addError("status", fmt.Sprintf("invalid status %q, must be one of: active, inactive", row["status"]))
		}
	}

	// 3. numeric parseability (skipped for required fields already missing)
	priceOK := false
	if !missing["unitprice"] {
		if price, err := parseNumber(row["unitprice"]); err != nil {
			addError("unitPrice", fmt.Sprintf("unitPrice %q is not a valid number", row["unitprice"]))
		} else {
			normalized.UnitPrice = price
			priceOK = true
		}
	}
	if !missing["currentstock"] {
		if stock, err := parseInteger(row["currentstock"]); err != nil {
			addError("currentStock", fmt.Sprintf("currentStock %q is not a valid whole number", row["currentstock"]))
		} else {
			normalized.CurrentStock = stock
		}
	}
	if raw := row["minimumorderqty"]; raw != "" {
		if qty, err := parseInteger(raw); err != nil {
			addError("minimumOrderQty", fmt.Sprintf("minimumOrderQty %q is not a valid whole number", raw))
		} else {
			normalized.MinimumOrderQty = qty
		}
	}
	discountOK := false
	if raw := row["discountvalue"]; raw != "" {
		if value, err := parseNumber(raw); err != nil {
			addError("discountValue", fmt.Sprintf("discountValue %q is not a valid number", raw))
		} else {
			normalized.DiscountValue = value
			discountOK = true
		}
	}

	// 4. discount consistency
	if discountOK {
		switch normalized.DiscountType {
		case models.DiscountTypeFlat:
			if priceOK && normalized.DiscountValue > normalized.UnitPrice {
				addError("discountValue", fmt.Sprintf("flat discount %v exceeds unitPrice %v", normalized.DiscountValue, normalized.UnitPrice))
			}
		case models.DiscountTypePercentage:
			if normalized.DiscountValue < 0 || normalized.DiscountValue > 100 {
				addError("discountValue", fmt.Sprintf("percentage discount %v must be between 0 and 100", normalized.DiscountValue))
			}
		}
	}

	// 5. image URL syntax
	if raw := row["imageurl"]; raw != "" {
		if isValidImageURL(raw) {
			normalized.ImageURL = raw
		} else {
			addError("imageUrl", fmt.Sprintf("invalid image URL %q", raw))
		}
	}
	for i, raw := range splitList(row["additionalimages"]) {
		if i >= maxSecondaryImages {
			addError("additionalImages", fmt.Sprintf("at most %d additional images are allowed, %q is one too many", maxSecondaryImages, raw))
			continue
		}
		if isValidImageURL(raw) {
			normalized.SecondaryImages = append(normalized.SecondaryImages, raw)
		} else {
			addError("additionalImages", fmt.Sprintf("invalid image URL %q", raw))
		}
	}
	if raw := row["seoimage"]; raw != "" {
		if isValidImageURL(raw) {
			normalized.SeoImage = raw
		} else {
			addError("seoImage", fmt.Sprintf("invalid image URL %q", raw))
		}
	}

	// 6. referential integrity
	if !missing["categoryid"] {
		_, err := v.catalog.FindActiveCategory(ctx, tenantID, row["categoryid"])
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("category lookup failed: %w", err)
			}
			addError("categoryId", fmt.Sprintf("category %q not found or not active", row["categoryid"]))
		} else if !missing["subcategoryid"] {
			_, err := v.catalog.FindSubCategory(ctx, tenantID, row["subcategoryid"], row["categoryid"])
			if err != nil {
				if !errors.Is(err, repository.ErrNotFound) {
					return nil, fmt.Errorf("subcategory lookup failed: %w", err)
				}
				addError("subCategoryId", fmt.Sprintf("subcategory %q does not belong to category %q", row["subcategoryid"], row["categoryid"]))
			}
		}
	}

	// 7. global uniqueness
	if !missing["sku"] {
		exists, err := v.catalog.ExistsBySKU(ctx, tenantID, row["sku"])
		if err != nil {
			return nil, fmt.Errorf("SKU uniqueness check failed: %w", err)
		}
		if exists {
			addError("sku", fmt.Sprintf("SKU %q already exists in the catalog", row["sku"]))
		}
	}
	if !missing["productid"] {
		exists, err := v.catalog.ExistsByProductID(ctx, tenantID, row["productid"])
		if err != nil {
			return nil, fmt.Errorf("product ID uniqueness check failed: %w", err)
		}
		if exists {
			addError("productId", fmt.Sprintf("product ID %q already exists in the catalog", row["productid"]))
		}
	}

	if len(rowErrors) > 0 {
		return &ValidationResult{Valid: false, Errors: rowErrors}, nil
	}

	normalized.Tags = normalizeTags(row["tags"])
	return &ValidationResult{Valid: true, Normalized: normalized}, nil
}

// parseNumber parses a numeric field, tolerating thousands separators
// ("1,234.50" parses as 1234.5)
func parseNumber(value string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	return strconv.ParseFloat(cleaned, 64)
}

// parseInteger parses a whole-number field, tolerating thousands separators
func parseInteger(value string) (int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	return strconv.Atoi(cleaned)
}

func isValidImageURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// normalizeTags lower-cases and deduplicates a comma-separated tag list,
// preserving first-seen order
func normalizeTags(value string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, tag := range splitList(value) {
		lower := strings.ToLower(tag)
		if !seen[lower] {
			seen[lower] = true
			tags = append(tags, lower)
		}
	}
	return tags
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
