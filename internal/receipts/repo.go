package receipts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/receiptvault-backend/pkg/db/models"
	"github.com/angelmondragon/receiptvault-backend/pkg/enums"
)

// Repository exposes receipt persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a receipt repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a receipt record.
func (r *Repository) Create(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error) {
	if err := r.db.WithContext(ctx).Create(receipt).Error; err != nil {
		return nil, err
	}
	return receipt, nil
}

// FindByID retrieves a receipt by ID regardless of owner. Used by the
// ingestion callback, which authenticates with the pipeline secret.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := r.db.WithContext(ctx).First(&receipt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

// FindByIDForOwner retrieves a receipt scoped to its owner. A receipt owned
// by someone else is indistinguishable from a missing one.
func (r *Repository) FindByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		First(&receipt, "id = ? AND owner_id = ?", id, ownerID).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ListByOwner returns the owner's receipts, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Receipt, error) {
	var rows []models.Receipt
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AssignObjectKey sets the object key on a freshly created receipt. The guard
// keeps the assignment one-shot: only a pending row without a key qualifies.
func (r *Repository) AssignObjectKey(ctx context.Context, id, ownerID uuid.UUID, key string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("id = ? AND owner_id = ? AND status = ? AND object_key IS NULL", id, ownerID, enums.ReceiptStatusPending).
		Update("object_key", key)
	return result.RowsAffected, result.Error
}

// MarkUploaded flips pending receipts with assigned keys to uploaded.
// Receipts outside that set are skipped, not failed.
func (r *Repository) MarkUploaded(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("id IN ? AND owner_id = ? AND status = ? AND object_key IS NOT NULL", ids, ownerID, enums.ReceiptStatusPending).
		Update("status", enums.ReceiptStatusUploaded)
	return result.RowsAffected, result.Error
}

// ExtractionUpdate carries the fields written when the pipeline reports a
// fully processed receipt.
type ExtractionUpdate struct {
	OCRText             *string
	MerchantName        *string
	TotalAmount         *decimal.Decimal
	Currency            *string
	PurchaseDate        *time.Time
	RawExtractedPayload *string
}

// TransitionStatus moves a receipt from one status to another, optionally
// applying extraction fields in the same statement. The status guard in the
// WHERE clause makes concurrent callbacks race-safe: only one wins.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ReceiptStatus, update *ExtractionUpdate) (int64, error) {
	values := map[string]any{"status": to}
	if update != nil {
		if update.OCRText != nil {
			values["ocr_text"] = *update.OCRText
		}
		if update.MerchantName != nil {
			values["merchant_name"] = *update.MerchantName
		}
		if update.TotalAmount != nil {
			values["total_amount"] = *update.TotalAmount
		}
		if update.Currency != nil {
			values["currency"] = *update.Currency
		}
		if update.PurchaseDate != nil {
			values["purchase_date"] = *update.PurchaseDate
		}
		if update.RawExtractedPayload != nil {
			values["raw_extracted_payload"] = *update.RawExtractedPayload
		}
	}

	result := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	return result.RowsAffected, result.Error
}

// Delete removes a receipt record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Receipt{}).Error
}
