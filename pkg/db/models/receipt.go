package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/receiptvault-backend/pkg/enums"
)

// Receipt is one uploaded document and its extraction lifecycle.
//
// ObjectKey stays NULL until the upload orchestrator assigns it; the unique
// index therefore tolerates any number of freshly created rows. OwnerID is
// immutable after creation. Every extraction field is nullable: a receipt the
// pipeline could not fully parse is still queryable.
type Receipt struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID             uuid.UUID           `gorm:"column:owner_id;type:uuid;not null;index"`
	ObjectKey           *string             `gorm:"column:object_key;uniqueIndex"`
	Status              enums.ReceiptStatus `gorm:"column:status;not null;default:pending"`
	OCRText             *string             `gorm:"column:ocr_text"`
	MerchantName        *string             `gorm:"column:merchant_name"`
	TotalAmount         *decimal.Decimal    `gorm:"column:total_amount;type:numeric(12,2)"`
	Currency            *string             `gorm:"column:currency"`
	PurchaseDate        *time.Time          `gorm:"column:purchase_date"`
	RawExtractedPayload *string             `gorm:"column:raw_extracted_payload;type:jsonb"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
