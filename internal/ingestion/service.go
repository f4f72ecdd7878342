package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/receiptvault-backend/internal/receipts"
	"github.com/angelmondragon/receiptvault-backend/pkg/db/models"
	"github.com/angelmondragon/receiptvault-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
)

type receiptRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Receipt, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.ReceiptStatus, update *receipts.ExtractionUpdate) (int64, error)
}

// Service applies extraction pipeline callbacks to receipt rows.
type Service interface {
	ReportExtraction(ctx context.Context, input ReportInput) (*models.Receipt, error)
}

type service struct {
	repo receiptRepository
	logg *logger.Logger
}

// NewService constructs the ingestion callback service.
func NewService(repo receiptRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("receipt repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// ReportInput is the pipeline's view of one receipt's extraction outcome.
// The extraction fields are only consulted when Status is ready.
type ReportInput struct {
	ReceiptID           uuid.UUID
	Status              enums.ReceiptStatus
	OCRText             *string
	MerchantName        *string
	TotalAmount         *decimal.Decimal
	Currency            *string
	PurchaseDate        *time.Time
	RawExtractedPayload *string
}

// Reportable statuses. The pipeline never moves a receipt backwards, so
// pending and uploaded are not accepted here.
var reportableStatuses = map[enums.ReceiptStatus]bool{
	enums.ReceiptStatusProcessing: true,
	enums.ReceiptStatusReady:      true,
	enums.ReceiptStatusFailed:     true,
}

// ReportExtraction validates the transition and applies it atomically. A
// failed report keeps whatever extraction fields the row already has.
func (s *service) ReportExtraction(ctx context.Context, input ReportInput) (*models.Receipt, error) {
	if input.ReceiptID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "receipt_id is required")
	}
	if !reportableStatuses[input.Status] {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be processing, ready or failed")
	}

	receipt, err := s.repo.FindByID(ctx, input.ReceiptID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
	}

	if !receipt.Status.CanTransition(input.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move receipt from %s to %s", receipt.Status, input.Status)).
			WithDetails(map[string]string{
				"current_status":   receipt.Status.String(),
				"requested_status": input.Status.String(),
			})
	}

	var update *receipts.ExtractionUpdate
	if input.Status == enums.ReceiptStatusReady {
		update = &receipts.ExtractionUpdate{
			OCRText:             input.OCRText,
			MerchantName:        input.MerchantName,
			TotalAmount:         input.TotalAmount,
			Currency:            input.Currency,
			PurchaseDate:        input.PurchaseDate,
			RawExtractedPayload: input.RawExtractedPayload,
		}
	}

	rows, err := s.repo.TransitionStatus(ctx, input.ReceiptID, receipt.Status, input.Status, update)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition receipt status")
	}
	if rows == 0 {
		// Lost a race with a concurrent callback; the row moved under us.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "receipt status changed concurrently")
	}

	if s.logg != nil {
		ctx = s.logg.WithReceiptID(ctx, input.ReceiptID.String())
		s.logg.Info(ctx, fmt.Sprintf("receipt moved to %s", input.Status))
	}

	updated, err := s.repo.FindByID(ctx, input.ReceiptID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload receipt")
	}
	return updated, nil
}
