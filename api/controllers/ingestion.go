package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/receiptvault-backend/api/responses"
	"github.com/angelmondragon/receiptvault-backend/api/validators"
	"github.com/angelmondragon/receiptvault-backend/internal/ingestion"
	"github.com/angelmondragon/receiptvault-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
)

type extractionReportRequest struct {
	ReceiptID    string          `json:"receipt_id" validate:"required,uuid"`
	Status       string          `json:"status" validate:"required"`
	OCRText      *string         `json:"ocr_text"`
	MerchantName *string         `json:"merchant_name"`
	TotalAmount  *string         `json:"total_amount"`
	Currency     *string         `json:"currency" validate:"omitempty,len=3"`
	PurchaseDate *string         `json:"purchase_date"`
	RawExtracted json.RawMessage `json:"raw_extracted_json"`
}

func (req extractionReportRequest) toInput() (ingestion.ReportInput, error) {
	receiptID, err := uuid.Parse(req.ReceiptID)
	if err != nil {
		return ingestion.ReportInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receipt id")
	}

	status, err := enums.ParseReceiptStatus(req.Status)
	if err != nil {
		return ingestion.ReportInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
	}

	input := ingestion.ReportInput{
		ReceiptID:    receiptID,
		Status:       status,
		OCRText:      req.OCRText,
		MerchantName: req.MerchantName,
		Currency:     req.Currency,
	}

	if req.TotalAmount != nil {
		amount, err := decimal.NewFromString(*req.TotalAmount)
		if err != nil {
			return ingestion.ReportInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid total_amount")
		}
		input.TotalAmount = &amount
	}

	if req.PurchaseDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.PurchaseDate)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, *req.PurchaseDate)
		}
		if err != nil {
			return ingestion.ReportInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase_date")
		}
		input.PurchaseDate = &parsed
	}

	if len(req.RawExtracted) > 0 {
		raw := string(req.RawExtracted)
		input.RawExtractedPayload = &raw
	}

	return input, nil
}

// IngestionExtraction receives status callbacks from the extraction pipeline.
func IngestionExtraction(svc ingestion.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ingestion service unavailable"))
			return
		}

		var payload extractionReportRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.ReportExtraction(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toReceiptResponse(receipt, true))
	}
}
