package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/receiptvault-backend/api/middleware"
	"github.com/angelmondragon/receiptvault-backend/api/responses"
	"github.com/angelmondragon/receiptvault-backend/api/validators"
	"github.com/angelmondragon/receiptvault-backend/internal/receipts"
	"github.com/angelmondragon/receiptvault-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
)

// Entry fields are not validated here; the batch is partial-success and the
// service skips bad entries without failing their siblings.
type uploadEntryRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type receiptsUploadRequest struct {
	Files []uploadEntryRequest `json:"files" validate:"required,min=1"`
}

type receiptsCompleteRequest struct {
	ReceiptIDs []string `json:"receipt_ids" validate:"required,min=1,dive,uuid"`
}

type receiptResponse struct {
	ID           uuid.UUID  `json:"id"`
	Status       string     `json:"status"`
	MerchantName *string    `json:"merchant_name,omitempty"`
	TotalAmount  *string    `json:"total_amount,omitempty"`
	Currency     *string    `json:"currency,omitempty"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`
	OCRText      *string    `json:"ocr_text,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toReceiptResponse(receipt *models.Receipt, includeOCR bool) receiptResponse {
	resp := receiptResponse{
		ID:           receipt.ID,
		Status:       receipt.Status.String(),
		MerchantName: receipt.MerchantName,
		Currency:     receipt.Currency,
		PurchaseDate: receipt.PurchaseDate,
		CreatedAt:    receipt.CreatedAt,
		UpdatedAt:    receipt.UpdatedAt,
	}
	if receipt.TotalAmount != nil {
		amount := receipt.TotalAmount.StringFixed(2)
		resp.TotalAmount = &amount
	}
	if includeOCR {
		resp.OCRText = receipt.OCRText
	}
	return resp
}

func ownerIDFromRequest(r *http.Request) (uuid.UUID, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return uid, nil
}

// ReceiptsUpload creates pending receipts and returns signed PUT URLs.
func ReceiptsUpload(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}

		ownerID, err := ownerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload receiptsUploadRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries := make([]receipts.UploadEntryInput, 0, len(payload.Files))
		for _, file := range payload.Files {
			entries = append(entries, receipts.UploadEntryInput{
				FileName:    file.FileName,
				ContentType: file.ContentType,
				SizeBytes:   file.SizeBytes,
			})
		}

		out, err := svc.InitiateUpload(r.Context(), ownerID, entries)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

// ReceiptsComplete marks uploads finished and queues extraction.
func ReceiptsComplete(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}

		ownerID, err := ownerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload receiptsCompleteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ids := make([]uuid.UUID, 0, len(payload.ReceiptIDs))
		for _, raw := range payload.ReceiptIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receipt id"))
				return
			}
			ids = append(ids, id)
		}

		out, err := svc.CompleteUpload(r.Context(), ownerID, ids)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, out)
	}
}

// ReceiptsList returns the caller's receipts, newest first.
func ReceiptsList(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}

		ownerID, err := ownerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]receiptResponse, 0, len(rows))
		for i := range rows {
			out = append(out, toReceiptResponse(&rows[i], false))
		}
		responses.WriteSuccess(w, out)
	}
}

// ReceiptsGet returns one receipt with its extracted fields.
func ReceiptsGet(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}

		ownerID, err := ownerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receiptID, err := uuid.Parse(chi.URLParam(r, "receiptId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receipt id"))
			return
		}

		receipt, err := svc.Get(r.Context(), ownerID, receiptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toReceiptResponse(receipt, true))
	}
}

// ReceiptsView returns a short-lived signed download URL.
func ReceiptsView(svc receipts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "receipt service unavailable"))
			return
		}

		ownerID, err := ownerIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receiptID, err := uuid.Parse(chi.URLParam(r, "receiptId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid receipt id"))
			return
		}

		out, err := svc.ViewURL(r.Context(), ownerID, receiptID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, out)
	}
}
