package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/receiptvault-backend/internal/ingestion"
	"github.com/angelmondragon/receiptvault-backend/pkg/db/models"
	"github.com/angelmondragon/receiptvault-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
)

type testIngestionService struct {
	reportFn func(ctx context.Context, input ingestion.ReportInput) (*models.Receipt, error)
}

func (s *testIngestionService) ReportExtraction(ctx context.Context, input ingestion.ReportInput) (*models.Receipt, error) {
	if s.reportFn != nil {
		return s.reportFn(ctx, input)
	}
	return nil, nil
}

func jsonRequest(target, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestIngestionExtractionReadyAppliesFields(t *testing.T) {
	receiptID := uuid.New()
	svc := &testIngestionService{
		reportFn: func(ctx context.Context, input ingestion.ReportInput) (*models.Receipt, error) {
			if input.ReceiptID != receiptID {
				t.Fatalf("unexpected receipt %s", input.ReceiptID)
			}
			if input.Status != enums.ReceiptStatusReady {
				t.Fatalf("unexpected status %s", input.Status)
			}
			if input.TotalAmount == nil || input.TotalAmount.StringFixed(2) != "23.45" {
				t.Fatalf("unexpected total %v", input.TotalAmount)
			}
			if input.PurchaseDate == nil || input.PurchaseDate.Format("2006-01-02") != "2026-08-20" {
				t.Fatalf("unexpected purchase date %v", input.PurchaseDate)
			}
			if input.RawExtractedPayload == nil || !strings.Contains(*input.RawExtractedPayload, "line_items") {
				t.Fatalf("unexpected raw payload %v", input.RawExtractedPayload)
			}
			return &models.Receipt{ID: receiptID, Status: enums.ReceiptStatusReady}, nil
		},
	}

	body := `{
		"receipt_id": "` + receiptID.String() + `",
		"status": "ready",
		"ocr_text": "TOTAL 23.45",
		"merchant_name": "Corner Deli",
		"total_amount": "23.45",
		"currency": "USD",
		"purchase_date": "2026-08-20",
		"raw_extracted_json": {"line_items": []}
	}`
	resp := httptest.NewRecorder()
	IngestionExtraction(svc, testControllerLogger())(resp, jsonRequest("/api/internal/v1/ingestion/extraction", body))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body=%s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data receiptResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.Status != "ready" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestIngestionExtractionFailedWithoutFields(t *testing.T) {
	receiptID := uuid.New()
	svc := &testIngestionService{
		reportFn: func(ctx context.Context, input ingestion.ReportInput) (*models.Receipt, error) {
			if input.Status != enums.ReceiptStatusFailed {
				t.Fatalf("unexpected status %s", input.Status)
			}
			if input.TotalAmount != nil || input.OCRText != nil {
				t.Fatal("failed report should carry no extraction fields")
			}
			return &models.Receipt{ID: receiptID, Status: enums.ReceiptStatusFailed}, nil
		},
	}

	body := `{"receipt_id":"` + receiptID.String() + `","status":"failed"}`
	resp := httptest.NewRecorder()
	IngestionExtraction(svc, testControllerLogger())(resp, jsonRequest("/api/internal/v1/ingestion/extraction", body))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestIngestionExtractionRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "bad uuid", body: `{"receipt_id":"nope","status":"ready"}`},
		{name: "unknown status", body: `{"receipt_id":"` + uuid.NewString() + `","status":"done"}`},
		{name: "bad amount", body: `{"receipt_id":"` + uuid.NewString() + `","status":"ready","total_amount":"12,50"}`},
		{name: "bad date", body: `{"receipt_id":"` + uuid.NewString() + `","status":"ready","purchase_date":"20/08/2026"}`},
		{name: "unknown field", body: `{"receipt_id":"` + uuid.NewString() + `","status":"ready","surprise":true}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			IngestionExtraction(&testIngestionService{}, testControllerLogger())(resp, jsonRequest("/api/internal/v1/ingestion/extraction", tc.body))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d body=%s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestIngestionExtractionStateConflict(t *testing.T) {
	svc := &testIngestionService{
		reportFn: func(ctx context.Context, input ingestion.ReportInput) (*models.Receipt, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot move receipt from ready to processing")
		},
	}

	body := `{"receipt_id":"` + uuid.NewString() + `","status":"processing"}`
	resp := httptest.NewRecorder()
	IngestionExtraction(svc, testControllerLogger())(resp, jsonRequest("/api/internal/v1/ingestion/extraction", body))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}
