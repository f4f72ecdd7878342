package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/receiptvault-backend/pkg/config"
	"github.com/google/uuid"
)

func TestNotifyPostsEvent(t *testing.T) {
	receiptID := uuid.New()
	ownerID := uuid.New()

	var captured Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decoding event: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotifier(config.IngestionConfig{WebhookURL: srv.URL})
	err := n.Notify(context.Background(), Event{
		ReceiptID:   receiptID,
		OwnerID:     ownerID,
		DownloadURL: "https://storage.example/signed",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if captured.ReceiptID != receiptID || captured.OwnerID != ownerID {
		t.Fatalf("unexpected event %+v", captured)
	}
	if captured.DownloadURL != "https://storage.example/signed" {
		t.Fatalf("unexpected download url %q", captured.DownloadURL)
	}
}

func TestNotifyReportsServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewNotifier(config.IngestionConfig{WebhookURL: srv.URL})
	err := n.Notify(context.Background(), Event{ReceiptID: uuid.New(), OwnerID: uuid.New()})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestNotifyWithoutWebhookIsNoOp(t *testing.T) {
	n := NewNotifier(config.IngestionConfig{})
	if err := n.Notify(context.Background(), Event{ReceiptID: uuid.New(), OwnerID: uuid.New()}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestNotifyValidatesEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent for invalid event")
	}))
	defer srv.Close()

	n := NewNotifier(config.IngestionConfig{WebhookURL: srv.URL})
	if err := n.Notify(context.Background(), Event{}); err == nil {
		t.Fatal("expected error for missing IDs")
	}
}
