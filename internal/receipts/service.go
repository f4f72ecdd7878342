package receipts

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/receiptvault-backend/pkg/db/models"
	"github.com/angelmondragon/receiptvault-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
	"github.com/angelmondragon/receiptvault-backend/pkg/logger"
	"github.com/angelmondragon/receiptvault-backend/pkg/pipeline"
)

const (
	maxUploadBytes = 20 * 1024 * 1024
	maxBatchSize   = 20

	// Unknown or missing content types pass through to the signed PUT; the
	// extraction pipeline decides what it can parse.
	defaultContentType = "application/octet-stream"
)

type receiptRepository interface {
	Create(ctx context.Context, receipt *models.Receipt) (*models.Receipt, error)
	FindByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Receipt, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Receipt, error)
	AssignObjectKey(ctx context.Context, id, ownerID uuid.UUID, key string) (int64, error)
	MarkUploaded(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type storageSigner interface {
	SignedUploadURL(object, contentType string) (string, error)
	SignedDownloadURL(object string) (string, error)
}

type pipelineNotifier interface {
	Notify(ctx context.Context, event pipeline.Event) error
}

// Service exposes the receipt upload lifecycle.
type Service interface {
	InitiateUpload(ctx context.Context, ownerID uuid.UUID, entries []UploadEntryInput) (*BatchUploadOutput, error)
	CompleteUpload(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (*CompleteUploadOutput, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Receipt, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Receipt, error)
	ViewURL(ctx context.Context, ownerID, id uuid.UUID) (*ViewURLOutput, error)
}

type service struct {
	repo      receiptRepository
	storage   storageSigner
	notifier  pipelineNotifier
	logg      *logger.Logger
	uploadTTL time.Duration
}

// NewService constructs a receipt service backed by the provided repository,
// storage signer and pipeline notifier.
func NewService(repo receiptRepository, storage storageSigner, notifier pipelineNotifier, logg *logger.Logger, uploadTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("receipt repository required")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage signer required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("pipeline notifier required")
	}
	if uploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}
	return &service{
		repo:      repo,
		storage:   storage,
		notifier:  notifier,
		logg:      logg,
		uploadTTL: uploadTTL,
	}, nil
}

// UploadEntryInput is one file the client wants to upload.
type UploadEntryInput struct {
	FileName    string
	ContentType string
	SizeBytes   int64
}

// UploadEntryResult is the per-file outcome of a batch initiation. Entries
// fail independently; Error is empty on success.
type UploadEntryResult struct {
	FileName  string     `json:"file_name"`
	ReceiptID *uuid.UUID `json:"receipt_id,omitempty"`
	ObjectKey string     `json:"object_key,omitempty"`
	UploadURL string     `json:"upload_url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// BatchUploadOutput is the full batch result.
type BatchUploadOutput struct {
	Entries []UploadEntryResult `json:"entries"`
}

// CompleteUploadOutput reports which receipts were transitioned and which
// were left untouched.
type CompleteUploadOutput struct {
	Completed []uuid.UUID `json:"completed"`
	Skipped   []uuid.UUID `json:"skipped"`
}

// ViewURLOutput carries a short-lived signed download URL.
type ViewURLOutput struct {
	ReceiptID uuid.UUID `json:"receipt_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InitiateUpload creates a pending receipt row per valid entry and returns a
// signed PUT URL for each. Invalid entries are reported inline without
// aborting the rest of the batch.
func (s *service) InitiateUpload(ctx context.Context, ownerID uuid.UUID, entries []UploadEntryInput) (*BatchUploadOutput, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner identity missing")
	}
	if len(entries) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required")
	}
	if len(entries) > maxBatchSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d files per batch", maxBatchSize))
	}

	out := &BatchUploadOutput{Entries: make([]UploadEntryResult, 0, len(entries))}
	for _, entry := range entries {
		out.Entries = append(out.Entries, s.initiateEntry(ctx, ownerID, entry))
	}
	return out, nil
}

func (s *service) initiateEntry(ctx context.Context, ownerID uuid.UUID, entry UploadEntryInput) UploadEntryResult {
	result := UploadEntryResult{FileName: entry.FileName}

	fileName := strings.TrimSpace(entry.FileName)
	if fileName == "" {
		result.Error = "file_name is required"
		return result
	}
	contentType := strings.TrimSpace(entry.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	// size_bytes is advisory; clients that do not know the size send zero.
	if entry.SizeBytes < 0 {
		result.Error = "size_bytes must not be negative"
		return result
	}
	if entry.SizeBytes > maxUploadBytes {
		result.Error = fmt.Sprintf("size_bytes must be at most %d", maxUploadBytes)
		return result
	}

	receiptID := uuid.New()
	row := &models.Receipt{
		ID:      receiptID,
		OwnerID: ownerID,
		Status:  enums.ReceiptStatusPending,
	}
	if _, err := s.repo.Create(ctx, row); err != nil {
		s.logg.Error(ctx, "persist receipt row", err)
		result.Error = "could not create receipt"
		return result
	}

	objectKey := buildObjectKey(ownerID, receiptID, fileName)
	rows, err := s.repo.AssignObjectKey(ctx, receiptID, ownerID, objectKey)
	if err != nil || rows == 0 {
		if err != nil {
			s.logg.Error(ctx, "assign object key", err)
		}
		_ = s.repo.Delete(ctx, receiptID)
		result.Error = "could not assign object key"
		return result
	}

	uploadURL, err := s.storage.SignedUploadURL(objectKey, contentType)
	if err != nil {
		// The pending row stays behind; an out-of-band sweep reclaims
		// receipts that never received an upload URL.
		s.logg.Error(ctx, "sign upload url", err)
		result.Error = "could not sign upload url"
		return result
	}

	expiresAt := time.Now().Add(s.uploadTTL)
	result.ReceiptID = &receiptID
	result.ObjectKey = objectKey
	result.UploadURL = uploadURL
	result.ExpiresAt = &expiresAt
	return result
}

// CompleteUpload marks the given receipts uploaded and hands each one to the
// extraction pipeline. Receipts that are not pending-with-key for this owner
// are skipped rather than failed, which makes the call safe to retry.
func (s *service) CompleteUpload(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (*CompleteUploadOutput, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner identity missing")
	}
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one receipt_id is required")
	}

	out := &CompleteUploadOutput{}
	for _, id := range ids {
		rows, err := s.repo.MarkUploaded(ctx, ownerID, []uuid.UUID{id})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark receipt uploaded")
		}
		if rows == 0 {
			out.Skipped = append(out.Skipped, id)
			continue
		}
		out.Completed = append(out.Completed, id)
		s.dispatchToPipeline(ctx, ownerID, id)
	}
	return out, nil
}

// dispatchToPipeline notifies the extraction pipeline in the background.
// Delivery failures are logged, never surfaced to the uploader.
func (s *service) dispatchToPipeline(ctx context.Context, ownerID, receiptID uuid.UUID) {
	receipt, err := s.repo.FindByIDForOwner(ctx, receiptID, ownerID)
	if err != nil || receipt.ObjectKey == nil {
		s.logg.Error(ctx, "load receipt for pipeline dispatch", err)
		return
	}

	downloadURL, err := s.storage.SignedDownloadURL(*receipt.ObjectKey)
	if err != nil {
		s.logg.Error(ctx, "sign pipeline download url", err)
		return
	}

	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		if err := s.notifier.Notify(notifyCtx, pipeline.Event{
			ReceiptID:   receiptID,
			OwnerID:     ownerID,
			DownloadURL: downloadURL,
		}); err != nil {
			s.logg.Error(notifyCtx, "notify extraction pipeline", err)
		}
	}()
}

// List returns the owner's receipts, newest first.
func (s *service) List(ctx context.Context, ownerID uuid.UUID) ([]models.Receipt, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner identity missing")
	}
	rows, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list receipts")
	}
	return rows, nil
}

// Get returns a single receipt scoped to its owner.
func (s *service) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Receipt, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner identity missing")
	}
	receipt, err := s.repo.FindByIDForOwner(ctx, id, ownerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "receipt not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load receipt")
	}
	return receipt, nil
}

// ViewURL returns a signed download URL for an uploaded receipt.
func (s *service) ViewURL(ctx context.Context, ownerID, id uuid.UUID) (*ViewURLOutput, error) {
	receipt, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if receipt.ObjectKey == nil || receipt.Status == enums.ReceiptStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "receipt has no uploaded object")
	}

	url, err := s.storage.SignedDownloadURL(*receipt.ObjectKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "sign download url")
	}

	return &ViewURLOutput{
		ReceiptID: receipt.ID,
		URL:       url,
		ExpiresAt: time.Now().Add(s.uploadTTL),
	}, nil
}

func buildObjectKey(ownerID, receiptID uuid.UUID, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = receiptID.String()
	}
	nonce := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s/%s/%s_%s", ownerID, receiptID, nonce, cleanName)
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.TrimSpace(name))
	if clean == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
