package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qr-hub/internal/destination"
	apperrors "github.com/qr-hub/internal/errors"
	"github.com/qr-hub/internal/logging"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/retry"
	"github.com/qr-hub/internal/slug"
	"github.com/qr-hub/internal/storage"
	"github.com/qr-hub/internal/types"
	"github.com/skip2/go-qrcode"
)

// Error messages shown to API callers
const (
	msgQRNotFound       = "QR code not found"
	msgNameTypeRequired = "Name and type are required"
	msgNothingToUpdate  = "No fields to update"
	msgNameRequired     = "Name cannot be empty"
)

const (
	qrImageSize         = 256
	defaultSlugAttempts = 5
)

// QRServiceConfig configures the QR service
type QRServiceConfig struct {
	// BaseURL prefixes the public scan URL, e.g. https://app.example.com
	BaseURL string
	// SlugMaxAttempts bounds slug regeneration on collision. Default: 5.
	SlugMaxAttempts int
	// Slugs generates candidate slugs. Default: slug.Generate.
	Slugs slug.Source
}

// QRService handles owner-scoped QR record management
type QRService struct {
	store       storage.QRStore
	plans       *PlanService
	cache       *storage.SlugCache
	baseURL     string
	maxAttempts int
	slugs       slug.Source
	logger      *logging.Logger
}

// NewQRService creates a QR service. cache may be nil.
func NewQRService(store storage.QRStore, plans *PlanService, cache *storage.SlugCache, cfg QRServiceConfig) *QRService {
	if cfg.SlugMaxAttempts < 1 {
		cfg.SlugMaxAttempts = defaultSlugAttempts
	}
	if cfg.Slugs == nil {
		cfg.Slugs = slug.Generate
	}
	return &QRService{
		store:       store,
		plans:       plans,
		cache:       cache,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		maxAttempts: cfg.SlugMaxAttempts,
		slugs:       cfg.Slugs,
		logger:      logging.GetGlobalLogger().WithField("service", "qr"),
	}
}

// CreateInput is a request to create a QR record
type CreateInput struct {
	OwnerID           string
	Name              string
	Type              types.QRType
	DestinationConfig json.RawMessage
}

// CreateResult is a newly created record and its scan URL
type CreateResult struct {
	Record *models.QRRecord `json:"qr"`
	QRURL  string           `json:"qrUrl"`
}

// UpdateInput is a partial update. A nil DestinationConfig leaves the config unchanged.
type UpdateInput struct {
	Name              *string
	DestinationConfig json.RawMessage
	IsActive          *bool
}

// QRURL returns the public scan URL for slug
func (s *QRService) QRURL(slugValue string) string {
	return fmt.Sprintf("%s/q/%s", s.baseURL, slugValue)
}

// Create validates the input, checks the owner's plan, and stores a new active
// record under a freshly generated slug.
func (s *QRService) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.OwnerID == "" {
		return nil, apperrors.NewUnauthorizedError("Unauthorized")
	}
	name := strings.TrimSpace(in.Name)
	qrType := types.QRType(strings.TrimSpace(string(in.Type)))
	if name == "" || qrType == "" {
		return nil, apperrors.NewValidationError(msgNameTypeRequired)
	}

	cfg, err := decodeAndValidate(qrType, in.DestinationConfig)
	if err != nil {
		return nil, err
	}

	if err := s.plans.Authorize(ctx, in.OwnerID, types.ActionCreateQR); err != nil {
		return nil, err
	}

	record := &models.QRRecord{
		OwnerID:           in.OwnerID,
		Name:              name,
		Type:              qrType,
		DestinationConfig: cfg,
		IsActive:          true,
	}

	result := retry.Do(ctx, retry.Immediate(s.maxAttempts, isDuplicateSlug), func(ctx context.Context, attempt int) error {
		record.ID = ""
		record.Slug = s.slugs()
		return s.store.Create(ctx, record)
	})
	if !result.Success {
		if isDuplicateSlug(result.LastError) {
			return nil, apperrors.NewSlugExhaustedError(result.Attempts, result.LastError)
		}
		return nil, apperrors.NewDatabaseError("create QR code", result.LastError)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"qrId":     record.ID,
		"slug":     record.Slug,
		"type":     record.Type,
		"attempts": result.Attempts,
	}).Info("QR code created")

	return &CreateResult{Record: record, QRURL: s.QRURL(record.Slug)}, nil
}

// List returns the owner's records, newest first
func (s *QRService) List(ctx context.Context, ownerID string) ([]*models.QRRecord, error) {
	records, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list QR codes", err)
	}
	return records, nil
}

// Get returns one of the owner's records by id
func (s *QRService) Get(ctx context.Context, id, ownerID string) (*models.QRRecord, error) {
	record, err := s.store.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, storeError("get QR code", err)
	}
	return record, nil
}

// ownedBySlug returns the record for slug if ownerID owns it, active or not
func ownedBySlug(ctx context.Context, store storage.QRStore, slugValue, ownerID string) (*models.QRRecord, error) {
	record, err := store.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, storeError("get QR code", err)
	}
	if record.OwnerID != ownerID {
		return nil, apperrors.NewNotFoundError(msgQRNotFound)
	}
	return record, nil
}

// Update applies a partial update to one of the owner's records. A new config
// is validated against the record's type before anything is written.
func (s *QRService) Update(ctx context.Context, id, ownerID string, in UpdateInput) (*models.QRRecord, error) {
	var patch models.QRPatch

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.NewValidationError(msgNameRequired)
		}
		patch.Name = &name
	}
	patch.IsActive = in.IsActive

	if in.DestinationConfig != nil {
		existing, err := s.store.GetByID(ctx, id, ownerID)
		if err != nil {
			return nil, storeError("get QR code", err)
		}
		cfg, err := decodeAndValidate(existing.Type, in.DestinationConfig)
		if err != nil {
			return nil, err
		}
		patch.DestinationConfig = cfg
	}

	if patch.IsEmpty() {
		return nil, apperrors.NewValidationError(msgNothingToUpdate)
	}

	record, err := s.store.Update(ctx, id, ownerID, patch)
	if err != nil {
		return nil, storeError("update QR code", err)
	}
	s.invalidate(ctx, record.Slug)

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"qrId":     record.ID,
		"isActive": record.IsActive,
	}).Info("QR code updated")
	return record, nil
}

// Delete removes one of the owner's records. Its events are kept.
func (s *QRService) Delete(ctx context.Context, id, ownerID string) error {
	record, err := s.store.GetByID(ctx, id, ownerID)
	if err != nil {
		return storeError("get QR code", err)
	}
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return storeError("delete QR code", err)
	}
	s.invalidate(ctx, record.Slug)

	logging.FromContext(ctx).WithField("qrId", id).Info("QR code deleted")
	return nil
}

// RenderImage returns a PNG QR code encoding the scan URL for slug
func (s *QRService) RenderImage(ctx context.Context, slugValue string) ([]byte, error) {
	if _, err := s.store.GetBySlug(ctx, slugValue); err != nil {
		return nil, storeError("get QR code", err)
	}

	png, err := qrcode.Encode(s.QRURL(slugValue), qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to render QR code", err)
	}
	return png, nil
}

func (s *QRService) invalidate(ctx context.Context, slugValue string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slugValue); err != nil {
		s.logger.WithError(err).WithField("slug", slugValue).Warn("Failed to invalidate slug cache")
	}
}

// decodeAndValidate runs the validator and returns the normalised config
func decodeAndValidate(qrType types.QRType, raw json.RawMessage) (types.DestinationConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	res := destination.Validate(qrType, raw)
	if !res.Valid {
		return nil, apperrors.NewValidationError(res.Reason)
	}

	cfg, err := types.DecodeDestinationConfig(qrType, raw)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return destination.Normalize(cfg), nil
}

func isDuplicateSlug(err error) bool {
	return errors.Is(err, storage.ErrDuplicateSlug)
}

// storeError maps storage sentinels onto API errors
func storeError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewNotFoundError(msgQRNotFound)
	}
	return apperrors.NewDatabaseError(op, err)
}
