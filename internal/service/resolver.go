package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	apperrors "github.com/qr-hub/internal/errors"
	"github.com/qr-hub/internal/logging"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/storage"
	"github.com/qr-hub/internal/types"
)

// RedirectOption is one choice offered by a multi-option QR code
type RedirectOption struct {
	Kind     types.RedirectKind `json:"kind"`
	Label    string             `json:"label"`
	Path     string             `json:"path"`
	Amount   *float64           `json:"amount,omitempty"`
	Currency string             `json:"currency,omitempty"`
}

// Redirect tells the client where a resolved QR code leads
type Redirect struct {
	Kind    types.RedirectKind `json:"kind"`
	Path    string             `json:"path,omitempty"`
	Target  string             `json:"target,omitempty"`
	Options []RedirectOption   `json:"options,omitempty"`
}

// Resolution is the outcome of a public scan
type Resolution struct {
	Record   *models.QRRecord `json:"qr"`
	Redirect Redirect         `json:"redirect"`
}

// BuildRedirect derives the redirect for record from its type and config
func BuildRedirect(record *models.QRRecord) Redirect {
	s := url.QueryEscape(record.Slug)
	bySlug := func(path string) string { return fmt.Sprintf("%s?slug=%s", path, s) }

	switch cfg := record.DestinationConfig.(type) {
	case *types.FiatConfig:
		return Redirect{Kind: types.RedirectFiatPayment, Path: bySlug("/pay/fiat")}
	case *types.CryptoConfig:
		return Redirect{Kind: types.RedirectCryptoPayment, Path: bySlug("/pay/crypto")}
	case *types.NovaConfig:
		return Redirect{Kind: types.RedirectTokenPayment, Path: bySlug("/pay/nova")}
	case *types.NFTMintConfig:
		return Redirect{Kind: types.RedirectMint, Path: "/mint/" + url.PathEscape(record.Slug)}
	case *types.NFTListingConfig:
		target := cfg.ListingID
		if target == "" {
			target = record.Slug
		}
		return Redirect{
			Kind:   types.RedirectMarketplace,
			Path:   bySlug("/marketplace/" + url.PathEscape(target)),
			Target: target,
		}
	case *types.MultiOptionConfig:
		options := make([]RedirectOption, 0, 3)
		if cfg.FiatAmount != nil && *cfg.FiatAmount != 0 {
			options = append(options, RedirectOption{
				Kind:     types.RedirectFiatPayment,
				Label:    "Pay with Card",
				Path:     bySlug("/pay/fiat"),
				Amount:   cfg.FiatAmount,
				Currency: "usd",
			})
		}
		if cfg.CryptoAmount != nil && *cfg.CryptoAmount != 0 && cfg.WalletAddress != "" {
			options = append(options, RedirectOption{
				Kind:     types.RedirectCryptoPayment,
				Label:    "Pay with Crypto",
				Path:     bySlug("/pay/crypto"),
				Amount:   cfg.CryptoAmount,
				Currency: "ETH",
			})
		}
		if cfg.WalletAddress != "" {
			options = append(options, RedirectOption{
				Kind:  types.RedirectTokenPayment,
				Label: "Pay with NOVA",
				Path:  bySlug("/pay/nova"),
			})
		}
		return Redirect{Kind: types.RedirectChoice, Options: options}
	default:
		return Redirect{Kind: types.RedirectChoice, Options: []RedirectOption{}}
	}
}

// Resolver is the public read path from slug to destination
type Resolver struct {
	store  storage.QRStore
	cache  *storage.SlugCache
	plans  *PlanService
	logger *logging.Logger
}

// NewResolver creates a resolver. cache and plans may be nil.
func NewResolver(store storage.QRStore, cache *storage.SlugCache, plans *PlanService) *Resolver {
	return &Resolver{
		store:  store,
		cache:  cache,
		plans:  plans,
		logger: logging.GetGlobalLogger().WithField("service", "resolver"),
	}
}

// Resolve looks up an active record by slug, counts the scan, and returns where it leads.
// Missing and inactive records are both reported as NotFound.
func (r *Resolver) Resolve(ctx context.Context, slugValue string) (*Resolution, error) {
	record, err := r.lookup(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if !record.IsActive {
		return nil, apperrors.NewNotFoundError(msgQRNotFound)
	}

	// The store has the final say on is_active; a cached record may be stale
	count, err := r.store.IncrementScanCount(ctx, slugValue)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.evict(ctx, slugValue)
		}
		return nil, storeError("increment scan count", err)
	}
	record.ScanCount = count

	if r.plans != nil {
		r.plans.RecordScan(ctx, record.OwnerID)
	}

	return &Resolution{Record: record, Redirect: BuildRedirect(record)}, nil
}

func (r *Resolver) lookup(ctx context.Context, slugValue string) (*models.QRRecord, error) {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, slugValue)
		if err != nil {
			r.logger.WithError(err).WithField("slug", slugValue).Warn("Slug cache read failed")
		}
		if cached != nil {
			return cached, nil
		}
	}

	record, err := r.store.GetBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(msgQRNotFound)
		}
		return nil, apperrors.NewDatabaseError("get QR code", err)
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, record); err != nil {
			r.logger.WithError(err).WithField("slug", slugValue).Warn("Slug cache write failed")
		}
	}
	return record, nil
}

func (r *Resolver) evict(ctx context.Context, slugValue string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, slugValue); err != nil {
		r.logger.WithError(err).WithField("slug", slugValue).Warn("Slug cache invalidate failed")
	}
}
