package service

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/qr-hub/internal/errors"
	"github.com/qr-hub/internal/logging"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/plans"
	"github.com/qr-hub/internal/ratelimit"
	"github.com/qr-hub/internal/storage"
	"github.com/qr-hub/internal/types"
)

// PlanService resolves owners' subscription plans and enforces their limits
type PlanService struct {
	store   storage.UserPlanStore
	records storage.QRStore
	meter   ratelimit.ScanMeter
	now     func() time.Time
	logger  *logging.Logger
}

// NewPlanService creates a plan service. meter may be nil, in which case scans are not metered.
func NewPlanService(store storage.UserPlanStore, records storage.QRStore, meter ratelimit.ScanMeter) *PlanService {
	return &PlanService{
		store:   store,
		records: records,
		meter:   meter,
		now:     time.Now,
		logger:  logging.GetGlobalLogger().WithField("service", "plans"),
	}
}

// Usage is the owner's consumption against their limits
type Usage struct {
	QRCodes        int   `json:"qrCodes"`
	ScansThisMonth int64 `json:"scansThisMonth"`
}

// PlanView is the plan as reported to its owner
type PlanView struct {
	UserID               string       `json:"userId"`
	Plan                 types.Plan   `json:"plan"`
	EffectivePlan        types.Plan   `json:"effectivePlan"`
	StripeCustomerID     *string      `json:"stripeCustomerId"`
	StripeSubscriptionID *string      `json:"stripeSubscriptionId"`
	CurrentPeriodEnd     *time.Time   `json:"currentPeriodEnd"`
	IsActive             bool         `json:"isActive"`
	Limits               plans.Limits `json:"limits"`
	Usage                Usage        `json:"usage"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// Get returns the owner's plan. A missing plan, or a store failure, reads as the default free plan.
func (s *PlanService) Get(ctx context.Context, userID string) *models.UserPlan {
	plan, err := s.store.Get(ctx, userID)
	if err == nil {
		return plan
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.logger.WithError(err).WithField("userId", userID).Warn("Failed to load user plan, using free plan")
	}
	return models.DefaultUserPlan(userID, s.now().UTC())
}

// EffectivePlan returns the plan whose limits currently apply to the owner
func (s *PlanService) EffectivePlan(ctx context.Context, userID string) types.Plan {
	return s.Get(ctx, userID).EffectivePlan(s.now())
}

// View returns the owner's plan with effective limits and current usage
func (s *PlanService) View(ctx context.Context, userID string) (*PlanView, error) {
	plan := s.Get(ctx, userID)
	now := s.now()
	effective := plan.EffectivePlan(now)

	count, err := s.records.CountByOwner(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("count QR codes", err)
	}

	return &PlanView{
		UserID:               plan.UserID,
		Plan:                 plan.Plan,
		EffectivePlan:        effective,
		StripeCustomerID:     plan.StripeCustomerID,
		StripeSubscriptionID: plan.StripeSubscriptionID,
		CurrentPeriodEnd:     plan.CurrentPeriodEnd,
		IsActive:             plan.IsActive(now),
		Limits:               plans.LimitsFor(effective),
		Usage: Usage{
			QRCodes:        count,
			ScansThisMonth: s.monthScans(ctx, userID, now),
		},
		CreatedAt: plan.CreatedAt,
		UpdatedAt: plan.UpdatedAt,
	}, nil
}

// Create gives the owner the default free plan. It is idempotent: an existing plan is returned unchanged.
func (s *PlanService) Create(ctx context.Context, userID string) (*models.UserPlan, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("User ID is required")
	}

	plan := models.DefaultUserPlan(userID, s.now().UTC())
	err := s.store.Create(ctx, plan)
	switch {
	case err == nil:
		return plan, nil
	case errors.Is(err, storage.ErrDuplicateKey):
		existing, getErr := s.store.Get(ctx, userID)
		if getErr != nil {
			return nil, apperrors.NewDatabaseError("get user plan", getErr)
		}
		return existing, nil
	default:
		return nil, apperrors.NewDatabaseError("create user plan", err)
	}
}

// Update applies a subscription change, creating the plan first if the owner has none
func (s *PlanService) Update(ctx context.Context, userID string, update models.UserPlanUpdate) (*models.UserPlan, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("User ID is required")
	}

	plan, err := s.store.Update(ctx, userID, update)
	if errors.Is(err, storage.ErrNotFound) {
		if _, err = s.Create(ctx, userID); err != nil {
			return nil, err
		}
		plan, err = s.store.Update(ctx, userID, update)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("update user plan", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"userId": userID,
		"plan":   plan.Plan,
	}).Info("User plan updated")
	return plan, nil
}

// FindByStripeCustomer returns the plan linked to a Stripe customer
func (s *PlanService) FindByStripeCustomer(ctx context.Context, customerID string) (*models.UserPlan, error) {
	plan, err := s.store.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("No plan for Stripe customer")
		}
		return nil, apperrors.NewDatabaseError("get user plan by customer", err)
	}
	return plan, nil
}

// Authorize checks action against the owner's effective plan and current usage.
// A denial is returned as a LimitExceeded error carrying the upgrade guidance.
func (s *PlanService) Authorize(ctx context.Context, userID string, action types.LimitAction) error {
	plan := s.EffectivePlan(ctx, userID)

	var lctx plans.LimitContext
	switch action {
	case types.ActionCreateQR:
		count, err := s.records.CountByOwner(ctx, userID)
		if err != nil {
			return apperrors.NewDatabaseError("count QR codes", err)
		}
		lctx.CurrentQRCount = count
	case types.ActionScan:
		lctx.CurrentMonthScans = s.monthScans(ctx, userID, s.now())
	}

	decision := plans.CheckLimit(plan, action, lctx)
	if !decision.Allowed {
		return apperrors.NewLimitExceededError(action, plan, decision.Reason)
	}
	return nil
}

// RecordScan meters one scan for the owner. Going over the monthly allowance is
// logged but never blocks the scan, and meter failures are swallowed.
func (s *PlanService) RecordScan(ctx context.Context, userID string) {
	if s.meter == nil {
		return
	}
	now := s.now()

	count, err := s.meter.Increment(ctx, userID, now)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("userId", userID).Warn("Failed to meter scan")
		return
	}

	plan := s.EffectivePlan(ctx, userID)
	decision := plans.CheckLimit(plan, types.ActionScan, plans.LimitContext{CurrentMonthScans: count - 1})
	if !decision.Allowed {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"userId": userID,
			"plan":   plan,
			"scans":  count,
		}).Warn("Monthly scan allowance exceeded")
	}
}

func (s *PlanService) monthScans(ctx context.Context, userID string, now time.Time) int64 {
	if s.meter == nil {
		return 0
	}
	count, err := s.meter.Current(ctx, userID, now)
	if err != nil {
		s.logger.WithError(err).WithField("userId", userID).Warn("Failed to read scan meter")
		return 0
	}
	return count
}

