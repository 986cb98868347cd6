package models

import (
	"time"

	"github.com/qr-hub/internal/types"
)

// User is a local account that owns QR records
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// UserPlan is an owner's subscription state
type UserPlan struct {
	UserID               string     `json:"userId" db:"user_id"`
	Plan                 types.Plan `json:"plan" db:"plan"`
	StripeCustomerID     *string    `json:"stripeCustomerId" db:"stripe_customer_id"`
	StripeSubscriptionID *string    `json:"stripeSubscriptionId" db:"stripe_subscription_id"`
	CurrentPeriodEnd     *time.Time `json:"currentPeriodEnd" db:"current_period_end"`
	CreatedAt            time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time  `json:"updatedAt" db:"updated_at"`
}

// DefaultUserPlan is the free plan every owner starts on
func DefaultUserPlan(userID string, now time.Time) *UserPlan {
	return &UserPlan{
		UserID:    userID,
		Plan:      types.PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EffectivePlan is the plan in force at now. A paid plan whose period has
// ended falls back to free; a paid plan without a period end is honored.
func (p *UserPlan) EffectivePlan(now time.Time) types.Plan {
	if p == nil || p.Plan == types.PlanFree || !p.Plan.IsValid() {
		return types.PlanFree
	}
	if p.CurrentPeriodEnd != nil && p.CurrentPeriodEnd.Before(now) {
		return types.PlanFree
	}
	return p.Plan
}

// IsActive reports whether the subscription is current. Free is always active.
func (p *UserPlan) IsActive(now time.Time) bool {
	if p == nil || p.Plan == types.PlanFree {
		return true
	}
	if p.CurrentPeriodEnd == nil {
		return false
	}
	return p.CurrentPeriodEnd.After(now)
}

// UserPlanUpdate carries webhook-driven plan changes. Nil fields are left unchanged.
type UserPlanUpdate struct {
	Plan                 *types.Plan
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CurrentPeriodEnd     *time.Time
}

// Apply copies the set fields onto p
func (u UserPlanUpdate) Apply(p *UserPlan, now time.Time) {
	if u.Plan != nil && u.Plan.IsValid() {
		p.Plan = *u.Plan
	}
	if u.StripeCustomerID != nil {
		p.StripeCustomerID = u.StripeCustomerID
	}
	if u.StripeSubscriptionID != nil {
		p.StripeSubscriptionID = u.StripeSubscriptionID
	}
	if u.CurrentPeriodEnd != nil {
		p.CurrentPeriodEnd = u.CurrentPeriodEnd
	}
	p.UpdatedAt = now
}
