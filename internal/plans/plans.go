// Package plans holds the subscription tiers, their limits and the pure limit check
// used before creating QR codes and when metering scans.
package plans

import (
	"fmt"

	"github.com/qr-hub/internal/types"
)

// Unlimited marks an uncapped MaxQRCodes
const Unlimited = -1

// Limits describes what a plan allows
type Limits struct {
	MaxQRCodes             int  `json:"maxQrCodes"`
	MaxScansPerMonth       *int `json:"maxScansPerMonth"`
	CustomDomains          bool `json:"customDomains"`
	AnalyticsRetentionDays int  `json:"analyticsRetentionDays"`
	PrioritySupport        bool `json:"prioritySupport"`
	APIAccess              bool `json:"apiAccess"`
	WhiteLabel             bool `json:"whiteLabel"`
}

func intPtr(v int) *int { return &v }

var limitsByPlan = map[types.Plan]Limits{
	types.PlanFree: {
		MaxQRCodes:             5,
		MaxScansPerMonth:       intPtr(1000),
		AnalyticsRetentionDays: 7,
	},
	types.PlanPro: {
		MaxQRCodes:             50,
		MaxScansPerMonth:       intPtr(50000),
		CustomDomains:          true,
		AnalyticsRetentionDays: 90,
		PrioritySupport:        true,
		APIAccess:              true,
	},
	types.PlanBusiness: {
		MaxQRCodes:             Unlimited,
		MaxScansPerMonth:       nil,
		CustomDomains:          true,
		AnalyticsRetentionDays: 365,
		PrioritySupport:        true,
		APIAccess:              true,
		WhiteLabel:             true,
	},
}

// LimitsFor returns the limits of plan. Unknown plans get the free limits.
func LimitsFor(plan types.Plan) Limits {
	l, ok := limitsByPlan[plan]
	if !ok {
		l = limitsByPlan[types.PlanFree]
	}
	if l.MaxScansPerMonth != nil {
		l.MaxScansPerMonth = intPtr(*l.MaxScansPerMonth)
	}
	return l
}

// LimitContext carries the owner's current usage
type LimitContext struct {
	CurrentQRCount    int
	CurrentMonthScans int64
}

// Decision is the outcome of a limit check. Reason is empty when allowed.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

// CheckLimit decides whether an owner on plan may perform action. plan must be
// the effective plan. Unknown actions are allowed.
func CheckLimit(plan types.Plan, action types.LimitAction, ctx LimitContext) Decision {
	limits := LimitsFor(plan)

	switch action {
	case types.ActionCreateQR:
		if limits.MaxQRCodes == Unlimited {
			return allow()
		}
		if ctx.CurrentQRCount >= limits.MaxQRCodes {
			return deny(fmt.Sprintf(
				"You've reached the maximum of %d QR codes on the %s plan. Upgrade to create more.",
				limits.MaxQRCodes, plan))
		}
		return allow()

	case types.ActionUseCustomDomain:
		if !limits.CustomDomains {
			return deny("Custom domains are not available on the free plan. Upgrade to Pro or Business.")
		}
		return allow()

	case types.ActionAPIAccess:
		if !limits.APIAccess {
			return deny("API access is not available on the free plan. Upgrade to Pro or Business.")
		}
		return allow()

	case types.ActionWhiteLabel:
		if !limits.WhiteLabel {
			return deny("White-label features are only available on the Business plan.")
		}
		return allow()

	case types.ActionScan:
		if limits.MaxScansPerMonth == nil {
			return allow()
		}
		if ctx.CurrentMonthScans >= int64(*limits.MaxScansPerMonth) {
			return deny(fmt.Sprintf(
				"You've reached the maximum of %d scans this month on the %s plan. Upgrade for more.",
				*limits.MaxScansPerMonth, plan))
		}
		return allow()

	default:
		return allow()
	}
}

// PlanInfo is one column of the pricing table
type PlanInfo struct {
	ID          types.Plan `json:"id"`
	Name        string     `json:"name"`
	Price       int        `json:"price"`
	Interval    string     `json:"interval"`
	Description string     `json:"description"`
	Features    []string   `json:"features"`
	Limits      Limits     `json:"limits"`
	Popular     bool       `json:"popular,omitempty"`
}

// Comparison returns the pricing table, cheapest first
func Comparison() []PlanInfo {
	return []PlanInfo{
		{
			ID:          types.PlanFree,
			Name:        "Free",
			Price:       0,
			Interval:    "month",
			Description: "Perfect for getting started",
			Features: []string{
				"5 QR codes",
				"1,000 scans/month",
				"7 days analytics",
				"Basic support",
			},
			Limits: LimitsFor(types.PlanFree),
		},
		{
			ID:          types.PlanPro,
			Name:        "Pro",
			Price:       19,
			Interval:    "month",
			Description: "For growing businesses",
			Features: []string{
				"50 QR codes",
				"50,000 scans/month",
				"90 days analytics",
				"Custom domains",
				"API access",
				"Priority support",
			},
			Limits:  LimitsFor(types.PlanPro),
			Popular: true,
		},
		{
			ID:          types.PlanBusiness,
			Name:        "Business",
			Price:       99,
			Interval:    "month",
			Description: "For large organizations",
			Features: []string{
				"Unlimited QR codes",
				"Unlimited scans",
				"365 days analytics",
				"Custom domains",
				"API access",
				"White-label",
				"Priority support",
				"Dedicated account manager",
			},
			Limits: LimitsFor(types.PlanBusiness),
		},
	}
}
