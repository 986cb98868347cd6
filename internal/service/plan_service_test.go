package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/storage"
	"github.com/qr-hub/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingPlanStore fails every call
type failingPlanStore struct{}

var errPlanStoreDown = errors.New("plan store down")

func (failingPlanStore) Get(context.Context, string) (*models.UserPlan, error) {
	return nil, errPlanStoreDown
}

func (failingPlanStore) Create(context.Context, *models.UserPlan) error { return errPlanStoreDown }

func (failingPlanStore) Update(context.Context, string, models.UserPlanUpdate) (*models.UserPlan, error) {
	return nil, errPlanStoreDown
}

func (failingPlanStore) GetByStripeCustomerID(context.Context, string) (*models.UserPlan, error) {
	return nil, errPlanStoreDown
}

func TestPlanService_DefaultsToFree(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	plan := h.plans.Get(ctx, ownerA)
	assert.Equal(t, types.PlanFree, plan.Plan)
	assert.Equal(t, types.PlanFree, h.plans.EffectivePlan(ctx, ownerA))

	view, err := h.plans.View(ctx, ownerA)
	require.NoError(t, err)
	assert.True(t, view.IsActive)
	assert.Equal(t, 5, view.Limits.MaxQRCodes)
	require.NotNil(t, view.Limits.MaxScansPerMonth)
	assert.Equal(t, 1000, *view.Limits.MaxScansPerMonth)
}

func TestPlanService_StoreFailureReadsAsFree(t *testing.T) {
	plans := NewPlanService(failingPlanStore{}, storage.NewMemoryQRStore(), nil)
	assert.Equal(t, types.PlanFree, plans.EffectivePlan(context.Background(), ownerA))

	err := plans.Authorize(context.Background(), ownerA, types.ActionCreateQR)
	assert.NoError(t, err)
}

func TestPlanService_CreateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.plans.Create(ctx, ownerA)
	require.NoError(t, err)

	pro := types.PlanPro
	_, err = h.plans.Update(ctx, ownerA, models.UserPlanUpdate{Plan: &pro})
	require.NoError(t, err)

	second, err := h.plans.Create(ctx, ownerA)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, types.PlanPro, second.Plan, "existing plan is left unchanged")

	_, err = h.plans.Create(ctx, "")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestPlanService_UpdateCreatesMissingPlan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	business := types.PlanBusiness
	end := time.Now().Add(time.Hour).UTC()
	customer := "cus_123"
	plan, err := h.plans.Update(ctx, ownerA, models.UserPlanUpdate{
		Plan:             &business,
		StripeCustomerID: &customer,
		CurrentPeriodEnd: &end,
	})
	require.NoError(t, err)
	assert.Equal(t, types.PlanBusiness, plan.Plan)

	found, err := h.plans.FindByStripeCustomer(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, ownerA, found.UserID)

	_, err = h.plans.FindByStripeCustomer(ctx, "cus_unknown")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestPlanService_EffectivePlanHonoursPeriodEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ended := time.Now().Add(-time.Minute)
	setPlan(t, h, ownerA, types.PlanPro, &ended)
	assert.Equal(t, types.PlanFree, h.plans.EffectivePlan(ctx, ownerA))

	view, err := h.plans.View(ctx, ownerA)
	require.NoError(t, err)
	assert.Equal(t, types.PlanPro, view.Plan)
	assert.Equal(t, types.PlanFree, view.EffectivePlan)
	assert.False(t, view.IsActive)

	// No period end: honoured, but not reported as an active subscription
	setPlan(t, h, ownerB, types.PlanPro, nil)
	assert.Equal(t, types.PlanPro, h.plans.EffectivePlan(ctx, ownerB))
	view, err = h.plans.View(ctx, ownerB)
	require.NoError(t, err)
	assert.False(t, view.IsActive)
	assert.Equal(t, 50, view.Limits.MaxQRCodes)
}

func TestPlanService_AuthorizeFeatureActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for _, action := range []types.LimitAction{types.ActionUseCustomDomain, types.ActionAPIAccess, types.ActionWhiteLabel} {
		err := h.plans.Authorize(ctx, ownerA, action)
		assert.Equal(t, http.StatusForbidden, statusOf(t, err), action)
	}

	end := time.Now().Add(time.Hour)
	setPlan(t, h, ownerA, types.PlanBusiness, &end)
	for _, action := range []types.LimitAction{types.ActionUseCustomDomain, types.ActionAPIAccess, types.ActionWhiteLabel, types.ActionScan} {
		assert.NoError(t, h.plans.Authorize(ctx, ownerA, action), action)
	}
}

func TestPlanService_RecordScanWithoutMeter(t *testing.T) {
	plans := NewPlanService(storage.NewMemoryUserPlanStore(), storage.NewMemoryQRStore(), nil)
	plans.RecordScan(context.Background(), ownerA)

	view, err := plans.View(context.Background(), ownerA)
	require.NoError(t, err)
	assert.Zero(t, view.Usage.ScansThisMonth)
}
