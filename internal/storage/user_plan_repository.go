package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/types"
)

// UserPlanRepository is the Postgres UserPlanStore
type UserPlanRepository struct {
	db *PostgresDB
}

// NewUserPlanRepository creates a new user plan repository
func NewUserPlanRepository(db *PostgresDB) *UserPlanRepository {
	return &UserPlanRepository{db: db}
}

const userPlanColumns = `user_id, plan, stripe_customer_id, stripe_subscription_id, current_period_end, created_at, updated_at`

// Get returns the owner's plan or ErrNotFound
func (r *UserPlanRepository) Get(ctx context.Context, userID string) (*models.UserPlan, error) {
	query := `SELECT ` + userPlanColumns + ` FROM user_plans WHERE user_id = $1`
	return r.queryOne(ctx, query, userID)
}

// GetByStripeCustomerID finds the plan linked to a Stripe customer
func (r *UserPlanRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.UserPlan, error) {
	query := `SELECT ` + userPlanColumns + ` FROM user_plans WHERE stripe_customer_id = $1 ORDER BY updated_at DESC LIMIT 1`
	return r.queryOne(ctx, query, customerID)
}

// Create inserts a plan. An existing row for the owner returns ErrDuplicateKey.
func (r *UserPlanRepository) Create(ctx context.Context, plan *models.UserPlan) error {
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	if plan.Plan == "" {
		plan.Plan = types.PlanFree
	}

	query := `
		INSERT INTO user_plans (` + userPlanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		plan.UserID,
		plan.Plan,
		plan.StripeCustomerID,
		plan.StripeSubscriptionID,
		plan.CurrentPeriodEnd,
		plan.CreatedAt,
		plan.UpdatedAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create user plan: %w", err)
	}
	return nil
}

// Update applies the set fields of update and returns the stored plan
func (r *UserPlanRepository) Update(ctx context.Context, userID string, update models.UserPlanUpdate) (*models.UserPlan, error) {
	var plan *string
	if update.Plan != nil && update.Plan.IsValid() {
		p := string(*update.Plan)
		plan = &p
	}

	query := `
		UPDATE user_plans
		SET plan = COALESCE($2, plan),
		    stripe_customer_id = COALESCE($3, stripe_customer_id),
		    stripe_subscription_id = COALESCE($4, stripe_subscription_id),
		    current_period_end = COALESCE($5, current_period_end),
		    updated_at = $6
		WHERE user_id = $1
		RETURNING ` + userPlanColumns

	return r.queryOne(ctx, query,
		userID,
		plan,
		update.StripeCustomerID,
		update.StripeSubscriptionID,
		update.CurrentPeriodEnd,
		time.Now().UTC(),
	)
}

func (r *UserPlanRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.UserPlan, error) {
	var (
		plan     models.UserPlan
		planName string
	)

	err := r.db.Pool().QueryRow(ctx, query, args...).Scan(
		&plan.UserID,
		&planName,
		&plan.StripeCustomerID,
		&plan.StripeSubscriptionID,
		&plan.CurrentPeriodEnd,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user plan: %w", err)
	}

	plan.Plan = types.Plan(planName)
	return &plan, nil
}
