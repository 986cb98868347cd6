package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/qr-hub/internal/models"
)

// Sentinel errors returned by every backend
var (
	// ErrNotFound covers both absent rows and rows owned by someone else
	ErrNotFound = errors.New("not found")
	// ErrDuplicateSlug is returned by QRStore.Create when the slug is taken
	ErrDuplicateSlug = errors.New("duplicate slug")
	// ErrDuplicateKey is returned when a primary key already exists
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrEmailTaken is returned by UserStore.Create for a registered email
	ErrEmailTaken = errors.New("email already registered")
)

// QRStore persists QR records. Owner-scoped lookups return ErrNotFound for
// records owned by someone else.
type QRStore interface {
	Create(ctx context.Context, record *models.QRRecord) error
	GetBySlug(ctx context.Context, slug string) (*models.QRRecord, error)
	GetByID(ctx context.Context, id, ownerID string) (*models.QRRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.QRRecord, error)
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	Update(ctx context.Context, id, ownerID string, patch models.QRPatch) (*models.QRRecord, error)
	Delete(ctx context.Context, id, ownerID string) error
	// IncrementScanCount atomically adds one to an active record and returns the new count.
	// Missing and inactive records both return ErrNotFound.
	IncrementScanCount(ctx context.Context, slug string) (int64, error)
}

// EventLog is the append-only interaction log
type EventLog interface {
	Append(ctx context.Context, event *models.Event) error
	// ListByRecord returns up to limit events, newest first
	ListByRecord(ctx context.Context, qrCodeID string, limit int) ([]*models.Event, error)
}

// UserPlanStore persists subscription state
type UserPlanStore interface {
	Get(ctx context.Context, userID string) (*models.UserPlan, error)
	// Create returns ErrDuplicateKey when the owner already has a plan
	Create(ctx context.Context, plan *models.UserPlan) error
	Update(ctx context.Context, userID string, update models.UserPlanUpdate) (*models.UserPlan, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.UserPlan, error)
}

// UserStore persists local accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

const pgUniqueViolation = "23505"

// uniqueViolation returns the violated constraint name when err is a Postgres 23505
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
