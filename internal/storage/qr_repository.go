package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qr-hub/internal/models"
	"github.com/qr-hub/internal/types"
)

// QRRepository is the Postgres QRStore
type QRRepository struct {
	db *PostgresDB
}

// NewQRRepository creates a new QR record repository
func NewQRRepository(db *PostgresDB) *QRRepository {
	return &QRRepository{db: db}
}

const qrColumns = `id, user_id, slug, name, type, destination_config, is_active, scan_count, created_at, updated_at`

// Create inserts a record. A slug collision returns ErrDuplicateSlug.
func (r *QRRepository) Create(ctx context.Context, record *models.QRRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	configJSON, err := marshalConfig(record.DestinationConfig)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO qr_codes (` + qrColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		record.ID,
		record.OwnerID,
		record.Slug,
		record.Name,
		record.Type,
		configJSON,
		record.IsActive,
		record.ScanCount,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "slug") {
				return ErrDuplicateSlug
			}
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create QR record: %w", err)
	}

	return nil
}

// GetBySlug returns the record for slug regardless of owner or active flag
func (r *QRRepository) GetBySlug(ctx context.Context, slug string) (*models.QRRecord, error) {
	query := `SELECT ` + qrColumns + ` FROM qr_codes WHERE slug = $1`
	return r.queryOne(ctx, query, slug)
}

// GetByID returns the owner's record
func (r *QRRepository) GetByID(ctx context.Context, id, ownerID string) (*models.QRRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + qrColumns + ` FROM qr_codes WHERE id = $1 AND user_id = $2`
	return r.queryOne(ctx, query, id, ownerID)
}

// ListByOwner returns the owner's records newest first
func (r *QRRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.QRRecord, error) {
	query := `SELECT ` + qrColumns + ` FROM qr_codes WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Pool().Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list QR records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.QRRecord, 0)
	for rows.Next() {
		record, err := scanQRRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating QR records: %w", err)
	}

	return records, nil
}

// CountByOwner returns how many records the owner has
func (r *QRRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM qr_codes WHERE user_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count QR records: %w", err)
	}
	return count, nil
}

// Update applies patch to the owner's record and returns the result
func (r *QRRepository) Update(ctx context.Context, id, ownerID string, patch models.QRPatch) (*models.QRRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	var configJSON []byte
	if patch.DestinationConfig != nil {
		var err error
		configJSON, err = marshalConfig(patch.DestinationConfig)
		if err != nil {
			return nil, err
		}
	}

	query := `
		UPDATE qr_codes
		SET name = COALESCE($3, name),
		    destination_config = COALESCE($4, destination_config),
		    is_active = COALESCE($5, is_active),
		    updated_at = $6
		WHERE id = $1 AND user_id = $2
		RETURNING ` + qrColumns

	return r.queryOne(ctx, query, id, ownerID, patch.Name, configJSON, patch.IsActive, time.Now().UTC())
}

// Delete removes the owner's record. Events are kept.
func (r *QRRepository) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	result, err := r.db.Pool().Exec(ctx, `DELETE FROM qr_codes WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete QR record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementScanCount adds one in a single statement so concurrent scans never lose updates.
// The active check lives in the same statement, so a stale cached record cannot count.
func (r *QRRepository) IncrementScanCount(ctx context.Context, slug string) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx,
		`UPDATE qr_codes SET scan_count = scan_count + 1 WHERE slug = $1 AND is_active RETURNING scan_count`,
		slug,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment scan count: %w", err)
	}
	return count, nil
}

func (r *QRRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.QRRecord, error) {
	record, err := scanQRRecord(r.db.Pool().QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

func scanQRRecord(row pgx.Row) (*models.QRRecord, error) {
	var (
		record     models.QRRecord
		qrType     string
		configJSON []byte
	)

	err := row.Scan(
		&record.ID,
		&record.OwnerID,
		&record.Slug,
		&record.Name,
		&qrType,
		&configJSON,
		&record.IsActive,
		&record.ScanCount,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan QR record: %w", err)
	}

	record.Type = types.QRType(qrType)
	cfg, err := types.DecodeDestinationConfig(record.Type, configJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode destination config for %s: %w", record.Slug, err)
	}
	record.DestinationConfig = cfg

	return &record, nil
}

func marshalConfig(cfg types.DestinationConfig) ([]byte, error) {
	if cfg == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal destination config: %w", err)
	}
	return data, nil
}
