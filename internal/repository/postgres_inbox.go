package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"imagepacks/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS inbox (
	id BIGSERIAL PRIMARY KEY,
	request_code TEXT NOT NULL,
	image_name TEXT NOT NULL,
	saved_on TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_inbox_request_code ON inbox (request_code);
CREATE INDEX IF NOT EXISTS idx_inbox_image_name ON inbox (image_name);
`

type PostgresInboxRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresInboxRepository(pool *pgxpool.Pool) *PostgresInboxRepository {
	return &PostgresInboxRepository{pool: pool}
}

func (r *PostgresInboxRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create inbox table: %w", err)
	}
	return nil
}

func (r *PostgresInboxRepository) Insert(ctx context.Context, packID, imageName string, savedOn time.Time) error {
	const query = `INSERT INTO inbox (request_code, image_name, saved_on) VALUES ($1, $2, $3)`
	if _, err := r.pool.Exec(ctx, query, packID, imageName, models.FormatTimestamp(savedOn)); err != nil {
		return fmt.Errorf("insert inbox row: %w", err)
	}
	return nil
}

// EarliestTimestamp returns the earliest saved_on of the pack in the offset it
// was recorded with. Rows of one pack may carry different offsets (a DST
// switch during a save), so the minimum is taken on parsed instants rather
// than on the stored text.
func (r *PostgresInboxRepository) EarliestTimestamp(ctx context.Context, packID string) (time.Time, error) {
	rows, err := r.pool.Query(ctx, `SELECT saved_on FROM inbox WHERE request_code = $1`, packID)
	if err != nil {
		return time.Time{}, fmt.Errorf("select saved_on: %w", err)
	}
	defer rows.Close()

	var stamps []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return time.Time{}, fmt.Errorf("scan saved_on: %w", err)
		}
		savedOn, err := models.ParseTimestamp(raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse saved_on %q: %w", raw, err)
		}
		stamps = append(stamps, savedOn)
	}
	if err := rows.Err(); err != nil {
		return time.Time{}, fmt.Errorf("select saved_on: %w", err)
	}

	first, ok := models.Earliest(stamps)
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return first, nil
}

func (r *PostgresInboxRepository) ListForPack(ctx context.Context, packID string) ([]models.ImageRecord, error) {
	const query = `
		SELECT id, request_code, image_name, saved_on
		FROM inbox
		WHERE request_code = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, packID)
	if err != nil {
		return nil, fmt.Errorf("select inbox rows: %w", err)
	}
	defer rows.Close()

	records := []models.ImageRecord{}
	for rows.Next() {
		var (
			record models.ImageRecord
			raw    string
		)
		if err := rows.Scan(&record.ID, &record.PackID, &record.ImageName, &raw); err != nil {
			return nil, fmt.Errorf("scan inbox row: %w", err)
		}
		if record.SavedOn, err = models.ParseTimestamp(raw); err != nil {
			return nil, fmt.Errorf("parse saved_on %q: %w", raw, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *PostgresInboxRepository) DeleteForPack(ctx context.Context, packID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM inbox WHERE request_code = $1`, packID); err != nil {
		return fmt.Errorf("delete inbox rows: %w", err)
	}
	return nil
}

func (r *PostgresInboxRepository) ImageExists(ctx context.Context, imageName string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inbox WHERE image_name = $1)`, imageName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select image: %w", err)
	}
	return exists, nil
}

func (r *PostgresInboxRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
