package repositories

import (
	"context"
	"fmt"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

const eventColumns = `id, device_id, timestamp_ms, severity, notes, is_resolved, alert_sent, created_at, updated_at`

// FetchByDevice returns a device's full event history, newest first.
func (r *PostgresEventRepository) FetchByDevice(ctx context.Context, deviceID uuid.UUID) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + `
	          FROM events
	          WHERE device_id = $1
	          ORDER BY timestamp_ms DESC`

	rows, err := r.pool.Query(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// FetchRecent returns at most limit of the device's newest events.
func (r *PostgresEventRepository) FetchRecent(ctx context.Context, deviceID uuid.UUID, limit int) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + `
	          FROM events
	          WHERE device_id = $1
	          ORDER BY timestamp_ms DESC
	          LIMIT $2`

	rows, err := r.pool.Query(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *PostgresEventRepository) Resolve(ctx context.Context, deviceID uuid.UUID, eventID string) error {
	query := `UPDATE events
	          SET is_resolved = TRUE, updated_at = NOW()
	          WHERE device_id = $1 AND id = $2`

	result, err := r.pool.Exec(ctx, query, deviceID, eventID)
	if err != nil {
		return fmt.Errorf("failed to resolve event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresEventRepository) Delete(ctx context.Context, deviceID uuid.UUID, eventID string) error {
	query := `DELETE FROM events WHERE device_id = $1 AND id = $2`

	result, err := r.pool.Exec(ctx, query, deviceID, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanEvents(rows pgx.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var event models.Event
		err := rows.Scan(
			&event.ID,
			&event.DeviceID,
			&event.Timestamp,
			&event.Severity,
			&event.Notes,
			&event.IsResolved,
			&event.AlertSent,
			&event.CreatedAt,
			&event.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
