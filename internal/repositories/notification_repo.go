package repositories

import (
	"context"
	"fmt"

	"github.com/Guychuk210/lullaby-sub000/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationRepository(pool *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

func (r *PostgresNotificationRepository) Exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM notifications WHERE id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}
	return exists, nil
}

func (r *PostgresNotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (id, user_id, device_id, title, body, date_label, timestamp_ms, is_read, raw_text, raw_time)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		n.ID,
		n.UserID,
		n.DeviceID,
		n.Title,
		n.Body,
		n.DateLabel,
		n.Timestamp,
		n.IsRead,
		n.RawText,
		n.RawTime,
	).Scan(&n.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	query := `SELECT id, user_id, device_id, title, body, date_label, timestamp_ms, is_read, raw_text, raw_time, created_at, updated_at
	          FROM notifications
	          WHERE user_id = $1
	          ORDER BY timestamp_ms DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.DeviceID,
			&n.Title,
			&n.Body,
			&n.DateLabel,
			&n.Timestamp,
			&n.IsRead,
			&n.RawText,
			&n.RawTime,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

func (r *PostgresNotificationRepository) SetRead(ctx context.Context, userID uuid.UUID, id string, read bool) error {
	query := `UPDATE notifications
	          SET is_read = $1, updated_at = NOW()
	          WHERE user_id = $2 AND id = $3`

	result, err := r.pool.Exec(ctx, query, read, userID, id)
	if err != nil {
		return fmt.Errorf("failed to update read flag: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) SetAllRead(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE notifications
	          SET is_read = TRUE, updated_at = NOW()
	          WHERE user_id = $1 AND is_read = FALSE`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark all read: %w", err)
	}
	return nil
}
