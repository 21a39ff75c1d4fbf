package repository

import (
	"context"
	"fmt"
)

// RecordEvent inserts the gateway event id; the primary key makes the
// check-and-mark atomic, so a redelivered webhook maps to
// ErrDuplicateEvent instead of being processed twice.
func (r *Repository) RecordEvent(ctx context.Context, eventID, eventType string) error {
	query := `INSERT INTO webhook_events (event_id, event_type, processed_at) VALUES ($1, $2, NOW())`

	_, err := r.q.ExecContext(ctx, query, eventID, eventType)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

func (r *Repository) ClearEvent(ctx context.Context, eventID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM webhook_events WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("clear webhook event: %w", err)
	}
	return nil
}

func (r *Repository) GrantEnrollment(ctx context.Context, userID, courseID string) error {
	query := `INSERT INTO enrollments (user_id, course_id, enrolled_at)
	          VALUES ($1, $2, NOW())
	          ON CONFLICT (user_id, course_id) DO NOTHING`

	_, err := r.q.ExecContext(ctx, query, userID, courseID)
	if err != nil {
		return fmt.Errorf("grant enrollment: %w", err)
	}
	return nil
}

func (r *Repository) HasEnrollment(ctx context.Context, userID, courseID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, userID, courseID).Scan(&exists); err != nil {
		return false, fmt.Errorf("query enrollment: %w", err)
	}
	return exists, nil
}
