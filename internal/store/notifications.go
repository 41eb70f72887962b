package store

import (
	"context"
	"database/sql"
	"time"

	"medreminder-go/internal/models"

	"github.com/lib/pq"
)

// Push subscription methods

// SavePushSubscription deactivates any existing rows for the user and
// inserts the new one, so the newest active row is "the" subscription.
func (s *PostgresStore) SavePushSubscription(ctx context.Context, userID int, endpoint, p256dh, auth string) (models.PushSubscription, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.PushSubscription{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE push_subscriptions SET is_active = FALSE WHERE user_id = $1`,
		userID,
	); err != nil {
		return models.PushSubscription{}, err
	}

	var sub models.PushSubscription
	err = tx.QueryRowContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, is_active, created_at)
		 VALUES ($1, $2, $3, $4, TRUE, NOW())
		 RETURNING id, user_id, endpoint, p256dh, auth, is_active, created_at`,
		userID, endpoint, p256dh, auth,
	).Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.IsActive, &sub.CreatedAt)
	if err != nil {
		return models.PushSubscription{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.PushSubscription{}, err
	}
	return sub, nil
}

func (s *PostgresStore) DeactivatePushSubscriptions(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET is_active = FALSE WHERE user_id = $1`,
		userID,
	)
	return err
}

func (s *PostgresStore) ActivePushSubscription(ctx context.Context, userID int) (models.PushSubscription, error) {
	var sub models.PushSubscription
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, is_active, created_at
		 FROM push_subscriptions
		 WHERE user_id = $1 AND is_active = TRUE
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.IsActive, &sub.CreatedAt)

	if err == sql.ErrNoRows {
		return models.PushSubscription{}, ErrNotFound
	}
	return sub, err
}

// Scheduling queries

const candidateColumns = `d.id, d.medicine_id, m.user_id, m.name, m.strength, d.dose_time,
	 s.id, s.user_id, s.endpoint, s.p256dh, s.auth, s.is_active, s.created_at`

func scanCandidate(rows *sql.Rows) (ScheduleCandidate, error) {
	var c ScheduleCandidate
	err := rows.Scan(&c.DoseID, &c.MedicineID, &c.UserID, &c.MedicineName, &c.Strength, &c.DoseTime,
		&c.Subscription.ID, &c.Subscription.UserID, &c.Subscription.Endpoint,
		&c.Subscription.P256dh, &c.Subscription.Auth, &c.Subscription.IsActive,
		&c.Subscription.CreatedAt)
	return c, err
}

func (s *PostgresStore) queryCandidates(ctx context.Context, query string, args ...any) ([]ScheduleCandidate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []ScheduleCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ScheduleCandidates returns untaken doses inside (from, to] whose
// owner has an active subscription; the lateral join picks the newest
// active row per user. Users without one simply don't appear.
func (s *PostgresStore) ScheduleCandidates(ctx context.Context, from, to time.Time) ([]ScheduleCandidate, error) {
	return s.queryCandidates(ctx,
		`SELECT `+candidateColumns+`
		 FROM doses d
		 INNER JOIN medicines m ON d.medicine_id = m.id
		 INNER JOIN LATERAL (
		     SELECT * FROM push_subscriptions ps
		     WHERE ps.user_id = m.user_id AND ps.is_active = TRUE
		     ORDER BY ps.created_at DESC
		     LIMIT 1
		 ) s ON TRUE
		 WHERE d.taken = FALSE AND d.dose_time > $1 AND d.dose_time <= $2
		 ORDER BY d.dose_time ASC`,
		from, to,
	)
}

// MissedCandidates resolves just-swept dose ids to notification
// candidates. Doses whose owner has no active subscription drop out.
func (s *PostgresStore) MissedCandidates(ctx context.Context, doseIDs []int) ([]ScheduleCandidate, error) {
	if len(doseIDs) == 0 {
		return nil, nil
	}
	return s.queryCandidates(ctx,
		`SELECT `+candidateColumns+`
		 FROM doses d
		 INNER JOIN medicines m ON d.medicine_id = m.id
		 INNER JOIN LATERAL (
		     SELECT * FROM push_subscriptions ps
		     WHERE ps.user_id = m.user_id AND ps.is_active = TRUE
		     ORDER BY ps.created_at DESC
		     LIMIT 1
		 ) s ON TRUE
		 WHERE d.id = ANY($1)`,
		pq.Array(doseIDs),
	)
}

// Assignment methods

// CreateAssignments inserts pending assignments, skipping doses that
// already have one. The unique dose_id key makes re-scheduling the
// same window a no-op.
func (s *PostgresStore) CreateAssignments(ctx context.Context, assignments []models.NotificationAssignment) (int, error) {
	if len(assignments) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO notifications (user_id, medicine_id, dose_id, push_subscription_id, title, body, status, scheduled_for, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, NOW())
		 ON CONFLICT (dose_id) DO NOTHING`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	created := 0
	for _, a := range assignments {
		result, err := stmt.ExecContext(ctx,
			a.UserID, a.MedicineID, a.DoseID, a.SubscriptionID, a.Title, a.Body, a.ScheduledFor,
		)
		if err != nil {
			return 0, err
		}
		if rows, _ := result.RowsAffected(); rows > 0 {
			created++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// DueAssignments returns pending assignments whose time has arrived.
// The active filter on the join means an unsubscribed user's
// assignments simply stop being due rather than pushing to a dead
// endpoint.
func (s *PostgresStore) DueAssignments(ctx context.Context, now time.Time) ([]AssignmentDelivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.user_id, n.medicine_id, n.dose_id, n.push_subscription_id,
		        n.title, n.body, n.status, n.scheduled_for, n.created_at,
		        s.id, s.user_id, s.endpoint, s.p256dh, s.auth, s.is_active, s.created_at
		 FROM notifications n
		 INNER JOIN push_subscriptions s ON n.push_subscription_id = s.id AND s.is_active = TRUE
		 WHERE n.status = 'pending' AND n.scheduled_for <= $1
		 ORDER BY n.scheduled_for ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []AssignmentDelivery
	for rows.Next() {
		var d AssignmentDelivery
		if err := rows.Scan(
			&d.Assignment.ID, &d.Assignment.UserID, &d.Assignment.MedicineID,
			&d.Assignment.DoseID, &d.Assignment.SubscriptionID,
			&d.Assignment.Title, &d.Assignment.Body, &d.Assignment.Status,
			&d.Assignment.ScheduledFor, &d.Assignment.CreatedAt,
			&d.Subscription.ID, &d.Subscription.UserID, &d.Subscription.Endpoint,
			&d.Subscription.P256dh, &d.Subscription.Auth, &d.Subscription.IsActive,
			&d.Subscription.CreatedAt,
		); err != nil {
			continue
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (s *PostgresStore) ClaimAssignment(ctx context.Context, id int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'sent', sent_at = NOW() WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, err
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *PostgresStore) MarkAssignmentFailed(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'failed' WHERE id = $1`,
		id,
	)
	return err
}
