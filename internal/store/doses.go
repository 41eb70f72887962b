package store

import (
	"context"
	"database/sql"
	"time"

	"medreminder-go/internal/models"

	"github.com/lib/pq"
)

// Dose methods

// CreateDoses bulk-inserts one row per timestamp, preserving the
// expansion order. Called at medicine creation.
func (s *PostgresStore) CreateDoses(ctx context.Context, medicineID int, times []time.Time) ([]models.Dose, error) {
	if len(times) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	doses, err := insertDoses(ctx, tx, medicineID, times)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return doses, nil
}

// RegenerateDoses replaces the not-yet-taken doses at or after the
// given instant with the supplied timestamps in a single transaction,
// so an edited medicine never sits without its future schedule. Taken
// doses stay: they are history.
func (s *PostgresStore) RegenerateDoses(ctx context.Context, medicineID int, from time.Time, times []time.Time) ([]models.Dose, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM doses WHERE medicine_id = $1 AND taken = FALSE AND dose_time >= $2`,
		medicineID, from,
	); err != nil {
		return nil, err
	}

	doses, err := insertDoses(ctx, tx, medicineID, times)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return doses, nil
}

func insertDoses(ctx context.Context, tx *sql.Tx, medicineID int, times []time.Time) ([]models.Dose, error) {
	if len(times) == 0 {
		return nil, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO doses (medicine_id, dose_time, taken, status, updated_at)
		 VALUES ($1, $2, FALSE, 'scheduled', NOW())
		 RETURNING id, medicine_id, dose_time, taken, status, updated_at`,
	)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	doses := make([]models.Dose, 0, len(times))
	for _, t := range times {
		var d models.Dose
		if err := stmt.QueryRowContext(ctx, medicineID, t).Scan(
			&d.ID, &d.MedicineID, &d.DoseTime, &d.Taken, &d.Status, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		doses = append(doses, d)
	}
	return doses, nil
}

const doseColumns = `d.id, d.medicine_id, d.dose_time, d.taken, d.taken_at, d.status, d.updated_at, m.name, m.strength`

func scanDose(row interface{ Scan(...any) error }) (models.Dose, error) {
	var d models.Dose
	var takenAt sql.NullTime
	err := row.Scan(&d.ID, &d.MedicineID, &d.DoseTime, &d.Taken, &takenAt, &d.Status,
		&d.UpdatedAt, &d.MedicineName, &d.MedicineStrength)
	if takenAt.Valid {
		d.TakenAt = &takenAt.Time
	}
	return d, err
}

func (s *PostgresStore) queryDoses(ctx context.Context, query string, args ...any) ([]models.Dose, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doses []models.Dose
	for rows.Next() {
		d, err := scanDose(rows)
		if err != nil {
			continue
		}
		doses = append(doses, d)
	}
	return doses, rows.Err()
}

func (s *PostgresStore) GetDosesForMedicine(ctx context.Context, medicineID, userID int) ([]models.Dose, error) {
	return s.queryDoses(ctx,
		`SELECT `+doseColumns+`
		 FROM doses d INNER JOIN medicines m ON d.medicine_id = m.id
		 WHERE d.medicine_id = $1 AND m.user_id = $2
		 ORDER BY d.dose_time ASC`,
		medicineID, userID,
	)
}

func (s *PostgresStore) GetUpcomingDoses(ctx context.Context, userID int, now time.Time, limit int) ([]models.Dose, error) {
	return s.queryDoses(ctx,
		`SELECT `+doseColumns+`
		 FROM doses d INNER JOIN medicines m ON d.medicine_id = m.id
		 WHERE m.user_id = $1 AND d.taken = FALSE AND d.dose_time >= $2
		 ORDER BY d.dose_time ASC
		 LIMIT $3`,
		userID, now, limit,
	)
}

func (s *PostgresStore) GetDosesBetween(ctx context.Context, userID int, from, to time.Time) ([]models.Dose, error) {
	return s.queryDoses(ctx,
		`SELECT `+doseColumns+`
		 FROM doses d INNER JOIN medicines m ON d.medicine_id = m.id
		 WHERE m.user_id = $1 AND d.dose_time >= $2 AND d.dose_time < $3
		 ORDER BY d.dose_time ASC`,
		userID, from, to,
	)
}

func (s *PostgresStore) GetDoseHistory(ctx context.Context, userID int) ([]models.Dose, error) {
	return s.queryDoses(ctx,
		`SELECT `+doseColumns+`
		 FROM doses d INNER JOIN medicines m ON d.medicine_id = m.id
		 WHERE m.user_id = $1 AND d.dose_time <= NOW()
		 ORDER BY d.dose_time DESC`,
		userID,
	)
}

// MarkDoseTaken flips taken and stamps taken_at in one conditional
// update. The WHERE taken = FALSE predicate makes it a no-op against
// an already-taken dose and keeps it race-free against the sweeper.
func (s *PostgresStore) MarkDoseTaken(ctx context.Context, doseID, userID int, at time.Time) (models.Dose, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE doses d
		 SET taken = TRUE, taken_at = $3, status = 'taken', updated_at = NOW()
		 FROM medicines m
		 WHERE d.id = $1 AND d.medicine_id = m.id AND m.user_id = $2 AND d.taken = FALSE
		 RETURNING `+doseColumns,
		doseID, userID, at,
	)

	d, err := scanDose(row)
	if err == nil {
		return d, true, nil
	}
	if err != sql.ErrNoRows {
		return models.Dose{}, false, err
	}

	// Nothing updated: either the dose is already taken (no-op) or it
	// doesn't exist for this user (not found).
	row = s.db.QueryRowContext(ctx,
		`SELECT `+doseColumns+`
		 FROM doses d INNER JOIN medicines m ON d.medicine_id = m.id
		 WHERE d.id = $1 AND m.user_id = $2`,
		doseID, userID,
	)
	d, err = scanDose(row)
	if err == sql.ErrNoRows {
		return models.Dose{}, false, ErrNotFound
	}
	if err != nil {
		return models.Dose{}, false, err
	}
	return d, false, nil
}

// SweepMissed is the only writer of the missed status. The predicate
// is evaluated atomically at commit time, so a mark-taken that lands
// mid-sweep is never clobbered back to missed.
func (s *PostgresStore) SweepMissed(ctx context.Context, cutoff time.Time, excludeUsers []int) ([]int, error) {
	if excludeUsers == nil {
		excludeUsers = []int{}
	}

	rows, err := s.db.QueryContext(ctx,
		`UPDATE doses d
		 SET status = 'missed', updated_at = NOW()
		 FROM medicines m
		 WHERE d.medicine_id = m.id
		   AND d.taken = FALSE
		   AND d.status <> 'missed'
		   AND d.dose_time < $1
		   AND NOT (m.user_id = ANY($2))
		 RETURNING d.id`,
		cutoff, pq.Array(excludeUsers),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
