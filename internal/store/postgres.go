package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"medreminder-go/internal/models"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	// Create tables
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	// Apply migrations for existing tables
	migrations := []string{
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS totp_secret VARCHAR(255);`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS totp_enabled BOOLEAN DEFAULT FALSE;`,
		`ALTER TABLE doses ADD COLUMN IF NOT EXISTS status VARCHAR(16) NOT NULL DEFAULT 'scheduled';`,
		`ALTER TABLE notifications ADD COLUMN IF NOT EXISTS sent_at TIMESTAMP WITH TIME ZONE;`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// User methods

func (s *PostgresStore) CreateUser(ctx context.Context, email, password string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, created_at)
		 VALUES ($1, $2, NOW())
		 RETURNING id, email, display_name, password_hash, created_at`,
		email, passwordHash,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int) (models.User, error) {
	return s.getUserBy(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUserBy(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) getUserBy(ctx context.Context, where string, arg any) (models.User, error) {
	var user models.User
	var totpSecret sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, totp_secret, totp_enabled, created_at FROM users `+where,
		arg,
	).Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &totpSecret, &user.TOTPEnabled, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	if totpSecret.Valid {
		user.TOTPSecret = totpSecret.String
	}

	return user, nil
}

// 2FA methods

func (s *PostgresStore) UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = $1, totp_enabled = $2 WHERE id = $3`,
		totpSecret, enabled, userID,
	)
	return err
}

func (s *PostgresStore) Disable2FA(ctx context.Context, userID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = NULL, totp_enabled = FALSE WHERE id = $1`,
		userID,
	)
	return err
}

// Medicine methods

func (s *PostgresStore) CreateMedicine(ctx context.Context, m models.Medicine) (models.Medicine, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO medicines (user_id, name, formula, manufacturer, strength, start_date, frequency, dose_times, duration_days, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		 RETURNING id, created_at, updated_at`,
		m.UserID, m.Name, m.Formula, m.Manufacturer, m.Strength, m.StartDate,
		m.Frequency, pq.Array(m.DoseTimes), m.DurationDays, m.Status,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		return models.Medicine{}, err
	}

	return m, nil
}

const medicineColumns = `id, user_id, name, formula, manufacturer, strength, start_date, frequency, dose_times, duration_days, status, created_at, updated_at`

func scanMedicine(row interface{ Scan(...any) error }) (models.Medicine, error) {
	var m models.Medicine
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Formula, &m.Manufacturer, &m.Strength,
		&m.StartDate, &m.Frequency, pq.Array(&m.DoseTimes), &m.DurationDays, &m.Status,
		&m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *PostgresStore) GetMedicine(ctx context.Context, id, userID int) (models.Medicine, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	m, err := scanMedicine(row)
	if err == sql.ErrNoRows {
		return models.Medicine{}, ErrNotFound
	}
	if err != nil {
		return models.Medicine{}, err
	}
	return m, nil
}

func (s *PostgresStore) GetMedicines(ctx context.Context, userID int) ([]models.Medicine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+medicineColumns+` FROM medicines WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var medicines []models.Medicine
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			continue
		}
		medicines = append(medicines, m)
	}

	return medicines, rows.Err()
}

func (s *PostgresStore) UpdateMedicine(ctx context.Context, m models.Medicine) (models.Medicine, error) {
	err := s.db.QueryRowContext(ctx,
		`UPDATE medicines
		 SET name = $1, formula = $2, manufacturer = $3, strength = $4, start_date = $5,
		     frequency = $6, dose_times = $7, duration_days = $8, status = $9, updated_at = NOW()
		 WHERE id = $10 AND user_id = $11
		 RETURNING created_at, updated_at`,
		m.Name, m.Formula, m.Manufacturer, m.Strength, m.StartDate,
		m.Frequency, pq.Array(m.DoseTimes), m.DurationDays, m.Status,
		m.ID, m.UserID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return models.Medicine{}, ErrNotFound
	}
	if err != nil {
		return models.Medicine{}, err
	}
	return m, nil
}

// DeleteMedicine removes the medicine; its doses and notifications go
// with it through the FK cascade.
func (s *PostgresStore) DeleteMedicine(ctx context.Context, id, userID int) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM medicines WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
