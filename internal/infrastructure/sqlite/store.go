// Package sqlite provides a single-file output.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
	"trainingreg/internal/infrastructure/database"
	"trainingreg/internal/infrastructure/sqlite/migrations"
	"trainingreg/internal/ports/output"
)

var _ output.Store = (*Store)(nil)

const (
	trainingColumns     = "id, slot_key, display_name, capacity, opens_at, created_at"
	registrationColumns = "id, training_id, name, email, status, cancel_token, created_at"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Store keeps one open connection, so every write transaction in the
// process is serialized by database/sql itself.
type Store struct {
	sqlDB *sql.DB
	db    dbtx
	inTx  bool
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Migrate applies the embedded schema to the database file at path.
func Migrate(path string) error {
	return database.RunMigrations(migrations.FS, "sqlite://"+filepath.Clean(path))
}

// Open opens the database file at path. Run Migrate first.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{sqlDB: sqlDB, db: sqlDB, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) WithinTraining(ctx context.Context, trainingID uint, fn func(tx output.Store) error) error {
	if s.inTx {
		if _, err := s.GetTraining(ctx, trainingID); err != nil {
			return err
		}
		return fn(s)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	bound := &Store{sqlDB: s.sqlDB, db: tx, inTx: true, now: s.now}
	if _, err := bound.GetTraining(ctx, trainingID); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := fn(bound); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetTraining(ctx context.Context, id uint) (*entities.Training, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trainingColumns+` FROM trainings WHERE id = ?`, int64(id))
	return scanTraining(row)
}

func (s *Store) GetTrainingByKey(ctx context.Context, key string) (*entities.Training, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trainingColumns+` FROM trainings WHERE slot_key = ?`, key)
	return scanTraining(row)
}

func (s *Store) ListTrainings(ctx context.Context) ([]entities.Training, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trainingColumns+` FROM trainings ORDER BY slot_key`)
	if err != nil {
		return nil, fmt.Errorf("list trainings: %w", err)
	}
	defer rows.Close()

	var out []entities.Training
	for rows.Next() {
		t, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) InsertTraining(ctx context.Context, training *entities.Training) error {
	createdAt := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trainings (slot_key, display_name, capacity, opens_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		training.Key, training.DisplayName, training.Capacity, toMillis(training.OpensAt), toMillis(createdAt))
	if isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE) {
		return domain.ErrTrainingKeyExists
	}
	if err != nil {
		return fmt.Errorf("insert training: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert training: %w", err)
	}
	training.ID = uint(id)
	training.CreatedAt = fromMillis(toMillis(createdAt))
	return nil
}

func (s *Store) UpdateCapacity(ctx context.Context, id uint, capacity int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE trainings SET capacity = ? WHERE id = ?`, capacity, int64(id))
	if err != nil {
		return fmt.Errorf("update capacity: %w", err)
	}
	return affected(res, domain.ErrTrainingNotFound)
}

func (s *Store) DeleteTraining(ctx context.Context, id uint) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trainings WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("delete training: %w", err)
	}
	return affected(res, domain.ErrTrainingNotFound)
}

func (s *Store) GetRegistration(ctx context.Context, id uint) (*entities.Registration, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = ?`, int64(id))
	return scanRegistration(row)
}

func (s *Store) GetRegistrationByCancelToken(ctx context.Context, token string) (*entities.Registration, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE cancel_token = ?`, token)
	return scanRegistration(row)
}

func (s *Store) FindRegistration(ctx context.Context, trainingID uint, email string) (*entities.Registration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE training_id = ? AND email = ?`,
		int64(trainingID), email)
	return scanRegistration(row)
}

func (s *Store) EarliestWaitlisted(ctx context.Context, trainingID uint) (*entities.Registration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE training_id = ? AND status = ? ORDER BY id LIMIT 1`,
		int64(trainingID), domain.StatusWaitlisted.String())
	r, err := scanRegistration(row)
	if errors.Is(err, domain.ErrRegistrationNotFound) {
		return nil, domain.ErrWaitlistEmpty
	}
	return r, err
}

func (s *Store) ListRegistrations(ctx context.Context, trainingID uint) ([]entities.Registration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE training_id = ? ORDER BY id`,
		int64(trainingID))
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []entities.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) CountRegistrations(ctx context.Context, trainingID uint, status domain.Status) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE training_id = ? AND status = ?`,
		int64(trainingID), status.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func (s *Store) InsertRegistration(ctx context.Context, registration *entities.Registration) error {
	createdAt := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations (training_id, name, email, status, cancel_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(registration.TrainingID), registration.Name, registration.Email,
		registration.Status.String(), registration.CancelToken, toMillis(createdAt))
	switch {
	case isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE):
		return domain.ErrDuplicateRegistration
	case isConstraint(err, sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY):
		return domain.ErrTrainingNotFound
	case err != nil:
		return fmt.Errorf("insert registration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	registration.ID = uint(id)
	registration.CreatedAt = fromMillis(toMillis(createdAt))
	return nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id uint) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return affected(res, domain.ErrRegistrationNotFound)
}

func (s *Store) Promote(ctx context.Context, id uint) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE registrations SET status = ? WHERE id = ? AND status = ?`,
		domain.StatusConfirmed.String(), int64(id), domain.StatusWaitlisted.String())
	if err != nil {
		return fmt.Errorf("promote registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.GetRegistration(ctx, id); err != nil {
		return err
	}
	return domain.ErrNotWaitlisted
}

func scanTraining(row scanner) (*entities.Training, error) {
	var t entities.Training
	var id, opensAt, createdAt int64
	err := row.Scan(&id, &t.Key, &t.DisplayName, &t.Capacity, &opensAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTrainingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan training: %w", err)
	}
	t.ID = uint(id)
	t.OpensAt = fromMillis(opensAt)
	t.CreatedAt = fromMillis(createdAt)
	return &t, nil
}

func scanRegistration(row scanner) (*entities.Registration, error) {
	var r entities.Registration
	var id, trainingID, created int64
	var status string
	err := row.Scan(&id, &trainingID, &r.Name, &r.Email, &status, &r.CancelToken, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	if r.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	r.ID = uint(id)
	r.TrainingID = uint(trainingID)
	r.CreatedAt = fromMillis(created)
	return &r, nil
}

// affected returns notFound when res touched no rows.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isConstraint(err error, code int) bool {
	var sqliteErr *msqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == code
}
