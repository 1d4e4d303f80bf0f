// Package database implements output.Store on PostgreSQL with pgx.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"trainingreg/internal/domain"
	"trainingreg/internal/domain/entities"
	"trainingreg/internal/ports/output"
)

var _ output.Store = (*Store)(nil)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	trainingColumns     = "id, slot_key, display_name, capacity, opens_at, created_at"
	registrationColumns = "id, training_id, name, email, status, cancel_token, created_at"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a PostgreSQL output.Store. Outside WithinTraining it runs on the
// pool; inside, on the transaction that holds the training row lock.
type Store struct {
	pool *pgxpool.Pool
	db   dbtx
	inTx bool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// WithinTraining opens a transaction and locks the training row with
// SELECT ... FOR UPDATE, so concurrent units on the same training queue up
// behind each other across processes.
func (s *Store) WithinTraining(ctx context.Context, trainingID uint, fn func(tx output.Store) error) error {
	if s.inTx {
		if err := s.lockTraining(ctx, trainingID); err != nil {
			return err
		}
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		bound := &Store{pool: s.pool, db: tx, inTx: true}
		if err := bound.lockTraining(ctx, trainingID); err != nil {
			return err
		}
		return fn(bound)
	})
}

func (s *Store) lockTraining(ctx context.Context, trainingID uint) error {
	var id int64
	err := s.db.QueryRow(ctx, `SELECT id FROM trainings WHERE id = $1 FOR UPDATE`, int64(trainingID)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrTrainingNotFound
	}
	if err != nil {
		return fmt.Errorf("lock training: %w", err)
	}
	return nil
}

func (s *Store) GetTraining(ctx context.Context, id uint) (*entities.Training, error) {
	return s.oneTraining(ctx, `SELECT `+trainingColumns+` FROM trainings WHERE id = $1`, int64(id))
}

func (s *Store) GetTrainingByKey(ctx context.Context, key string) (*entities.Training, error) {
	return s.oneTraining(ctx, `SELECT `+trainingColumns+` FROM trainings WHERE slot_key = $1`, key)
}

func (s *Store) oneTraining(ctx context.Context, query string, arg any) (*entities.Training, error) {
	rows, _ := s.db.Query(ctx, query, arg)
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[trainingRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTrainingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get training: %w", err)
	}
	t := trainingToDomain(row)
	return &t, nil
}

func (s *Store) ListTrainings(ctx context.Context) ([]entities.Training, error) {
	rows, _ := s.db.Query(ctx, `SELECT `+trainingColumns+` FROM trainings ORDER BY slot_key`)
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[trainingRow])
	if err != nil {
		return nil, fmt.Errorf("list trainings: %w", err)
	}
	out := make([]entities.Training, len(list))
	for i := range list {
		out[i] = trainingToDomain(list[i])
	}
	return out, nil
}

func (s *Store) InsertTraining(ctx context.Context, training *entities.Training) error {
	var (
		id        int64
		createdAt pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx,
		`INSERT INTO trainings (slot_key, display_name, capacity, opens_at)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		training.Key, training.DisplayName, int32(training.Capacity),
		pgtype.Timestamptz{Time: training.OpensAt, Valid: true},
	).Scan(&id, &createdAt)
	if isViolation(err, pgUniqueViolation) {
		return domain.ErrTrainingKeyExists
	}
	if err != nil {
		return fmt.Errorf("insert training: %w", err)
	}
	training.ID = uint(id)
	training.CreatedAt = pgtypeTimestamptzToTime(createdAt)
	return nil
}

func (s *Store) UpdateCapacity(ctx context.Context, id uint, capacity int) error {
	tag, err := s.db.Exec(ctx, `UPDATE trainings SET capacity = $2 WHERE id = $1`, int64(id), int32(capacity))
	if err != nil {
		return fmt.Errorf("update capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTrainingNotFound
	}
	return nil
}

func (s *Store) DeleteTraining(ctx context.Context, id uint) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM trainings WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete training: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTrainingNotFound
	}
	return nil
}

func (s *Store) GetRegistration(ctx context.Context, id uint) (*entities.Registration, error) {
	return s.oneRegistration(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, int64(id))
}

func (s *Store) GetRegistrationByCancelToken(ctx context.Context, token string) (*entities.Registration, error) {
	return s.oneRegistration(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE cancel_token = $1`, token)
}

func (s *Store) FindRegistration(ctx context.Context, trainingID uint, email string) (*entities.Registration, error) {
	return s.oneRegistration(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE training_id = $1 AND email = $2`,
		int64(trainingID), email)
}

func (s *Store) EarliestWaitlisted(ctx context.Context, trainingID uint) (*entities.Registration, error) {
	r, err := s.oneRegistration(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE training_id = $1 AND status = $2 ORDER BY id LIMIT 1`,
		int64(trainingID), domain.StatusWaitlisted.String())
	if errors.Is(err, domain.ErrRegistrationNotFound) {
		return nil, domain.ErrWaitlistEmpty
	}
	return r, err
}

func (s *Store) oneRegistration(ctx context.Context, query string, args ...any) (*entities.Registration, error) {
	rows, _ := s.db.Query(ctx, query, args...)
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[registrationRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	r, err := registrationToDomain(row)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRegistrations(ctx context.Context, trainingID uint) ([]entities.Registration, error) {
	rows, _ := s.db.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE training_id = $1 ORDER BY id`,
		int64(trainingID))
	list, err := pgx.CollectRows(rows, pgx.RowToStructByName[registrationRow])
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	out := make([]entities.Registration, len(list))
	for i := range list {
		if out[i], err = registrationToDomain(list[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) CountRegistrations(ctx context.Context, trainingID uint, status domain.Status) (int, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE training_id = $1 AND status = $2`,
		int64(trainingID), status.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return int(n), nil
}

func (s *Store) InsertRegistration(ctx context.Context, registration *entities.Registration) error {
	var (
		id        int64
		createdAt pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx,
		`INSERT INTO registrations (training_id, name, email, status, cancel_token)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		int64(registration.TrainingID), registration.Name, registration.Email,
		registration.Status.String(), registration.CancelToken,
	).Scan(&id, &createdAt)
	switch {
	case isViolation(err, pgUniqueViolation):
		return domain.ErrDuplicateRegistration
	case isViolation(err, pgForeignKeyViolation):
		return domain.ErrTrainingNotFound
	case err != nil:
		return fmt.Errorf("insert registration: %w", err)
	}
	registration.ID = uint(id)
	registration.CreatedAt = pgtypeTimestamptzToTime(createdAt)
	return nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id uint) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

func (s *Store) Promote(ctx context.Context, id uint) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE registrations SET status = $2 WHERE id = $1 AND status = $3`,
		int64(id), domain.StatusConfirmed.String(), domain.StatusWaitlisted.String())
	if err != nil {
		return fmt.Errorf("promote registration: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetRegistration(ctx, id); err != nil {
		return err
	}
	return domain.ErrNotWaitlisted
}

func isViolation(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
