package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avilev/frontdesk/internal/reliability"
)

// PostgresStore backs the appointment ledger with a shared database for
// multi-node deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := waitForPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	if err := initAppointmentSchemaPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// waitForPostgres rides out the window where the database container is
// still coming up.
func waitForPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-time.After(reliability.ExponentialBackoff(attempt, 200*time.Millisecond, 3*time.Second)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("postgres not reachable: %w", err)
}

func initAppointmentSchemaPostgres(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id BIGSERIAL PRIMARY KEY,
			customer_name TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			appointment_date TEXT NOT NULL,
			appointment_time TEXT NOT NULL,
			confirmation_number TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			call_sid TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'confirmed'
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_appointments_slot
			ON appointments (appointment_date, appointment_time)
			WHERE status = 'confirmed';`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_confirmation
			ON appointments (confirmation_number);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init appointment schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) AvailableSlots(ctx context.Context, date string) ([]string, error) {
	all, err := DaySlots(date)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return all, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT appointment_time FROM appointments
		  WHERE appointment_date = $1 AND status = 'confirmed'`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query booked slots: %w", err)
	}
	defer rows.Close()

	booked := make([]string, 0, len(all))
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan booked slot: %w", err)
		}
		booked = append(booked, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booked slots: %w", err)
	}
	return subtractBooked(all, booked), nil
}

func (s *PostgresStore) CreateAppointment(ctx context.Context, req BookingRequest) (Appointment, error) {
	if err := req.validate(); err != nil {
		return Appointment{}, err
	}
	for attempt := 0; attempt < 3; attempt++ {
		appt, err := s.insertConfirmed(ctx, req, NewConfirmationNumber())
		if err == nil {
			return appt, nil
		}
		if isPostgresConflict(err, "confirmation_number") {
			continue
		}
		return Appointment{}, err
	}
	return Appointment{}, errors.New("could not allocate confirmation number")
}

func (s *PostgresStore) insertConfirmed(ctx context.Context, req BookingRequest, confirmation string) (Appointment, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return Appointment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var taken int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(1) FROM appointments
		  WHERE appointment_date = $1 AND appointment_time = $2 AND status = 'confirmed'`,
		req.Date, req.Time,
	).Scan(&taken)
	if err != nil {
		return Appointment{}, fmt.Errorf("check slot: %w", err)
	}
	if taken > 0 {
		return Appointment{}, ErrSlotTaken
	}

	var appt Appointment
	err = tx.QueryRow(ctx,
		`INSERT INTO appointments
			(customer_name, phone_number, appointment_date, appointment_time, confirmation_number, call_sid, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'confirmed')
		 RETURNING id, customer_name, phone_number, appointment_date, appointment_time,
		           confirmation_number, created_at, call_sid, status`,
		req.CustomerName, req.PhoneNumber, req.Date, req.Time, confirmation, req.CallSID,
	).Scan(
		&appt.ID, &appt.CustomerName, &appt.PhoneNumber, &appt.Date, &appt.Time,
		&appt.ConfirmationNumber, &appt.CreatedAt, &appt.CallSID, &appt.Status,
	)
	if err != nil {
		if isPostgresConflict(err, "idx_appointments_slot") {
			return Appointment{}, ErrSlotTaken
		}
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if isPostgresConflict(err, "idx_appointments_slot") {
			return Appointment{}, ErrSlotTaken
		}
		return Appointment{}, fmt.Errorf("commit tx: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) GetByConfirmation(ctx context.Context, confirmation string) (Appointment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, customer_name, phone_number, appointment_date, appointment_time,
		        confirmation_number, created_at, call_sid, status
		   FROM appointments WHERE confirmation_number = $1`,
		confirmation,
	)
	var appt Appointment
	err := row.Scan(
		&appt.ID, &appt.CustomerName, &appt.PhoneNumber, &appt.Date, &appt.Time,
		&appt.ConfirmationNumber, &appt.CreatedAt, &appt.CallSID, &appt.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *PostgresStore) CancelAppointment(ctx context.Context, confirmation string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status = 'cancelled'
		  WHERE confirmation_number = $1 AND status = 'confirmed'`,
		confirmation,
	)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, customer_name, phone_number, appointment_date, appointment_time,
		        confirmation_number, created_at, call_sid, status
		   FROM appointments
		  WHERE appointment_date = $1 AND status = 'confirmed'
		  ORDER BY id ASC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := make([]Appointment, 0, 8)
	for rows.Next() {
		var appt Appointment
		if err := rows.Scan(
			&appt.ID, &appt.CustomerName, &appt.PhoneNumber, &appt.Date, &appt.Time,
			&appt.ConfirmationNumber, &appt.CreatedAt, &appt.CallSID, &appt.Status,
		); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isPostgresConflict(err error, constraintFragment string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, constraintFragment)
}
