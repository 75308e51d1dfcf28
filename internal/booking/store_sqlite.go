package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default single-node backend. The file is opened
// with WAL journaling and immediate transactions; a single writer
// connection serializes appointment writes so the unique slot index is
// checked and committed atomically.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		strings.TrimSpace(path),
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := initAppointmentSchemaSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initAppointmentSchemaSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			customer_name TEXT NOT NULL,
			phone_number TEXT NOT NULL,
			appointment_date TEXT NOT NULL,
			appointment_time TEXT NOT NULL,
			confirmation_number TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
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
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init appointment schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SQLiteStore) AvailableSlots(ctx context.Context, date string) ([]string, error) {
	all, err := DaySlots(date)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return all, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT appointment_time FROM appointments
		  WHERE appointment_date = ? AND status = 'confirmed'`,
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

func (s *SQLiteStore) CreateAppointment(ctx context.Context, req BookingRequest) (Appointment, error) {
	if err := req.validate(); err != nil {
		return Appointment{}, err
	}

	// Collisions on the random confirmation number are retried; the
	// slot constraint is terminal.
	for attempt := 0; attempt < 3; attempt++ {
		appt, err := s.insertConfirmed(ctx, req, NewConfirmationNumber())
		if err == nil {
			return appt, nil
		}
		if isSQLiteConfirmationConflict(err) {
			continue
		}
		return Appointment{}, err
	}
	return Appointment{}, errors.New("could not allocate confirmation number")
}

func (s *SQLiteStore) insertConfirmed(ctx context.Context, req BookingRequest, confirmation string) (Appointment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Appointment{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var taken int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM appointments
		  WHERE appointment_date = ? AND appointment_time = ? AND status = 'confirmed'`,
		req.Date, req.Time,
	).Scan(&taken)
	if err != nil {
		return Appointment{}, fmt.Errorf("check slot: %w", err)
	}
	if taken > 0 {
		return Appointment{}, ErrSlotTaken
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO appointments
			(customer_name, phone_number, appointment_date, appointment_time, confirmation_number, call_sid, status)
		 VALUES (?, ?, ?, ?, ?, ?, 'confirmed')`,
		req.CustomerName, req.PhoneNumber, req.Date, req.Time, confirmation, req.CallSID,
	)
	if err != nil {
		if isSQLiteSlotConflict(err) {
			return Appointment{}, ErrSlotTaken
		}
		return Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isSQLiteSlotConflict(err) {
			return Appointment{}, ErrSlotTaken
		}
		return Appointment{}, fmt.Errorf("commit tx: %w", err)
	}

	appt, err := s.GetByConfirmation(ctx, confirmation)
	if err != nil {
		return Appointment{ID: id, ConfirmationNumber: confirmation}, nil
	}
	return appt, nil
}

func (s *SQLiteStore) GetByConfirmation(ctx context.Context, confirmation string) (Appointment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, customer_name, phone_number, appointment_date, appointment_time,
		        confirmation_number, created_at, call_sid, status
		   FROM appointments WHERE confirmation_number = ?`,
		confirmation,
	)
	var appt Appointment
	err := row.Scan(
		&appt.ID, &appt.CustomerName, &appt.PhoneNumber, &appt.Date, &appt.Time,
		&appt.ConfirmationNumber, &appt.CreatedAt, &appt.CallSID, &appt.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *SQLiteStore) CancelAppointment(ctx context.Context, confirmation string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET status = 'cancelled'
		  WHERE confirmation_number = ? AND status = 'confirmed'`,
		confirmation,
	)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_name, phone_number, appointment_date, appointment_time,
		        confirmation_number, created_at, call_sid, status
		   FROM appointments
		  WHERE appointment_date = ? AND status = 'confirmed'
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isSQLiteSlotConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") &&
		strings.Contains(msg, "appointment_date")
}

func isSQLiteConfirmationConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") &&
		strings.Contains(msg, "confirmation_number")
}
