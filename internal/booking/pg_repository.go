package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.PatientID,
		&b.PatientName,
		&b.Start,
		&b.DurationMinutes,
		&b.Status,
		&b.Notes,
		&b.NationalID,
		&b.Email,
		&b.Phone,
		&b.BirthDate,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

const bookingColumns = `
	id, provider_id, patient_id, patient_name, start_time, duration_minutes,
	status, notes, national_id, email, phone, birth_date, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) FetchRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+bookingColumns+`
		FROM bookings
		WHERE provider_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bookings range: %w", err)
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (
			id, provider_id, patient_id, patient_name, start_time, duration_minutes,
			status, notes, national_id, email, phone, birth_date, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
	`,
		b.ID, b.ProviderID, b.PatientID, b.PatientName, b.Start, b.DurationMinutes,
		b.Status, b.Notes, b.NationalID, b.Email, b.Phone, b.BirthDate,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateBooking(ctx context.Context, id uuid.UUID, u Update) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT`+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id)
	b, err := scanBooking(row)
	if err != nil {
		return nil, err
	}

	if u.Status != nil && !CanTransition(b.Status, *u.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, *u.Status)
	}
	u.apply(b)

	_, err = tx.Exec(ctx, `
		UPDATE bookings
		SET patient_name = $2, start_time = $3, duration_minutes = $4, status = $5,
		    notes = $6, national_id = $7, email = $8, phone = $9, birth_date = $10,
		    updated_at = now()
		WHERE id = $1
	`,
		b.ID, b.PatientName, b.Start, b.DurationMinutes, b.Status,
		b.Notes, b.NationalID, b.Email, b.Phone, b.BirthDate,
	)
	if err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	return b, nil
}

func (r *PgRepository) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) FindStartingBetween(ctx context.Context, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+bookingColumns+`
		FROM bookings
		WHERE start_time >= $1
		  AND start_time < $2
		  AND status IN ('scheduled', 'confirmed')
		ORDER BY start_time
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query upcoming bookings: %w", err)
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
