package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var storeTracer = otel.Tracer("healthvoice.internal.appointments.store")

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const appointmentColumns = `id, seq, patient_id, patient_name, doctor_id, appt_date, time_slot, status,
		symptoms_summary, notes, version, COALESCE(idempotency_key, ''), created_at, updated_at`

// PostgresRepository stores appointments in the relational database.
type PostgresRepository struct {
	db   rowQuerier
	opts Options
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool, opts ...Option) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool, opts: newOptions(opts...)}
}

func newPostgresRepositoryWithQuerier(db rowQuerier, opts ...Option) *PostgresRepository {
	if db == nil {
		panic("appointments: querier required")
	}
	return &PostgresRepository{db: db, opts: newOptions(opts...)}
}

// Create inserts a row; a conflicting idempotency key yields the existing row.
func (r *PostgresRepository) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	req, err := normalizeCreate(req)
	if err != nil {
		return nil, err
	}
	ctx, span := storeTracer.Start(ctx, "appointments.postgres.create")
	defer span.End()

	appt := r.opts.build(req, 0)
	query := `
		INSERT INTO appointments (id, patient_id, patient_name, doctor_id, appt_date, time_slot, status,
			symptoms_summary, notes, version, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING seq
	`
	err = r.db.QueryRow(ctx, query,
		appt.ID,
		appt.PatientID,
		appt.PatientName,
		appt.DoctorID,
		appt.Date,
		appt.TimeSlot,
		string(appt.Status),
		appt.SymptomsSummary,
		appt.Notes,
		appt.Version,
		nullableKey(appt.IdempotencyKey),
		appt.CreatedAt,
		appt.UpdatedAt,
	).Scan(&appt.Sequence)
	if errors.Is(err, pgx.ErrNoRows) && appt.IdempotencyKey != "" {
		return r.getByKey(ctx, appt.IdempotencyKey)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: insert failed: %w", err)
	}
	return &appt, nil
}

// Update writes status and notes guarded by the stored version.
func (r *PostgresRepository) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	ctx, span := storeTracer.Start(ctx, "appointments.postgres.update")
	defer span.End()
	span.SetAttributes(attribute.String("healthvoice.appointment_id", a.ID))

	stored, err := r.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if err := checkUpdate(*stored, a); err != nil {
		return nil, err
	}

	next := *stored
	next.Status = a.Status
	next.Notes = a.Notes
	query := `
		UPDATE appointments
		SET status = $1, notes = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5
		RETURNING version, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		string(next.Status),
		next.Notes,
		r.opts.Now().UTC(),
		next.ID,
		stored.Version,
	).Scan(&next.Version, &next.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s changed concurrently", ErrConflict, a.ID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: update failed: %w", err)
	}
	return &next, nil
}

// Get fetches a single appointment.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: select failed: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) getByKey(ctx context.Context, key string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE idempotency_key = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("appointments: select by idempotency key failed: %w", err)
	}
	return appt, nil
}

// ListForDoctor returns appointments in doctor order.
func (r *PostgresRepository) ListForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	ctx, span := storeTracer.Start(ctx, "appointments.postgres.list")
	defer span.End()

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	var args []any
	if r.opts.FilterByDoctor {
		query += ` WHERE doctor_id = $1`
		args = append(args, doctorID)
	}
	query += ` ORDER BY seq`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list failed: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan failed: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return SortForDoctor(out), nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt   Appointment
		status string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.Sequence,
		&appt.PatientID,
		&appt.PatientName,
		&appt.DoctorID,
		&appt.Date,
		&appt.TimeSlot,
		&status,
		&appt.SymptomsSummary,
		&appt.Notes,
		&appt.Version,
		&appt.IdempotencyKey,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.Status = Status(status)
	return &appt, nil
}

func nullableKey(key string) any {
	if key == "" {
		return nil
	}
	return key
}
