package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var appointmentRowColumns = []string{
	"id", "seq", "patient_id", "patient_name", "doctor_id", "appt_date", "time_slot", "status",
	"symptoms_summary", "notes", "version", "idempotency_key", "created_at", "updated_at",
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock, WithClock(contractClock))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(anyArgs(13)...).
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(int64(7)))

	appt, err := repo.Create(context.Background(), CreateRequest{PatientID: "u1", PatientName: "Sarah", SymptomsSummary: "Headache"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.Sequence != 7 || appt.TimeSlot != "14:05" || appt.Status != StatusScheduled {
		t.Fatalf("unexpected appointment %#v", appt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryCreateIdempotentConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(anyArgs(13)...).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM appointments WHERE idempotency_key").
		WithArgs("sess-1").
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns).AddRow(
			"appt-existing", int64(3), "u1", "Sarah", "d1", "2026-03-01", "09:00", "scheduled",
			"Headache", "", int64(1), "sess-1", created, created,
		))

	appt, err := repo.Create(context.Background(), CreateRequest{
		PatientID: "u1", PatientName: "Sarah", SymptomsSummary: "Headache", IdempotencyKey: "sess-1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.ID != "appt-existing" || appt.IdempotencyKey != "sess-1" {
		t.Fatalf("expected existing appointment, got %#v", appt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func storedAppointmentRow(created time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentRowColumns).AddRow(
		"appt-1", int64(1), "u1", "Sarah", "d1", "2026-03-01", "09:00", "scheduled",
		"Headache", "", int64(1), "", created, created,
	)
}

func TestPostgresRepositoryUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	mock.ExpectQuery("FROM appointments WHERE id").WithArgs("appt-1").WillReturnRows(storedAppointmentRow(created))
	stored, err := repo.Get(ctx, "appt-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	started, err := Transition(*stored, StatusInProgress, nil)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}

	mock.ExpectQuery("FROM appointments WHERE id").WithArgs("appt-1").WillReturnRows(storedAppointmentRow(created))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("in-progress", "", pgxmock.AnyArg(), "appt-1", int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}).AddRow(int64(2), created.Add(time.Minute)))
	updated, err := repo.Update(ctx, started)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 || updated.Status != StatusInProgress {
		t.Fatalf("unexpected updated appointment %#v", updated)
	}

	// The row moved on between the read and the conditional write.
	mock.ExpectQuery("FROM appointments WHERE id").WithArgs("appt-1").WillReturnRows(storedAppointmentRow(created))
	mock.ExpectQuery("UPDATE appointments").
		WithArgs("in-progress", "", pgxmock.AnyArg(), "appt-1", int64(1)).
		WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Update(ctx, started); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	mock.ExpectQuery("FROM appointments WHERE id").WithArgs("appt-x").WillReturnError(pgx.ErrNoRows)
	if _, err := repo.Update(ctx, Appointment{ID: "appt-x", Version: 1, Status: StatusInProgress}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepositoryListForDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithQuerier(mock, WithDoctorFilter(true))
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("WHERE doctor_id = \\$1 ORDER BY seq").
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows(appointmentRowColumns).
			AddRow("appt-b", int64(1), "u2", "Bob", "d1", "2026-03-01", "08:00", "scheduled", "Rash", "", int64(1), "", created, created).
			AddRow("appt-a", int64(2), "u1", "Alice", "d1", "2026-03-01", "09:00", "in-progress", "Migraine", "", int64(2), "", created, created))

	list, err := repo.ListForDoctor(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ListForDoctor: %v", err)
	}
	if len(list) != 2 || list[0].ID != "appt-a" || list[1].ID != "appt-b" {
		t.Fatalf("expected in-progress first, got %v", ids(list))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
