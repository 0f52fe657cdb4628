package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Repository is the durable appointment store shared by the patient and
// doctor flows. Update is the only mutation after Create.
type Repository interface {
	// Create inserts a scheduled appointment. A repeated IdempotencyKey
	// returns the record created for it the first time.
	Create(ctx context.Context, req CreateRequest) (*Appointment, error)
	// Update replaces the record with the same id after checking its
	// version, immutable fields and status transition. The stored copy,
	// with an incremented version, is returned.
	Update(ctx context.Context, a Appointment) (*Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	// ListForDoctor returns appointments in doctor order (see SortForDoctor).
	ListForDoctor(ctx context.Context, doctorID string) ([]Appointment, error)
}

// Options configure how stores stamp and filter appointments.
type Options struct {
	DefaultDoctorID string
	FilterByDoctor  bool
	Location        *time.Location
	Now             func() time.Time
}

// Option mutates Options.
type Option func(*Options)

// WithDefaultDoctor sets the doctor assigned to new appointments.
func WithDefaultDoctor(id string) Option {
	return func(o *Options) {
		if strings.TrimSpace(id) != "" {
			o.DefaultDoctorID = strings.TrimSpace(id)
		}
	}
}

// WithDoctorFilter makes ListForDoctor return only the doctor's own appointments.
func WithDoctorFilter(enabled bool) Option {
	return func(o *Options) { o.FilterByDoctor = enabled }
}

// WithLocation sets the clinic time zone used for Date and TimeSlot.
func WithLocation(loc *time.Location) Option {
	return func(o *Options) {
		if loc != nil {
			o.Location = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

func newOptions(opts ...Option) Options {
	o := Options{
		DefaultDoctorID: DefaultDoctorID,
		Location:        time.UTC,
		Now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

var validate = validator.New()

func normalizeCreate(req CreateRequest) (CreateRequest, error) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.PatientName = strings.TrimSpace(req.PatientName)
	req.SymptomsSummary = strings.TrimSpace(req.SymptomsSummary)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	if err := validate.Struct(req); err != nil {
		return CreateRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

// build stamps a new scheduled appointment from the clock.
func (o Options) build(req CreateRequest, seq int64) Appointment {
	now := o.Now().In(o.Location)
	return Appointment{
		ID:              "appt-" + uuid.NewString(),
		PatientID:       req.PatientID,
		PatientName:     req.PatientName,
		DoctorID:        o.DefaultDoctorID,
		Date:            now.Format(DateLayout),
		TimeSlot:        now.Format(TimeSlotLayout),
		Status:          StatusScheduled,
		SymptomsSummary: req.SymptomsSummary,
		Version:         1,
		Sequence:        seq,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
}

func (o Options) includes(a Appointment, doctorID string) bool {
	return !o.FilterByDoctor || a.DoctorID == doctorID
}

// DemoAppointments returns the two sample appointments shown on a fresh
// demo dashboard.
func DemoAppointments(date, doctorID string) []Appointment {
	if doctorID == "" {
		doctorID = DefaultDoctorID
	}
	return []Appointment{
		{
			ID:              "appt-1",
			PatientID:       "u3",
			PatientName:     "Alice Johnson",
			DoctorID:        doctorID,
			Date:            date,
			TimeSlot:        "09:00",
			Status:          StatusScheduled,
			SymptomsSummary: "Severe migraine, sensitivity to light, nausea.",
			Version:         1,
		},
		{
			ID:              "appt-2",
			PatientID:       "u4",
			PatientName:     "Bob Williams",
			DoctorID:        doctorID,
			Date:            date,
			TimeSlot:        "11:30",
			Status:          StatusCompleted,
			SymptomsSummary: "Skin rash on left arm, itching.",
			Notes:           "Prescribed antihistamine and topical cream.",
			Version:         1,
		},
	}
}
