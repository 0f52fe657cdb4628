package appointments

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryRepository keeps appointments in process memory.
type InMemoryRepository struct {
	mu      sync.RWMutex
	opts    Options
	records map[string]*Appointment
	byKey   map[string]string
	seq     int64
}

// NewInMemoryRepository creates an empty in-memory store.
func NewInMemoryRepository(opts ...Option) *InMemoryRepository {
	return &InMemoryRepository{
		opts:    newOptions(opts...),
		records: make(map[string]*Appointment),
		byKey:   make(map[string]string),
	}
}

// Seed inserts fully formed records, assigning sequence numbers in order.
// Records whose id already exists are skipped.
func (r *InMemoryRepository) Seed(records ...Appointment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.opts.Now().UTC()
	for _, rec := range records {
		if _, exists := r.records[rec.ID]; exists {
			continue
		}
		r.seq++
		rec.Sequence = r.seq
		if rec.Version == 0 {
			rec.Version = 1
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if rec.UpdatedAt.IsZero() {
			rec.UpdatedAt = rec.CreatedAt
		}
		stored := rec
		r.records[rec.ID] = &stored
		if rec.IdempotencyKey != "" {
			r.byKey[rec.IdempotencyKey] = rec.ID
		}
	}
}

// Create inserts a new appointment.
func (r *InMemoryRepository) Create(ctx context.Context, req CreateRequest) (*Appointment, error) {
	req, err := normalizeCreate(req)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if req.IdempotencyKey != "" {
		if id, ok := r.byKey[req.IdempotencyKey]; ok {
			existing := *r.records[id]
			return &existing, nil
		}
	}
	r.seq++
	appt := r.opts.build(req, r.seq)
	stored := appt
	r.records[appt.ID] = &stored
	if appt.IdempotencyKey != "" {
		r.byKey[appt.IdempotencyKey] = appt.ID
	}
	return &appt, nil
}

// Update applies a validated full-record replace.
func (r *InMemoryRepository) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.records[a.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, a.ID)
	}
	if err := checkUpdate(*stored, a); err != nil {
		return nil, err
	}
	next := *stored
	next.Status = a.Status
	next.Notes = a.Notes
	next.Version = stored.Version + 1
	next.UpdatedAt = r.opts.Now().UTC()
	*stored = next
	return &next, nil
}

// Get returns a copy of the appointment.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *stored
	return &out, nil
}

// ListForDoctor returns appointments in doctor order.
func (r *InMemoryRepository) ListForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Appointment, 0, len(r.records))
	for _, stored := range r.records {
		if r.opts.includes(*stored, doctorID) {
			out = append(out, *stored)
		}
	}
	return SortForDoctor(out), nil
}
