package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/healthvoice-triage/internal/appointments"
	"github.com/wolfman30/healthvoice-triage/internal/observability/metrics"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

var tracer = otel.Tracer("healthvoice.internal.clinic")

// WalkInSymptoms is the summary recorded for walk-ins added without symptoms.
const WalkInSymptoms = "Walk-in patient"

// Snapshot is the doctor's view of the queue at one refresh.
type Snapshot struct {
	appointments.Queue
	Active      *appointments.Appointment `json:"active,omitempty"`
	RefreshedAt time.Time                 `json:"refreshed_at"`
}

// Options configure a Controller.
type Options struct {
	Metrics *metrics.QueueMetrics
	Logger  *logging.Logger
	Now     func() time.Time
}

// Controller is the doctor's dashboard: a cached, periodically refreshed
// queue plus the single open consultation. Methods serialize on mu,
// including their store calls.
type Controller struct {
	mu          sync.Mutex
	store       appointments.Repository
	doctorID    string
	cache       []appointments.Appointment
	activeID    string
	refreshedAt time.Time

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int

	metrics *metrics.QueueMetrics
	logger  *logging.Logger
	now     func() time.Time
}

// NewController builds a controller for doctorID. Call Refresh to load it.
func NewController(store appointments.Repository, doctorID string, opts Options) *Controller {
	if store == nil {
		panic("clinic: appointment store required")
	}
	if strings.TrimSpace(doctorID) == "" {
		doctorID = appointments.DefaultDoctorID
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		store:    store,
		doctorID: doctorID,
		subs:     make(map[int]chan Snapshot),
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// DoctorID is the doctor this dashboard belongs to.
func (c *Controller) DoctorID() string {
	return c.doctorID
}

// Refresh reloads the queue from the store.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	err := c.refreshLocked(ctx)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if err == nil {
		c.broadcast(snap)
	}
	return err
}

func (c *Controller) refreshLocked(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "clinic.refresh")
	defer span.End()

	list, err := c.store.ListForDoctor(ctx, c.doctorID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("clinic: refresh queue: %w", err)
	}
	c.cache = list
	c.refreshedAt = c.now().UTC()
	c.reconcileActiveLocked()

	q := appointments.Partition(list)
	c.metrics.SetDepth(len(q.Waiting), len(q.InConsultation), len(q.Completed))
	span.SetAttributes(attribute.Int("healthvoice.queue_size", len(list)))
	return nil
}

// reconcileActiveLocked drops an active consultation that is no longer in
// progress and adopts an in-progress one after a restart.
func (c *Controller) reconcileActiveLocked() {
	if c.activeID != "" {
		if a, ok := c.findLocked(c.activeID); ok && a.Status == appointments.StatusInProgress {
			return
		}
		c.activeID = ""
	}
	for _, a := range c.cache {
		if a.Status == appointments.StatusInProgress && a.DoctorID == c.doctorID {
			c.activeID = a.ID
			return
		}
	}
}

// Queue returns the cached queue partitioned by status.
func (c *Controller) Queue() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Active returns the open consultation, if any.
func (c *Controller) Active() (*appointments.Appointment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.findLocked(c.activeID)
	if !ok {
		return nil, false
	}
	return &a, true
}

// CallNextPatient opens a consultation with the first waiting patient.
func (c *Controller) CallNextPatient(ctx context.Context) (*appointments.Appointment, error) {
	c.mu.Lock()
	waiting := appointments.Partition(c.cache).Waiting
	if len(waiting) == 0 {
		c.mu.Unlock()
		return nil, ErrQueueEmpty
	}
	if c.activeID != "" {
		c.mu.Unlock()
		return nil, ErrConsultationInProgress
	}
	updated, err := c.applyLocked(ctx, waiting[0], appointments.StatusInProgress, nil)
	if err == nil {
		c.activeID = updated.ID
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.broadcast(snap)
	return updated, err
}

// StartConsultation opens a specific appointment, resuming it when it is
// already in progress.
func (c *Controller) StartConsultation(ctx context.Context, id string) (*appointments.Appointment, error) {
	c.mu.Lock()
	if c.activeID != "" && c.activeID != id {
		c.mu.Unlock()
		return nil, ErrConsultationInProgress
	}
	current, err := c.lookupLocked(ctx, id)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	var updated *appointments.Appointment
	switch current.Status {
	case appointments.StatusInProgress:
		updated = &current
	case appointments.StatusScheduled:
		updated, err = c.applyLocked(ctx, current, appointments.StatusInProgress, nil)
	default:
		err = fmt.Errorf("%w: %s is %s", appointments.ErrInvalidTransition, id, current.Status)
	}
	if err == nil {
		c.activeID = updated.ID
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.broadcast(snap)
	return updated, err
}

// CompleteConsultation closes the open consultation with the doctor's notes.
func (c *Controller) CompleteConsultation(ctx context.Context, notes string) (*appointments.Appointment, error) {
	c.mu.Lock()
	if c.activeID == "" {
		c.mu.Unlock()
		return nil, ErrNoActiveConsultation
	}
	current, err := c.lookupLocked(ctx, c.activeID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	updated, err := c.applyLocked(ctx, current, appointments.StatusCompleted, &notes)
	if err == nil {
		c.activeID = ""
		c.reconcileActiveLocked()
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.broadcast(snap)
	return updated, err
}

// AddPatient records a walk-in. It skips the conversation flow entirely.
func (c *Controller) AddPatient(ctx context.Context, name, symptoms string) (*appointments.Appointment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrPatientNameRequired
	}
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		symptoms = WalkInSymptoms
	}

	c.mu.Lock()
	appt, err := c.store.Create(ctx, appointments.CreateRequest{
		PatientID:       "manual-" + uuid.NewString(),
		PatientName:     name,
		SymptomsSummary: symptoms,
	})
	if err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("clinic: add walk-in: %w", err)
	}
	if refreshErr := c.refreshLocked(ctx); refreshErr != nil {
		c.logger.Warn("queue refresh after walk-in failed", "appointment_id", appt.ID, "error", refreshErr)
		c.cache = appointments.SortForDoctor(append(c.cache, *appt))
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("walk-in patient added", "appointment_id", appt.ID, "doctor_id", c.doctorID)
	c.broadcast(snap)
	return appt, nil
}

// SearchRecords filters the cached list by patient name, symptoms or notes.
func (c *Controller) SearchRecords(term string) []appointments.Appointment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return appointments.Search(c.cache, term)
}

// applyLocked moves a to status to and refreshes the cache. A stale
// version refreshes before the conflict is returned.
func (c *Controller) applyLocked(ctx context.Context, a appointments.Appointment, to appointments.Status, notes *string) (*appointments.Appointment, error) {
	ctx, span := tracer.Start(ctx, "clinic.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("healthvoice.appointment_id", a.ID),
		attribute.String("healthvoice.status", string(to)),
	)

	next, err := appointments.Transition(a, to, notes)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	updated, err := c.store.Update(ctx, next)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, appointments.ErrConflict) {
			c.metrics.ObserveConflict()
			if refreshErr := c.refreshLocked(ctx); refreshErr != nil {
				c.logger.Warn("queue refresh after conflict failed", "error", refreshErr)
			}
		}
		return nil, err
	}
	c.metrics.ObserveTransition(string(to))
	c.logger.Info("appointment status changed", "appointment_id", updated.ID, "status", string(updated.Status), "version", updated.Version)

	if refreshErr := c.refreshLocked(ctx); refreshErr != nil {
		c.logger.Warn("queue refresh after update failed", "appointment_id", updated.ID, "error", refreshErr)
		c.replaceLocked(*updated)
	}
	return updated, nil
}

func (c *Controller) lookupLocked(ctx context.Context, id string) (appointments.Appointment, error) {
	if a, ok := c.findLocked(id); ok {
		return a, nil
	}
	a, err := c.store.Get(ctx, id)
	if err != nil {
		return appointments.Appointment{}, err
	}
	return *a, nil
}

func (c *Controller) findLocked(id string) (appointments.Appointment, bool) {
	if id == "" {
		return appointments.Appointment{}, false
	}
	for _, a := range c.cache {
		if a.ID == id {
			return a, true
		}
	}
	return appointments.Appointment{}, false
}

func (c *Controller) replaceLocked(updated appointments.Appointment) {
	for i := range c.cache {
		if c.cache[i].ID == updated.ID {
			c.cache[i] = updated
			c.cache = appointments.SortForDoctor(c.cache)
			return
		}
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Queue:       appointments.Partition(c.cache),
		RefreshedAt: c.refreshedAt,
	}
	if a, ok := c.findLocked(c.activeID); ok {
		snap.Active = &a
	}
	return snap
}

// Subscribe streams queue snapshots until ctx is done. Slow readers only
// see the latest snapshot.
func (c *Controller) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	ch <- c.Queue()

	go func() {
		<-ctx.Done()
		c.subMu.Lock()
		delete(c.subs, id)
		close(ch)
		c.subMu.Unlock()
	}()
	return ch
}

func (c *Controller) broadcast(snap Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
