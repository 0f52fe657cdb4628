package triage

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/healthvoice-triage/internal/accounts"
	"github.com/wolfman30/healthvoice-triage/internal/appointments"
	"github.com/wolfman30/healthvoice-triage/internal/conversation"
	"github.com/wolfman30/healthvoice-triage/internal/observability/metrics"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

var tracer = otel.Tracer("healthvoice.internal.triage")

const (
	// AudioPlaceholder stands in for a voice message until its transcription arrives.
	AudioPlaceholder = "Audio Message..."
	// InferenceFailureText is the BOT reply when the inference service fails.
	InferenceFailureText = "Sorry, something went wrong. Please try again."

	defaultInferenceTimeout = 45 * time.Second
	notifyTimeout           = 30 * time.Second
)

// BookingStatus tracks the session's booking.
type BookingStatus string

const (
	BookingIdle    BookingStatus = "idle"
	BookingPending BookingStatus = "booking"
	BookingBooked  BookingStatus = "booked"
)

// Speaker voices BOT replies. Implementations must not block.
type Speaker interface {
	Speak(ctx context.Context, text string, lang conversation.Language)
}

type silentSpeaker struct{}

func (silentSpeaker) Speak(context.Context, string, conversation.Language) {}

// Notifier confirms a booking to the patient.
type Notifier interface {
	NotifyBooked(ctx context.Context, who *accounts.Identity, appt *appointments.Appointment) error
}

// Deps are the collaborators shared by every controller.
type Deps struct {
	Inference        conversation.InferenceClient
	Store            appointments.Repository
	Speaker          Speaker
	Notifier         Notifier
	Metrics          *metrics.TriageMetrics
	Logger           *logging.Logger
	InferenceTimeout time.Duration
	Now              func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Speaker == nil {
		d.Speaker = silentSpeaker{}
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.InferenceTimeout <= 0 {
		d.InferenceTimeout = defaultInferenceTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Input is one patient turn.
type Input struct {
	Audio         []byte
	AudioMIMEType string
	Text          string
}

// SubmitResult carries the USER message as finally recorded and the BOT reply.
type SubmitResult struct {
	UserMessage conversation.Message `json:"user_message"`
	BotMessage  conversation.Message `json:"bot_message"`
	Failed      bool                 `json:"failed"`
}

// State is a read-only snapshot of the controller.
type State struct {
	Session       conversation.Session `json:"session"`
	IsProcessing  bool                 `json:"is_processing"`
	BookingStatus BookingStatus        `json:"booking_status"`
	AppointmentID string               `json:"appointment_id,omitempty"`
}

// submission ties an outstanding inference call to the USER message it answers.
type submission struct {
	messageID string
	hasAudio  bool
}

// Controller drives one patient's session. Methods serialize on mu, which
// is released while the inference call is outstanding.
type Controller struct {
	mu            sync.Mutex
	session       *conversation.Session
	userID        string
	pending       *submission
	bookingStatus BookingStatus
	appointment   *appointments.Appointment

	deps Deps
}

// NewController takes ownership of session.
func NewController(session *conversation.Session, deps Deps) *Controller {
	c := &Controller{
		session:       session,
		bookingStatus: BookingIdle,
		deps:          deps.withDefaults(),
	}
	if session != nil {
		c.userID = session.UserID
	}
	return c
}

// SessionID returns the id of the owned session, or "" once ended.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

// UserID is the session owner.
func (c *Controller) UserID() string {
	return c.userID
}

// SubmitInput records the patient's turn, asks the inference service for a
// reply and records it. Inference failures become an apology reply rather
// than an error.
func (c *Controller) SubmitInput(ctx context.Context, in Input) (*SubmitResult, error) {
	text := strings.TrimSpace(in.Text)
	hasAudio := len(in.Audio) > 0
	if !hasAudio && text == "" {
		return nil, ErrInputMissing
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if c.pending != nil {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	prior := c.session.Snapshot().Messages
	display := text
	if display == "" {
		display = AudioPlaceholder
	}
	userMsg := c.session.AppendUser(display)
	sub := &submission{messageID: userMsg.ID, hasAudio: hasAudio}
	c.pending = sub
	lang := c.session.Language
	sessionID := c.session.ID
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending == sub {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	ctx, span := tracer.Start(ctx, "triage.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("healthvoice.session_id", sessionID),
		attribute.Bool("healthvoice.audio", hasAudio),
	)

	resp, err := c.infer(ctx, conversation.InferenceRequest{
		Audio:         in.Audio,
		AudioMIMEType: in.AudioMIMEType,
		Text:          text,
		Language:      lang,
		PriorMessages: prior,
	})
	if err != nil {
		span.RecordError(err)
		c.deps.Logger.Error("inference failed", "session_id", sessionID, "message_id", sub.messageID, "error", err)
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	result := &SubmitResult{}
	if err != nil {
		result.Failed = true
		result.BotMessage = c.session.AppendBot(InferenceFailureText, nil)
	} else {
		if sub.hasAudio && resp.Transcription != "" {
			if reviseErr := c.session.ReviseText(sub.messageID, resp.Transcription); reviseErr != nil {
				c.deps.Logger.Warn("transcription not applied", "session_id", sessionID, "message_id", sub.messageID, "error", reviseErr)
			}
		}
		result.BotMessage = c.session.AppendBot(resp.ResponseText, resp.Metadata())
	}
	result.UserMessage, _ = c.session.Lookup(sub.messageID)
	c.mu.Unlock()

	if !result.Failed {
		c.deps.Speaker.Speak(context.WithoutCancel(ctx), result.BotMessage.Text, lang)
	}
	return result, nil
}

// infer calls the inference service on a context detached from the caller's
// cancellation and bounded by the configured timeout.
func (c *Controller) infer(ctx context.Context, req conversation.InferenceRequest) (*conversation.InferenceResponse, error) {
	if c.deps.Inference == nil {
		return nil, conversation.ErrUnusableInference
	}
	ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.deps.InferenceTimeout)
	defer cancel()

	input := "text"
	if req.HasAudio() {
		input = "audio"
	}
	started := time.Now()
	resp, err := c.deps.Inference.Infer(ictx, req)
	if err == nil {
		resp, err = conversation.NormalizeResponse(resp)
	}
	c.deps.Metrics.ObserveInference(input, err == nil, time.Since(started).Seconds())
	return resp, err
}

// BookAppointment derives a booking from the transcript and stores it. It
// is a no-op without a session or identity. Repeated calls return the same
// appointment.
func (c *Controller) BookAppointment(ctx context.Context, who *accounts.Identity) (*appointments.Appointment, error) {
	c.mu.Lock()
	if c.session == nil || who == nil {
		c.mu.Unlock()
		return nil, nil
	}
	if c.bookingStatus == BookingBooked && c.appointment != nil {
		appt := *c.appointment
		c.mu.Unlock()
		c.deps.Metrics.ObserveBooking("repeat")
		return &appt, nil
	}
	c.bookingStatus = BookingPending
	booking := conversation.DeriveBooking(c.session.Snapshot(), who.Name)
	sessionID := c.session.ID
	c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "triage.book")
	defer span.End()
	span.SetAttributes(attribute.String("healthvoice.session_id", sessionID))

	appt, err := c.deps.Store.Create(ctx, appointments.CreateRequest{
		PatientID:       who.UserID,
		PatientName:     booking.PatientName,
		SymptomsSummary: booking.SymptomsSummary,
		IdempotencyKey:  sessionID,
	})

	c.mu.Lock()
	if err != nil {
		if c.bookingStatus == BookingPending {
			c.bookingStatus = BookingIdle
		}
		c.mu.Unlock()
		span.RecordError(err)
		c.deps.Metrics.ObserveBooking("failed")
		c.deps.Logger.Error("booking failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	c.bookingStatus = BookingBooked
	stored := *appt
	c.appointment = &stored
	c.mu.Unlock()

	c.deps.Metrics.ObserveBooking("booked")
	c.deps.Logger.Info("appointment booked", "session_id", sessionID, "appointment_id", appt.ID, "patient_id", who.UserID)
	c.notify(ctx, who, &stored)
	return appt, nil
}

func (c *Controller) notify(ctx context.Context, who *accounts.Identity, appt *appointments.Appointment) {
	if c.deps.Notifier == nil {
		return
	}
	identity := *who
	record := *appt
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := c.deps.Notifier.NotifyBooked(nctx, &identity, &record); err != nil {
			c.deps.Logger.Warn("booking confirmation failed", "appointment_id", record.ID, "error", err)
		}
	}()
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		IsProcessing:  c.pending != nil,
		BookingStatus: c.bookingStatus,
	}
	if c.session != nil {
		st.Session = c.session.Snapshot()
	}
	if c.appointment != nil {
		st.AppointmentID = c.appointment.ID
	}
	return st
}

// End discards the session. A reply still in flight is dropped.
func (c *Controller) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}
