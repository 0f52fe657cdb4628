package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/healthvoice-triage/internal/accounts"
	"github.com/wolfman30/healthvoice-triage/internal/appointments"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

// BookingNotifier tells a patient their appointment was booked.
type BookingNotifier struct {
	email  EmailSender
	logger *logging.Logger
}

// NewBookingNotifier falls back to logging when email is nil.
func NewBookingNotifier(email EmailSender, logger *logging.Logger) *BookingNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewLogEmailSender(logger)
	}
	return &BookingNotifier{email: email, logger: logger}
}

// NotifyBooked sends the booking confirmation to the identity's address.
// Identities without an e-mail are skipped.
func (n *BookingNotifier) NotifyBooked(ctx context.Context, who *accounts.Identity, appt *appointments.Appointment) error {
	if who == nil || appt == nil {
		return nil
	}
	to := strings.TrimSpace(who.Email)
	if to == "" {
		n.logger.Debug("notify: identity has no email, skipping booking confirmation", "user_id", who.UserID)
		return nil
	}
	msg := bookingConfirmation(who, appt)
	msg.To = to
	if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking confirmation: %w", err)
	}
	return nil
}

func bookingConfirmation(who *accounts.Identity, appt *appointments.Appointment) EmailMessage {
	name := appt.PatientName
	if name == "" {
		name = who.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "Your consultation is booked for %s at %s.\n", appt.Date, appt.TimeSlot)
	fmt.Fprintf(&b, "Reference: %s\n", appt.ID)
	fmt.Fprintf(&b, "Reason for visit: %s\n\n", appt.SymptomsSummary)
	b.WriteString("Please wait in the lobby; the doctor will call you when it is your turn.\n")
	body := b.String()

	return EmailMessage{
		ToName:   who.Name,
		Subject:  fmt.Sprintf("Appointment confirmed for %s at %s", appt.Date, appt.TimeSlot),
		Body:     body,
		HTML:     "<p>" + strings.ReplaceAll(html.EscapeString(strings.TrimSpace(body)), "\n", "<br>") + "</p>",
		Category: "booking-confirmation",
		RefID:    appt.ID,
	}
}
