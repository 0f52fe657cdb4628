package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

func TestNewSendGridSender(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{FromEmail: "clinic@example.com"}, nil))

	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "clinic@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "HealthVoice", sender.from.Name)
	assert.Equal(t, "clinic@example.com", sender.from.Address)
}

type sendGridReply struct {
	status int
	err    error
}

type fakeSendGrid struct {
	replies []sendGridReply
	sent    []*mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &rest.Response{StatusCode: r.status}, nil
}

func newTestSender(api *fakeSendGrid) *SendGridSender {
	return &SendGridSender{
		client: api,
		from:   mail.NewEmail("Clinic", "clinic@example.com"),
		logger: logging.Default(),
	}
}

func TestSendGridSender_Send(t *testing.T) {
	tests := []struct {
		name      string
		replies   []sendGridReply
		wantErr   bool
		wantCalls int
	}{
		{"accepted", []sendGridReply{{status: 202}}, false, 1},
		{"rejected is not retried", []sendGridReply{{status: 401}}, true, 1},
		{"throttled then accepted", []sendGridReply{{status: 429}, {status: 202}}, false, 2},
		{"transport error twice", []sendGridReply{{err: errors.New("dial tcp")}}, true, 2},
		{"server error twice", []sendGridReply{{status: 503}}, true, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeSendGrid{replies: tt.replies}
			err := newTestSender(api).Send(context.Background(), EmailMessage{To: "p@example.com", Subject: "Hi", Body: "Body"})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, api.sent, tt.wantCalls)
		})
	}
}

func TestSendGridSender_BuildsMessage(t *testing.T) {
	api := &fakeSendGrid{replies: []sendGridReply{{status: 202}}}
	err := newTestSender(api).Send(context.Background(), EmailMessage{
		To:       "p@example.com",
		ToName:   "Pat",
		Subject:  "Booked",
		Body:     "plain",
		HTML:     "<p>html</p>",
		Category: "booking-confirmation",
		RefID:    "appt-1",
	})
	require.NoError(t, err)
	require.Len(t, api.sent, 1)

	m := api.sent[0]
	assert.Equal(t, "Booked", m.Subject)
	assert.Equal(t, "clinic@example.com", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "p@example.com", m.Personalizations[0].To[0].Address)
	assert.Equal(t, "appt-1", m.Personalizations[0].CustomArgs["ref_id"])
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
	assert.Equal(t, []string{"booking-confirmation"}, m.Categories)
}

func TestSendGridSender_StopsOnCancelledContext(t *testing.T) {
	api := &fakeSendGrid{replies: []sendGridReply{{status: 500}}}
	sender := newTestSender(api)
	sender.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sender.Send(ctx, EmailMessage{To: "p@example.com"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, api.sent, 1)
}

func TestSendGridSender_NotConfigured(t *testing.T) {
	var sender *SendGridSender
	require.ErrorIs(t, sender.Send(context.Background(), EmailMessage{}), ErrEmailNotConfigured)
}

func TestLogEmailSender_Send(t *testing.T) {
	require.NoError(t, NewLogEmailSender(nil).Send(context.Background(), EmailMessage{To: "r@example.com"}))
}
