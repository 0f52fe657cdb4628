package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GreetingMessageID is the id of the BOT greeting that opens every session.
const GreetingMessageID = "init"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "USER"
	SenderBot  Sender = "BOT"
)

// Metadata is the structured triage data attached to BOT messages.
type Metadata struct {
	SymptomsExtracted []string `json:"symptoms_extracted,omitempty"`
	Diagnosis         string   `json:"diagnosis,omitempty"`
	Confidence        float64  `json:"confidence"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
	DetectedLanguage  string   `json:"detected_language,omitempty"`
	PatientName       string   `json:"patient_name,omitempty"`
}

func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.SymptomsExtracted != nil {
		out.SymptomsExtracted = append([]string(nil), m.SymptomsExtracted...)
	}
	return &out
}

// Message is a single entry of the conversation log.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  *Metadata `json:"metadata,omitempty"`
	Revised   bool      `json:"revised,omitempty"`
}

func (m Message) clone() Message {
	m.Metadata = m.Metadata.clone()
	return m
}

// Session is one patient's triage conversation. It is not safe for
// concurrent use; the owning controller serializes access.
type Session struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	Language             Language  `json:"language"`
	CreatedAt            time.Time `json:"created_at"`
	LastActiveAt         time.Time `json:"last_active_at"`
	Messages             []Message `json:"messages"`
	ExtractedPatientName string    `json:"extracted_patient_name,omitempty"`

	now func() time.Time
}

// NewSession opens a session whose log starts with the language greeting.
func NewSession(id, userID string, lang Language, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	if strings.TrimSpace(userID) == "" {
		userID = "guest"
	}
	if _, ok := greetings[lang]; !ok {
		lang = LanguageEnglish
	}
	started := now().UTC()
	s := &Session{
		ID:           id,
		UserID:       userID,
		Language:     lang,
		CreatedAt:    started,
		LastActiveAt: started,
		now:          now,
	}
	s.Messages = append(s.Messages, Message{
		ID:        GreetingMessageID,
		SessionID: id,
		Sender:    SenderBot,
		Text:      lang.Greeting(),
		Timestamp: started,
	})
	return s
}

// Append adds msg to the end of the log. Missing ids and timestamps are
// filled in, and a timestamp earlier than the last entry is clamped to it
// so the log stays ordered.
func (s *Session) Append(msg Message) (Message, error) {
	if msg.Sender != SenderUser && msg.Sender != SenderBot {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidSender, msg.Sender)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, ok := s.indexOf(msg.ID); ok {
		return Message{}, fmt.Errorf("%w: %s", ErrDuplicateMessageID, msg.ID)
	}
	if msg.Sender == SenderUser {
		msg.Metadata = nil
	}
	msg.SessionID = s.ID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.clock()
	}
	if n := len(s.Messages); n > 0 && msg.Timestamp.Before(s.Messages[n-1].Timestamp) {
		msg.Timestamp = s.Messages[n-1].Timestamp
	}
	msg.Revised = false
	msg = msg.clone()
	s.Messages = append(s.Messages, msg)
	s.LastActiveAt = msg.Timestamp
	return msg.clone(), nil
}

// AppendUser records patient input.
func (s *Session) AppendUser(text string) Message {
	msg, _ := s.Append(Message{Sender: SenderUser, Text: text})
	return msg
}

// AppendBot records an assistant reply and accrues any patient name it carries.
func (s *Session) AppendBot(text string, md *Metadata) Message {
	msg, _ := s.Append(Message{Sender: SenderBot, Text: text, Metadata: md})
	if md != nil {
		s.AccruePatientName(md.PatientName)
	}
	return msg
}

// ReviseText replaces the text of a USER message. Each message may be
// revised once; this is the only in-place change the log allows.
func (s *Session) ReviseText(id, text string) error {
	idx, ok := s.indexOf(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	msg := &s.Messages[idx]
	if msg.Sender != SenderUser || msg.Revised {
		return fmt.Errorf("%w: %s", ErrMessageNotRevisable, id)
	}
	msg.Text = text
	msg.Revised = true
	return nil
}

// AccruePatientName keeps the most recent non-empty name.
func (s *Session) AccruePatientName(name string) {
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		s.ExtractedPatientName = trimmed
	}
}

// Lookup returns a copy of the message with the given id.
func (s *Session) Lookup(id string) (Message, bool) {
	idx, ok := s.indexOf(id)
	if !ok {
		return Message{}, false
	}
	return s.Messages[idx].clone(), true
}

// Snapshot returns a deep copy that callers may read without the owner's lock.
func (s *Session) Snapshot() Session {
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, msg := range s.Messages {
		out.Messages[i] = msg.clone()
	}
	return out
}

func (s *Session) indexOf(id string) (int, bool) {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Session) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
