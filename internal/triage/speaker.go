package triage

import (
	"context"

	"github.com/wolfman30/healthvoice-triage/internal/conversation"
	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

// LogSpeaker records what would be spoken. Browsers voice replies
// themselves using the session's speech locale.
type LogSpeaker struct {
	logger *logging.Logger
}

func NewLogSpeaker(logger *logging.Logger) *LogSpeaker {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSpeaker{logger: logger}
}

func (s *LogSpeaker) Speak(ctx context.Context, text string, lang conversation.Language) {
	s.logger.Debug("speak reply", "locale", lang.SpeechLocale(), "chars", len([]rune(text)))
}
