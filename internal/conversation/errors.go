package conversation

import "errors"

var (
	// ErrMessageNotFound is returned when a revision targets an unknown message id.
	ErrMessageNotFound = errors.New("conversation: message not found")
	// ErrMessageNotRevisable is returned for BOT messages and for USER messages already revised once.
	ErrMessageNotRevisable = errors.New("conversation: message not revisable")
	// ErrDuplicateMessageID is returned when an appended message reuses an id.
	ErrDuplicateMessageID = errors.New("conversation: duplicate message id")
	// ErrInvalidSender is returned when a message carries an unknown sender.
	ErrInvalidSender = errors.New("conversation: invalid sender")
	// ErrUnsupportedLanguage is returned for session languages other than en, hi and ta.
	ErrUnsupportedLanguage = errors.New("conversation: unsupported language")
	// ErrNoInput is returned when an inference request has neither audio nor text.
	ErrNoInput = errors.New("conversation: no input provided")
	// ErrUnusableInference is returned when the inference service answers without a response text.
	ErrUnusableInference = errors.New("conversation: unusable inference response")
	// ErrAudioUnsupported is returned by inference clients that only accept text.
	ErrAudioUnsupported = errors.New("conversation: audio input not supported by this client")
)
