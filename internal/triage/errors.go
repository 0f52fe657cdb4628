package triage

import "errors"

var (
	// ErrInputMissing is returned for a submission with neither audio nor text. Callers ignore it silently.
	ErrInputMissing = errors.New("triage: input missing")
	// ErrNoActiveSession is returned when the controller's session has ended.
	ErrNoActiveSession = errors.New("triage: no active session")
	// ErrSubmissionInFlight is returned while a previous submission awaits its reply.
	ErrSubmissionInFlight = errors.New("triage: submission already in flight")
	// ErrSessionNotFound is returned for unknown, expired or foreign session ids.
	ErrSessionNotFound = errors.New("triage: session not found")
)
