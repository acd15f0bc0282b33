// Package state holds the dual finite-state model for a translation session:
// a session axis (is a conversation open) and an operation axis (what the
// recording pipeline is doing right now). The two axes move independently —
// a paused session keeps an idle operation, and an active session cycles the
// operation through the record/translate/play loop.
//
// Transitions are table-driven and partial: an event with no entry for the
// current state leaves that axis unchanged. This makes late completions from
// a superseded cycle harmless by construction instead of being error cases.
package state

// SessionState describes whether a conversation session is open.
type SessionState int

const (
	// SessionIdle means no session exists.
	SessionIdle SessionState = iota

	// SessionActive means a session is open and the conversation loop runs.
	SessionActive

	// SessionPaused means a session exists but the loop is suspended.
	SessionPaused

	// SessionEndingConfirmation means the user asked to end the session and
	// must confirm or cancel before anything is torn down.
	SessionEndingConfirmation

	// SessionEnded means the session finished and awaits reset to Idle.
	SessionEnded
)

// String returns the human-readable name of the session state.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionActive:
		return "active"
	case SessionPaused:
		return "paused"
	case SessionEndingConfirmation:
		return "ending-confirmation"
	case SessionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// OperationState describes what the orchestrator is doing within a session.
type OperationState int

const (
	// OpIdle means no recording cycle is in flight.
	OpIdle OperationState = iota

	// OpPreparing is the pre-roll countdown before capture starts.
	OpPreparing

	// OpRecording means the microphone is live and the silence detector runs.
	OpRecording

	// OpProcessing means capture stopped and the validity classifier runs.
	OpProcessing

	// OpValidationFailed means the classifier rejected the recording.
	OpValidationFailed

	// OpTranslating means the recording was submitted to the backend.
	OpTranslating

	// OpPlaying means translated audio is being played back.
	OpPlaying

	// OpError is the terminal state of a failed cycle. Leaving it requires an
	// explicit reset or a session-level command.
	OpError
)

// String returns the human-readable name of the operation state.
func (s OperationState) String() string {
	switch s {
	case OpIdle:
		return "idle"
	case OpPreparing:
		return "preparing"
	case OpRecording:
		return "recording"
	case OpProcessing:
		return "processing"
	case OpValidationFailed:
		return "validation-failed"
	case OpTranslating:
		return "translating"
	case OpPlaying:
		return "playing"
	case OpError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a stimulus applied to both state axes. User commands and internal
// completions share the same vocabulary so that everything flows through one
// serialized dispatch path.
type Event string

const (
	// Session-level commands.
	EventStartSession      Event = "START_SESSION"
	EventRequestEndSession Event = "REQUEST_END_SESSION"
	EventCancelEndSession  Event = "CANCEL_END_SESSION"
	EventConfirmEndSession Event = "CONFIRM_END_SESSION"
	EventPauseSession      Event = "PAUSE_SESSION"
	EventResumeSession     Event = "RESUME_SESSION"
	EventResetSession      Event = "RESET_SESSION"

	// Operation-level events, posted by the orchestrator and its cycle
	// goroutines.
	EventStartCountdown      Event = "START_COUNTDOWN"
	EventCompleteCountdown   Event = "COMPLETE_COUNTDOWN"
	EventStopRecording       Event = "STOP_RECORDING"
	EventValidationFailed    Event = "VALIDATION_FAILED"
	EventBeginTranslation    Event = "BEGIN_TRANSLATION"
	EventCompleteTranslation Event = "COMPLETE_TRANSLATION"
	EventTranslationError    Event = "TRANSLATION_ERROR"
	EventBeginPlayback       Event = "BEGIN_PLAYBACK"
	EventCompletePlayback    Event = "COMPLETE_PLAYBACK"
	EventPlaybackError       Event = "PLAYBACK_ERROR"
	EventRecordingError      Event = "RECORDING_ERROR"
	EventResetOperation      Event = "RESET_OPERATION"
)
