package state

// sessionTransitions is the partial transition table for the session axis.
// Missing (state, event) pairs are silent no-ops.
var sessionTransitions = map[SessionState]map[Event]SessionState{
	SessionIdle: {
		EventStartSession: SessionActive,
	},
	SessionActive: {
		EventRequestEndSession: SessionEndingConfirmation,
		EventPauseSession:      SessionPaused,
		EventResetSession:      SessionIdle,
	},
	SessionPaused: {
		EventResumeSession:     SessionActive,
		EventRequestEndSession: SessionEndingConfirmation,
		EventResetSession:      SessionIdle,
	},
	SessionEndingConfirmation: {
		// Cancel restores Active regardless of where the request came from;
		// the table is stateless and does not remember a paused origin.
		EventCancelEndSession:  SessionActive,
		EventConfirmEndSession: SessionEnded,
		EventResetSession:      SessionIdle,
	},
	SessionEnded: {
		EventResetSession: SessionIdle,
	},
}

// operationTransitions is the partial transition table for the operation axis.
//
// EventPauseSession rows force every in-flight operation back to Idle. Once
// there, a late COMPLETE_TRANSLATION or COMPLETE_PLAYBACK from the suspended
// cycle has no entry and is discarded rather than acted on.
var operationTransitions = map[OperationState]map[Event]OperationState{
	OpIdle: {
		EventStartCountdown: OpPreparing,
	},
	OpPreparing: {
		EventCompleteCountdown: OpRecording,
		EventRecordingError:    OpError,
		EventPauseSession:      OpIdle,
		EventResetOperation:    OpIdle,
	},
	OpRecording: {
		EventStopRecording:  OpProcessing,
		EventRecordingError: OpError,
		EventPauseSession:   OpIdle,
		EventResetOperation: OpIdle,
	},
	OpProcessing: {
		EventValidationFailed: OpValidationFailed,
		EventBeginTranslation: OpTranslating,
		EventRecordingError:   OpError,
		EventPauseSession:     OpIdle,
		EventResetOperation:   OpIdle,
	},
	OpValidationFailed: {
		EventStartCountdown: OpPreparing,
		EventPauseSession:   OpIdle,
		EventResetOperation: OpIdle,
	},
	OpTranslating: {
		EventBeginPlayback:    OpPlaying,
		EventTranslationError: OpError,
		EventPauseSession:     OpIdle,
		EventResetOperation:   OpIdle,
	},
	OpPlaying: {
		EventCompletePlayback: OpIdle,
		EventPlaybackError:    OpError,
		EventPauseSession:     OpIdle,
		EventResetOperation:   OpIdle,
	},
	OpError: {
		EventResetOperation: OpIdle,
	},
}
