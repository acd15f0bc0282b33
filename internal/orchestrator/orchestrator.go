// Package orchestrator sequences the live translation loop: arm the
// microphone, record until the silence detector fires, validate and trim the
// capture, submit it for translation, play the answer, then arm again.
//
// Everything flows through one serialized event loop. Long-running work
// (pre-roll timer, detector sampling, the backend round-trip, playback) runs
// in cycle-scoped goroutines that post completion envelopes back into the
// loop, tagged with the generation of the cycle that spawned them. The loop
// discards envelopes from superseded generations, so a pause issued
// mid-translation simply orphans the in-flight response instead of racing it.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/interloq/interloq/internal/classify"
	"github.com/interloq/interloq/internal/detect"
	"github.com/interloq/interloq/internal/history"
	"github.com/interloq/interloq/internal/monitor"
	"github.com/interloq/interloq/internal/observe"
	"github.com/interloq/interloq/internal/state"
	"github.com/interloq/interloq/internal/trim"
	"github.com/interloq/interloq/pkg/playback"
	"github.com/interloq/interloq/pkg/session"
	"github.com/interloq/interloq/pkg/translate"
)

// Command is the fixed vocabulary the presentation layer may issue.
type Command string

const (
	CmdStartSession Command = "start-session"
	CmdRequestEnd   Command = "request-end"
	CmdConfirmEnd   Command = "confirm-end"
	CmdCancelEnd    Command = "cancel-end"
	CmdPause        Command = "pause"
	CmdResume       Command = "resume"
	CmdStop         Command = "stop"
	CmdReset        Command = "reset"
)

// Config tunes the orchestrator's timing and the conversation parameters.
type Config struct {
	// SourceLang and TargetLang are the two conversation languages.
	SourceLang string
	TargetLang string

	// Premium requests the higher-quality translation tier.
	Premium bool

	// SampleRate of the captured audio in Hz. Default: 16000.
	SampleRate int

	// Preroll is the delay between arming a cycle and recording start.
	// Default: 3s.
	Preroll time.Duration

	// RetryDelay is the pause before re-arming after a discarded recording.
	// Default: 500ms.
	RetryDelay time.Duration

	// TranslationTimeout bounds one backend attempt. Zero means no limit;
	// a stuck backend then holds the Translating state until a session-level
	// command intervenes.
	TranslationTimeout time.Duration

	// Detector overrides the silence detector defaults. Zero fields keep
	// them.
	Detector detect.Config

	// TrimDisabled uploads recordings exactly as captured.
	TrimDisabled bool
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Preroll <= 0 {
		c.Preroll = 3 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	return c
}

// Deps are the collaborators the orchestrator drives. Monitor, Provider,
// Sink and Sessions are required; History and Metrics may be nil.
type Deps struct {
	Monitor    *monitor.Monitor
	Classifier classify.Classifier
	Trimmer    trim.Trimmer
	Provider   translate.Provider
	Sink       playback.Sink
	Sessions   session.Service
	History    *history.Store
	Metrics    *observe.Metrics
}

// Snapshot is the read-only state published to subscribers after every
// applied event.
type Snapshot struct {
	SessionState   string `json:"session_state"`
	OperationState string `json:"operation_state"`
	Status         string `json:"status"`

	// Countdown is the remaining silence countdown in seconds, 0 when no
	// countdown is running.
	Countdown int `json:"countdown"`

	Err string `json:"error,omitempty"`

	SessionID string `json:"session_id,omitempty"`
	CycleID   string `json:"cycle_id,omitempty"`

	RecognizedText string `json:"recognized_text,omitempty"`
	RecognizedLang string `json:"recognized_lang,omitempty"`
	TranslatedText string `json:"translated_text,omitempty"`
	TranslatedLang string `json:"translated_lang,omitempty"`

	// HasAudio reports whether the last translation carried synthesized
	// speech.
	HasAudio bool `json:"has_audio"`
}

// envelope is one unit of work for the serialized loop. Either cmd or ev is
// set. gen tags envelopes posted by cycle goroutines; zero means "not bound
// to a cycle" (user commands, detector display ticks are bound).
type envelope struct {
	cmd     Command
	ev      state.Event
	gen     uint64
	payload any
}

// Cycle goroutine payloads.
type (
	countdownTick  struct{ remaining int }
	soundActive    struct{}
	translationRes struct {
		result      translate.Result
		err         error
		usedTrimmed bool
	}
	playbackRes struct{ err error }
	rearm       struct{ fromError bool }
)

// Orchestrator owns the dual state machine and the current recording cycle.
// All fields below mu are written only by the Run goroutine.
type Orchestrator struct {
	machine *state.Machine
	deps    Deps
	cfg     Config

	events chan envelope
	runCtx context.Context

	gen   uint64
	cycle *cycle

	// emptyRetried tracks the single automatic retry after an empty capture.
	// It clears on the next successful capture.
	emptyRetried bool

	sess            session.Session
	status          string
	errMsg          string
	countdown       int
	lastTranslation translate.Result

	mu   sync.Mutex
	subs map[chan Snapshot]struct{}
	last Snapshot
}

// New builds an orchestrator around an explicitly constructed state machine.
// The machine is owned by the caller's composition root; the orchestrator is
// its only writer once Run starts.
func New(machine *state.Machine, deps Deps, cfg Config) *Orchestrator {
	return &Orchestrator{
		machine: machine,
		deps:    deps,
		cfg:     cfg.withDefaults(),
		events:  make(chan envelope, 64),
		subs:    make(map[chan Snapshot]struct{}),
		status:  "idle",
	}
}

// Run consumes the event channel until ctx is cancelled. It is the only
// goroutine that touches the state machine.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.runCtx = ctx
	o.publish()
	for {
		select {
		case <-ctx.Done():
			o.cleanupCycle()
			return ctx.Err()
		case env := <-o.events:
			o.handle(env)
			o.publish()
		}
	}
}

// Dispatch queues a user command for the event loop. It blocks only when the
// queue is full and never after Run has exited.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd Command) error {
	select {
	case o.events <- envelope{cmd: cmd}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a snapshot listener. The current snapshot is delivered
// immediately; later ones after every applied event. Slow listeners miss
// intermediate snapshots rather than blocking the loop. The returned cancel
// function must be called to release the subscription.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)
	o.mu.Lock()
	o.subs[ch] = struct{}{}
	ch <- o.last
	o.mu.Unlock()

	cancel := func() {
		o.mu.Lock()
		if _, ok := o.subs[ch]; ok {
			delete(o.subs, ch)
			close(ch)
		}
		o.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns the most recently published snapshot.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// publish pushes the current state to every subscriber.
func (o *Orchestrator) publish() {
	snap := Snapshot{
		SessionState:   o.machine.Session().String(),
		OperationState: o.machine.Operation().String(),
		Status:         o.status,
		Countdown:      o.countdown,
		Err:            o.errMsg,
		SessionID:      o.sess.ID,
		RecognizedText: o.lastTranslation.RecognizedText,
		RecognizedLang: o.lastTranslation.RecognizedLang,
		TranslatedText: o.lastTranslation.TranslatedText,
		TranslatedLang: o.lastTranslation.TranslatedLang,
		HasAudio:       len(o.lastTranslation.Audio) > 0,
	}
	if o.cycle != nil {
		snap.CycleID = o.cycle.id
	}

	o.mu.Lock()
	o.last = snap
	for ch := range o.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	o.mu.Unlock()
}

// post delivers an envelope from a cycle goroutine. It gives up when the
// cycle is cancelled or the orchestrator shuts down, so orphaned goroutines
// never block.
func (o *Orchestrator) post(ctx context.Context, env envelope) {
	select {
	case o.events <- env:
	case <-ctx.Done():
	}
}

// fail records a terminal cycle error and moves the operation axis through
// ev (expected to land in the error state).
func (o *Orchestrator) fail(ev state.Event, msg string) {
	o.errMsg = msg
	o.status = "error"
	o.machine.Apply(ev)
	slog.Error("cycle failed", "event", string(ev), "error", msg)
}
