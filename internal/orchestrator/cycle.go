package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/interloq/interloq/internal/detect"
	"github.com/interloq/interloq/internal/history"
	"github.com/interloq/interloq/internal/monitor"
	"github.com/interloq/interloq/internal/state"
	"github.com/interloq/interloq/pkg/audio"
	"github.com/interloq/interloq/pkg/capture"
	"github.com/interloq/interloq/pkg/session"
	"github.com/interloq/interloq/pkg/translate"
)

// cycle is one arm-record-translate-play pass. Its context bounds every
// goroutine spawned for it; cancelling the context orphans them all at once.
type cycle struct {
	id        string
	gen       uint64
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time

	// original is the untrimmed recording, kept for the audio-quality retry.
	original audio.Recording

	// seconds is the captured audio length, for history rows.
	seconds float64

	untrimmedRetried bool
}

// handle processes one envelope on the loop goroutine.
func (o *Orchestrator) handle(env envelope) {
	if env.cmd != "" {
		o.handleCommand(env.cmd)
		return
	}
	if env.gen != o.gen {
		slog.Debug("discarding stale cycle event",
			"event", string(env.ev), "gen", env.gen, "current", o.gen)
		return
	}

	switch p := env.payload.(type) {
	case countdownTick:
		if o.machine.Operation() == state.OpRecording {
			o.countdown = p.remaining
			o.status = fmt.Sprintf("finishing in %ds", p.remaining)
		}
	case soundActive:
		if o.machine.Operation() == state.OpRecording {
			o.countdown = 0
			o.status = "listening"
		}
	case translationRes:
		o.finishTranslation(p)
	case playbackRes:
		o.finishPlayback(p)
	case rearm:
		o.handleRearm(p)
	default:
		switch env.ev {
		case state.EventCompleteCountdown:
			o.startRecording()
		case state.EventStopRecording:
			o.stopAndProcess()
		}
	}
}

// handleCommand maps the presentation vocabulary onto state events plus their
// side effects.
func (o *Orchestrator) handleCommand(cmd Command) {
	switch cmd {
	case CmdStartSession:
		o.startSession()

	case CmdRequestEnd:
		if o.machine.Apply(state.EventRequestEndSession) {
			o.status = "confirm end of session"
		}

	case CmdCancelEnd:
		if o.machine.Apply(state.EventCancelEndSession) {
			o.status = "listening"
			// The cycle kept running through the confirmation, but if it had
			// already finished the loop needs a fresh arm.
			switch o.machine.Operation() {
			case state.OpIdle, state.OpValidationFailed:
				o.armCycle()
			}
		}

	case CmdConfirmEnd:
		if o.machine.Apply(state.EventConfirmEndSession) {
			o.cleanupCycle()
			o.machine.Apply(state.EventResetOperation)
			o.closeSession()
			o.countdown = 0
			o.status = "session ended"
		}

	case CmdPause:
		// The pause row forces the operation axis to Idle; any completion a
		// suspended cycle later posts carries a stale generation.
		if o.machine.Apply(state.EventPauseSession) {
			o.cleanupCycle()
			o.countdown = 0
			o.status = "paused"
		}

	case CmdResume:
		if o.machine.Apply(state.EventResumeSession) {
			// Resume is a session-level command: it may leave a pre-pause
			// operation error behind.
			if o.machine.Operation() == state.OpError {
				o.machine.Apply(state.EventResetOperation)
			}
			o.armCycle()
		}

	case CmdStop:
		// Manual stop-and-translate.
		if o.machine.Operation() == state.OpRecording {
			o.stopAndProcess()
		}

	case CmdReset:
		o.cleanupCycle()
		o.closeSession()
		o.machine.Apply(state.EventResetSession)
		o.machine.Apply(state.EventResetOperation)
		o.errMsg = ""
		o.countdown = 0
		o.lastTranslation = translate.Result{}
		o.status = "idle"

	default:
		slog.Warn("unknown command", "command", string(cmd))
	}
}

// startSession opens a session ticket and arms the first cycle.
func (o *Orchestrator) startSession() {
	// A cleanly ended session does not demand an explicit reset first.
	if o.machine.Session() == state.SessionEnded {
		o.machine.Apply(state.EventResetSession)
	}
	if o.machine.Session() != state.SessionIdle {
		return
	}

	sess, err := o.deps.Sessions.Open(o.runCtx, session.Params{
		SourceLang: o.cfg.SourceLang,
		TargetLang: o.cfg.TargetLang,
		Premium:    o.cfg.Premium,
	})
	if err != nil {
		o.errMsg = "open session: " + err.Error()
		o.status = "error"
		return
	}
	if !sess.Live(time.Now()) {
		o.errMsg = "session ticket already expired"
		o.status = "error"
		return
	}

	o.sess = sess
	o.errMsg = ""
	o.lastTranslation = translate.Result{}
	if o.deps.Metrics != nil {
		o.deps.Metrics.ActiveSessions.Add(o.runCtx, 1)
	}
	o.machine.Apply(state.EventStartSession)
	slog.Info("session started", "session_id", sess.ID,
		"source", sess.SourceLang, "target", sess.TargetLang)
	o.armCycle()
}

// closeSession releases the session ticket if one is held.
func (o *Orchestrator) closeSession() {
	if o.sess.ID == "" {
		return
	}
	_ = o.deps.Sessions.Close(o.runCtx, o.sess.ID)
	if o.deps.Metrics != nil {
		o.deps.Metrics.ActiveSessions.Add(o.runCtx, -1)
	}
	slog.Info("session closed", "session_id", o.sess.ID)
	o.sess = session.Session{}
}

// armCycle tears down the previous cycle and starts the pre-roll of a new
// one. Bumping the generation first makes every envelope of the old cycle
// stale by construction.
func (o *Orchestrator) armCycle() {
	o.cleanupCycle()

	ctx, cancel := context.WithCancel(o.runCtx)
	o.cycle = &cycle{
		id:        uuid.NewString(),
		gen:       o.gen,
		ctx:       ctx,
		cancel:    cancel,
		startedAt: time.Now(),
	}
	o.countdown = 0
	o.machine.Apply(state.EventStartCountdown)
	o.status = "preparing"

	go func(ctx context.Context, gen uint64) {
		timer := time.NewTimer(o.cfg.Preroll)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			o.post(ctx, envelope{ev: state.EventCompleteCountdown, gen: gen})
		}
	}(ctx, o.gen)
}

// cleanupCycle cancels the running cycle, releases the microphone, and
// invalidates all of the cycle's pending envelopes. It runs before every
// re-arm; a missed cleanup is how double silence-elapsed events happen.
func (o *Orchestrator) cleanupCycle() {
	if o.cycle != nil {
		o.cycle.cancel()
		o.cycle = nil
	}
	o.deps.Monitor.Release()
	o.gen++
}

// startRecording acquires the microphone and attaches a fresh detector.
func (o *Orchestrator) startRecording() {
	if o.machine.Operation() != state.OpPreparing {
		return
	}

	if err := o.deps.Monitor.Start(o.cycle.ctx); err != nil {
		if o.deps.Metrics != nil {
			o.deps.Metrics.CaptureErrors.Add(o.runCtx, 1)
		}
		if errors.Is(err, capture.ErrUnavailable) {
			o.fail(state.EventRecordingError, "microphone unavailable: "+err.Error())
		} else {
			o.fail(state.EventRecordingError, "start capture: "+err.Error())
		}
		return
	}

	o.machine.Apply(state.EventCompleteCountdown)
	o.status = "listening"

	ctx, gen := o.cycle.ctx, o.cycle.gen
	det := detect.New(o.deps.Monitor, func(e detect.Event) {
		switch e.Kind {
		case detect.SilenceCountdown:
			o.post(ctx, envelope{gen: gen, payload: countdownTick{remaining: e.Countdown}})
		case detect.SoundActive:
			o.post(ctx, envelope{gen: gen, payload: soundActive{}})
		case detect.SilenceElapsed:
			o.post(ctx, envelope{ev: state.EventStopRecording, gen: gen})
		}
	}, o.cfg.Detector)
	go det.Run(ctx)
}

// stopAndProcess ends capture and runs the classifier and trimmer. Both are
// fast and pure, so they run inline on the loop goroutine.
func (o *Orchestrator) stopAndProcess() {
	if o.machine.Operation() != state.OpRecording {
		return
	}
	o.machine.Apply(state.EventStopRecording)
	o.countdown = 0
	o.status = "processing"

	rec, samples, err := o.deps.Monitor.Stop()
	if err != nil {
		if o.deps.Metrics != nil {
			o.deps.Metrics.CaptureErrors.Add(o.runCtx, 1)
		}
		if errors.Is(err, monitor.ErrEmptyCapture) && !o.emptyRetried {
			// One silent retry; a second empty capture is a real fault.
			o.emptyRetried = true
			o.status = "no audio captured, retrying"
			o.machine.Apply(state.EventResetOperation)
			o.scheduleRearm(false)
			return
		}
		o.fail(state.EventRecordingError, "stop capture: "+err.Error())
		return
	}
	o.emptyRetried = false
	o.cycle.seconds = audio.Duration(len(samples), rec.SampleRate).Seconds()
	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordingSeconds.Record(o.runCtx, o.cycle.seconds)
	}

	decision := o.deps.Classifier.Evaluate(samples, rec.SampleRate)
	if !decision.Speech {
		o.machine.Apply(state.EventValidationFailed)
		o.status = "no speech detected (" + string(decision.Reason) + ")"
		if o.deps.Metrics != nil {
			o.deps.Metrics.RecordValidationReject(o.runCtx, string(decision.Reason))
		}
		slog.Info("recording rejected",
			"reason", string(decision.Reason),
			"duration", decision.Metrics.Duration,
			"rms", decision.Metrics.RMS)
		// Noise-driven, not a fault: keep listening as long as the session
		// stays active.
		if o.machine.Session() == state.SessionActive {
			o.scheduleRearm(false)
		}
		return
	}

	upload := rec
	usedTrimmed := false
	if !o.cfg.TrimDisabled {
		trimmed := o.deps.Trimmer.Trim(rec, samples)
		if len(trimmed.Data) < len(rec.Data) {
			upload = trimmed
			usedTrimmed = true
			if o.deps.Metrics != nil {
				o.deps.Metrics.TrimApplied.Add(o.runCtx, 1)
			}
		}
	}

	o.cycle.original = rec
	o.machine.Apply(state.EventBeginTranslation)
	o.status = "translating"
	o.startTranslation(upload, usedTrimmed)
}

// startTranslation submits one rendition of the recording to the backend.
func (o *Orchestrator) startTranslation(rec audio.Recording, usedTrimmed bool) {
	ctx, gen := o.cycle.ctx, o.cycle.gen
	req := translate.Request{
		Audio:      rec.Data,
		MIME:       rec.MIME,
		SourceLang: o.sess.SourceLang,
		TargetLang: o.sess.TargetLang,
		Premium:    o.sess.Premium,
	}

	go func() {
		callCtx := ctx
		if o.cfg.TranslationTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.cfg.TranslationTimeout)
			defer cancel()
		}

		start := time.Now()
		res, err := o.deps.Provider.Translate(callCtx, req)
		if o.deps.Metrics != nil {
			o.deps.Metrics.TranslationDuration.Record(context.Background(), time.Since(start).Seconds())
		}
		o.post(ctx, envelope{ev: state.EventCompleteTranslation, gen: gen,
			payload: translationRes{result: res, err: err, usedTrimmed: usedTrimmed}})
	}()
}

// finishTranslation applies a backend response, retrying once with the
// untrimmed recording when the backend rejected the trimmed one for audio
// quality. The retry decision keys on the structured error code, never on
// message text.
func (o *Orchestrator) finishTranslation(p translationRes) {
	if o.machine.Operation() != state.OpTranslating {
		return
	}

	if p.err != nil {
		if translate.IsAudioQuality(p.err) && p.usedTrimmed && !o.cycle.untrimmedRetried {
			o.cycle.untrimmedRetried = true
			if o.deps.Metrics != nil {
				o.deps.Metrics.TranslationRetries.Add(o.runCtx, 1)
			}
			slog.Info("audio-quality rejection, retrying with untrimmed recording",
				"cycle_id", o.cycle.id)
			o.status = "retrying with full recording"
			o.startTranslation(o.cycle.original, false)
			return
		}
		o.fail(state.EventTranslationError, "translation: "+p.err.Error())
		return
	}

	o.lastTranslation = p.result
	o.recordHistory(p.result)
	o.machine.Apply(state.EventBeginPlayback)
	o.status = "playing"
	o.startPlayback(p.result)
}

// startPlayback hands synthesized audio to the sink. A text-only result
// completes playback immediately.
func (o *Orchestrator) startPlayback(res translate.Result) {
	ctx, gen := o.cycle.ctx, o.cycle.gen

	go func() {
		if len(res.Audio) == 0 {
			o.post(ctx, envelope{gen: gen, payload: playbackRes{}})
			return
		}
		start := time.Now()
		err := o.deps.Sink.Play(ctx, res.Audio, res.AudioMIME)
		if ctx.Err() != nil {
			// Cancelled playback completes neither way.
			return
		}
		if o.deps.Metrics != nil {
			o.deps.Metrics.PlaybackDuration.Record(context.Background(), time.Since(start).Seconds())
		}
		o.post(ctx, envelope{gen: gen, payload: playbackRes{err: err}})
	}()
}

// finishPlayback closes the cycle and re-arms the conversation loop.
func (o *Orchestrator) finishPlayback(p playbackRes) {
	if o.machine.Operation() != state.OpPlaying {
		return
	}

	if p.err != nil {
		o.fail(state.EventPlaybackError, "playback: "+p.err.Error())
		// Terminal for the cycle, but the conversation keeps going; the
		// error text stays visible until a session-level command clears it.
		if o.machine.Session() == state.SessionActive {
			o.scheduleRearm(true)
		}
		return
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.CycleDuration.Record(o.runCtx, time.Since(o.cycle.startedAt).Seconds())
	}
	o.machine.Apply(state.EventCompletePlayback)
	o.status = "translated"
	if o.machine.Session() == state.SessionActive {
		o.armCycle()
	}
}

// scheduleRearm posts a delayed re-arm bound to the current cycle, so a
// pause or reset in the meantime silently cancels it.
func (o *Orchestrator) scheduleRearm(fromError bool) {
	ctx, gen := o.cycle.ctx, o.cycle.gen
	go func() {
		timer := time.NewTimer(o.cfg.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			o.post(ctx, envelope{gen: gen, payload: rearm{fromError: fromError}})
		}
	}()
}

// handleRearm restarts the loop after a discarded recording or a failed
// playback.
func (o *Orchestrator) handleRearm(p rearm) {
	if o.machine.Session() != state.SessionActive {
		return
	}
	switch o.machine.Operation() {
	case state.OpIdle, state.OpValidationFailed:
	case state.OpError:
		if !p.fromError {
			return
		}
		o.machine.Apply(state.EventResetOperation)
	default:
		return
	}
	o.armCycle()
}

// recordHistory persists one exchange without ever blocking the loop.
func (o *Orchestrator) recordHistory(res translate.Result) {
	if o.deps.History == nil || o.sess.ID == "" {
		return
	}
	ex := history.Exchange{
		SessionID:      o.sess.ID,
		CycleID:        o.cycle.id,
		RecognizedText: res.RecognizedText,
		RecognizedLang: res.RecognizedLang,
		TranslatedText: res.TranslatedText,
		TranslatedLang: res.TranslatedLang,
		Provider:       o.deps.Provider.Name(),
		AudioSeconds:   o.cycle.seconds,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.deps.History.Record(ctx, ex); err != nil {
			slog.Warn("history write failed", "session_id", ex.SessionID, "error", err)
		}
	}()
}
