package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/interloq/interloq/internal/classify"
	"github.com/interloq/interloq/internal/detect"
	"github.com/interloq/interloq/internal/monitor"
	"github.com/interloq/interloq/internal/state"
	"github.com/interloq/interloq/internal/trim"
	"github.com/interloq/interloq/pkg/capture"
	capmock "github.com/interloq/interloq/pkg/capture/mock"
	plmock "github.com/interloq/interloq/pkg/playback/mock"
	"github.com/interloq/interloq/pkg/session"
	"github.com/interloq/interloq/pkg/translate"
	trmock "github.com/interloq/interloq/pkg/translate/mock"
)

// streamDevice hands out a fresh stream per Start so consecutive cycles never
// share a stopped stream.
type streamDevice struct {
	mu       sync.Mutex
	startErr error
	streams  []*capmock.Stream
}

func (d *streamDevice) Start(ctx context.Context, cfg capture.Config) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return nil, d.startErr
	}
	s := capmock.NewStream(64)
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *streamDevice) starts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

func (d *streamDevice) stream(i int) *capmock.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.streams) {
		return nil
	}
	return d.streams[i]
}

// lenientClassifier accepts any capture with audible content, so tests drive
// the loop with short synthetic frames.
func lenientClassifier() classify.Classifier {
	return classify.Classifier{
		MinRMS:          0.001,
		MinPeak:         0.001,
		ActiveAmp:       0.0005,
		MinActiveFrac:   0.001,
		MaxZeroCross:    1,
		MaxFlatRunRatio: 2,
	}
}

// speechSamples returns n samples of a varied, loud waveform.
func speechSamples(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		switch i % 4 {
		case 0:
			s[i] = 0.5
		case 1:
			s[i] = -0.4
		case 2:
			s[i] = 0.3
		default:
			s[i] = -0.2
		}
	}
	return s
}

type harness struct {
	t        *testing.T
	orc      *Orchestrator
	dev      *streamDevice
	provider *trmock.Provider
	sink     *plmock.Sink
}

// newHarness wires an orchestrator over mocks with timings fast enough for
// tests. mutate may adjust the config or dependencies before Run starts.
func newHarness(t *testing.T, mutate func(*Config, *Deps)) *harness {
	t.Helper()

	dev := &streamDevice{}
	provider := &trmock.Provider{Results: []trmock.Outcome{{
		Result: translate.Result{
			RecognizedText: "hello",
			RecognizedLang: "en",
			TranslatedText: "hallo",
			TranslatedLang: "de",
			Audio:          []byte("synthesized"),
			AudioMIME:      "audio/wav",
		},
	}}}
	sink := &plmock.Sink{}

	cfg := Config{
		SourceLang: "en",
		TargetLang: "de",
		Preroll:    5 * time.Millisecond,
		RetryDelay: 5 * time.Millisecond,
		Detector: detect.Config{
			SampleInterval:   time.Millisecond,
			WindowSize:       2,
			SilenceThreshold: 0.02,
			CountdownTicks:   1,
			TickInterval:     30 * time.Millisecond,
		},
		TrimDisabled: true,
	}
	deps := Deps{
		Monitor:    monitor.New(dev, capture.Config{SampleRate: 16000, Channels: 1}),
		Classifier: lenientClassifier(),
		Trimmer:    trim.Default(),
		Provider:   provider,
		Sink:       sink,
		Sessions:   session.NewMemoryService(time.Hour),
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	orc := New(state.NewMachine(), deps, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go orc.Run(ctx)

	return &harness{t: t, orc: orc, dev: dev, provider: provider, sink: sink}
}

func (h *harness) dispatch(cmd Command) {
	h.t.Helper()
	if err := h.orc.Dispatch(context.Background(), cmd); err != nil {
		h.t.Fatalf("Dispatch(%s): %v", cmd, err)
	}
}

// waitState polls the published snapshot until cond holds.
func (h *harness) waitState(desc string, cond func(Snapshot) bool) Snapshot {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s := h.orc.Snapshot(); cond(s) {
			return s
		}
		time.Sleep(time.Millisecond)
	}
	h.t.Fatalf("timed out waiting for %s; last snapshot: %+v", desc, h.orc.Snapshot())
	return Snapshot{}
}

// waitStarts blocks until the device has been opened n times.
func (h *harness) waitStarts(n int) {
	h.t.Helper()
	h.waitState("capture start", func(Snapshot) bool { return h.dev.starts() >= n })
}

func (h *harness) waitCalls(n int) {
	h.t.Helper()
	h.waitState("translate calls", func(Snapshot) bool { return h.provider.Calls() >= n })
}

// pushUtterance feeds speech followed by silence into capture stream i, which
// lets the silence detector close the recording.
func (h *harness) pushUtterance(i int) {
	h.t.Helper()
	s := h.dev.stream(i)
	if s == nil {
		h.t.Fatalf("stream %d not started", i)
	}
	s.PushPCM(speechSamples(3200), 16000)
	s.PushPCM(make([]float64, 1600), 16000)
}

func TestOrchestrator_HappyCycle(t *testing.T) {
	h := newHarness(t, nil)

	h.dispatch(CmdStartSession)
	h.waitState("active session", func(s Snapshot) bool {
		return s.SessionState == "active" && s.SessionID != ""
	})

	h.waitStarts(1)
	h.pushUtterance(0)

	snap := h.waitState("translated result", func(s Snapshot) bool {
		return s.TranslatedText == "hallo"
	})
	if snap.RecognizedText != "hello" || !snap.HasAudio {
		t.Errorf("snapshot = %+v, want recognized text and audio", snap)
	}

	// The loop re-arms itself after playback.
	h.waitState("playback", func(Snapshot) bool { return h.sink.Calls() >= 1 })
	h.waitStarts(2)

	reqs := h.provider.Recorded()
	if len(reqs) != 1 {
		t.Fatalf("translate calls = %d, want 1", len(reqs))
	}
	if reqs[0].SourceLang != "en" || reqs[0].TargetLang != "de" {
		t.Errorf("request langs = %s→%s, want en→de", reqs[0].SourceLang, reqs[0].TargetLang)
	}
	if reqs[0].MIME != trim.MIMEWAV {
		t.Errorf("request MIME = %q, want %q", reqs[0].MIME, trim.MIMEWAV)
	}
}

func TestOrchestrator_PauseDiscardsInFlightTranslation(t *testing.T) {
	delay := make(chan struct{})
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		provider := deps.Provider.(*trmock.Provider)
		provider.Results = []trmock.Outcome{{
			Result: translate.Result{TranslatedText: "hallo"},
			Delay:  delay,
		}}
	})

	h.dispatch(CmdStartSession)
	h.waitStarts(1)
	h.pushUtterance(0)
	h.waitState("translating", func(s Snapshot) bool {
		return s.OperationState == "translating"
	})

	h.dispatch(CmdPause)
	h.waitState("paused", func(s Snapshot) bool {
		return s.SessionState == "paused" && s.OperationState == "idle"
	})

	// Releasing the suspended call must not leak its result into the UI.
	close(delay)
	time.Sleep(20 * time.Millisecond)
	if snap := h.orc.Snapshot(); snap.TranslatedText != "" {
		t.Errorf("translated text = %q after pause, want empty", snap.TranslatedText)
	}
	if h.sink.Calls() != 0 {
		t.Errorf("playback calls = %d after pause, want 0", h.sink.Calls())
	}

	h.dispatch(CmdResume)
	h.waitState("resumed", func(s Snapshot) bool { return s.SessionState == "active" })
	h.waitStarts(2)
}

func TestOrchestrator_AudioQualityRetriesUntrimmed(t *testing.T) {
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		cfg.TrimDisabled = false
		deps.Trimmer = trim.Trimmer{
			WindowSeconds:      0.064,
			WindowRMSThreshold: 0.02,
			MinKeep:            time.Millisecond,
			MinSaving:          time.Millisecond,
		}
		provider := deps.Provider.(*trmock.Provider)
		provider.Results = []trmock.Outcome{
			{Err: translate.NewError(translate.CodeAudioQuality, "inaudible", nil)},
			{Result: translate.Result{TranslatedText: "hallo"}},
		}
	})

	h.dispatch(CmdStartSession)
	h.waitStarts(1)

	// Silence padding around the utterance gives the trimmer something to cut.
	s := h.dev.stream(0)
	frame := make([]float64, 0, 5120)
	frame = append(frame, make([]float64, 2048)...)
	frame = append(frame, speechSamples(1024)...)
	frame = append(frame, make([]float64, 2048)...)
	s.PushPCM(frame, 16000)
	s.PushPCM(make([]float64, 800), 16000)

	h.waitState("translated after retry", func(s Snapshot) bool {
		return s.TranslatedText == "hallo"
	})

	reqs := h.provider.Recorded()
	if len(reqs) != 2 {
		t.Fatalf("translate calls = %d, want 2", len(reqs))
	}
	if len(reqs[1].Audio) <= len(reqs[0].Audio) {
		t.Errorf("retry audio %d bytes not larger than trimmed %d bytes",
			len(reqs[1].Audio), len(reqs[0].Audio))
	}
}

func TestOrchestrator_ValidationFailureRearms(t *testing.T) {
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		// Rejects everything as too short.
		deps.Classifier = classify.Classifier{MinDuration: time.Hour}
	})

	h.dispatch(CmdStartSession)
	h.waitStarts(1)
	h.pushUtterance(0)

	// The discarded recording never reaches the backend, and the loop keeps
	// listening.
	h.waitStarts(2)
	if h.provider.Calls() != 0 {
		t.Errorf("translate calls = %d, want 0", h.provider.Calls())
	}
	if snap := h.orc.Snapshot(); snap.SessionState != "active" {
		t.Errorf("session state = %q, want active", snap.SessionState)
	}
}

func TestOrchestrator_EmptyCaptureRetriesOnce(t *testing.T) {
	h := newHarness(t, nil)

	// Never push audio: every capture comes back empty.
	h.dispatch(CmdStartSession)

	snap := h.waitState("capture error", func(s Snapshot) bool {
		return s.OperationState == "error"
	})
	if !strings.Contains(snap.Err, "no audio") {
		t.Errorf("error = %q, want empty-capture message", snap.Err)
	}
	if starts := h.dev.starts(); starts != 2 {
		t.Errorf("capture starts = %d, want 2 (one retry)", starts)
	}
	if snap.SessionState != "active" {
		t.Errorf("session state = %q, want active", snap.SessionState)
	}
}

func TestOrchestrator_MicrophoneUnavailableFailsCycle(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.mu.Lock()
	h.dev.startErr = capture.ErrUnavailable
	h.dev.mu.Unlock()

	h.dispatch(CmdStartSession)
	snap := h.waitState("device error", func(s Snapshot) bool {
		return s.OperationState == "error"
	})
	if !strings.Contains(snap.Err, "microphone unavailable") {
		t.Errorf("error = %q, want microphone unavailable", snap.Err)
	}

	h.dispatch(CmdReset)
	snap = h.waitState("reset", func(s Snapshot) bool {
		return s.SessionState == "idle" && s.OperationState == "idle"
	})
	if snap.Err != "" || snap.SessionID != "" {
		t.Errorf("snapshot after reset = %+v, want cleared", snap)
	}
}

func TestOrchestrator_PlaybackErrorSurfacesAndRearms(t *testing.T) {
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		deps.Sink.(*plmock.Sink).PlayErr = errors.New("output device gone")
	})

	h.dispatch(CmdStartSession)
	h.waitStarts(1)
	h.pushUtterance(0)

	snap := h.waitState("playback error", func(s Snapshot) bool {
		return strings.Contains(s.Err, "playback")
	})
	if snap.TranslatedText != "hallo" {
		t.Errorf("translated text = %q, want result kept despite playback error", snap.TranslatedText)
	}

	// The loop recovers; the error text stays visible until a session-level
	// command clears it.
	h.waitStarts(2)
	snap = h.waitState("re-armed", func(s Snapshot) bool {
		return s.OperationState == "preparing" || s.OperationState == "recording"
	})
	if snap.Err == "" {
		t.Error("error text cleared by re-arm, want it retained")
	}
}

func TestOrchestrator_EndConfirmationLetsCycleContinue(t *testing.T) {
	delay := make(chan struct{})
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		provider := deps.Provider.(*trmock.Provider)
		provider.Results = []trmock.Outcome{{
			Result: translate.Result{TranslatedText: "hallo"},
			Delay:  delay,
		}}
	})

	h.dispatch(CmdStartSession)
	h.waitStarts(1)
	h.pushUtterance(0)
	h.waitState("translating", func(s Snapshot) bool {
		return s.OperationState == "translating"
	})

	// Asking for confirmation must not interrupt the in-flight operation.
	h.dispatch(CmdRequestEnd)
	snap := h.waitState("ending confirmation", func(s Snapshot) bool {
		return s.SessionState == "ending-confirmation"
	})
	if snap.OperationState != "translating" {
		t.Errorf("operation state = %q during confirmation, want translating", snap.OperationState)
	}

	h.dispatch(CmdCancelEnd)
	h.waitState("cancelled", func(s Snapshot) bool { return s.SessionState == "active" })

	h.dispatch(CmdRequestEnd)
	h.dispatch(CmdConfirmEnd)
	snap = h.waitState("ended", func(s Snapshot) bool { return s.SessionState == "ended" })
	if snap.OperationState != "idle" || snap.SessionID != "" {
		t.Errorf("snapshot after confirm = %+v, want idle operation and released session", snap)
	}

	// The orphaned translation completes into a dead generation.
	close(delay)
	time.Sleep(20 * time.Millisecond)
	if snap := h.orc.Snapshot(); snap.TranslatedText != "" {
		t.Errorf("translated text = %q after session end, want empty", snap.TranslatedText)
	}
}

func TestOrchestrator_ManualStopTranslatesImmediately(t *testing.T) {
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		// Detector never fires on its own.
		cfg.Detector.TickInterval = time.Hour
	})

	h.dispatch(CmdStartSession)
	h.waitStarts(1)
	h.dev.stream(0).PushPCM(speechSamples(3200), 16000)
	h.waitState("recording", func(s Snapshot) bool {
		return s.OperationState == "recording"
	})
	// Give the pump a moment to drain the frame before capture stops.
	time.Sleep(10 * time.Millisecond)

	h.dispatch(CmdStop)
	h.waitState("translated", func(s Snapshot) bool {
		return s.TranslatedText == "hallo"
	})
	h.waitState("playback", func(Snapshot) bool { return h.sink.Calls() >= 1 })
}

func TestOrchestrator_SubscribeDeliversSnapshots(t *testing.T) {
	h := newHarness(t, nil)
	h.waitState("loop started", func(s Snapshot) bool { return s.SessionState != "" })

	ch, cancel := h.orc.Subscribe()
	defer cancel()

	select {
	case snap := <-ch:
		if snap.SessionState != "idle" {
			t.Errorf("initial session state = %q, want idle", snap.SessionState)
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot delivered")
	}

	h.dispatch(CmdStartSession)
	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.SessionState == "active" {
				return
			}
		case <-deadline:
			t.Fatal("no active snapshot delivered")
		}
	}
}
