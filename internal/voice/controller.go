// Package voice coordinates speech input and output around the chat
// pipeline. Recognition and synthesis engines are pluggable; the
// controller owns the listening window and the state transitions.
package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"karebot/internal/observability"
)

// DefaultListenTimeout bounds a listening session that receives no
// final transcript.
const DefaultListenTimeout = 30 * time.Second

// ErrRecognitionUnavailable indicates no recognition engine is wired.
var ErrRecognitionUnavailable = errors.New("voice: speech recognition unavailable")

// State is the controller's current mode.
type State int

const (
	StateIdle State = iota
	StateListening
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateSpeaking:
		return "speaking"
	default:
		return "idle"
	}
}

// Recognition is a single result from a recognition engine. A Final
// result ends the session; Err ends it with an error.
type Recognition struct {
	Text  string
	Final bool
	Err   error
}

// Recognizer is a speech-to-text engine. Start begins a session and
// delivers results on the returned channel until the context is
// cancelled or the session ends; the engine closes the channel when it
// stops producing results.
type Recognizer interface {
	Start(ctx context.Context, language string) (<-chan Recognition, error)
}

// Synthesizer is a text-to-speech engine.
type Synthesizer interface {
	// Speak renders the text aloud and returns when playback finishes
	// or ctx is cancelled.
	Speak(ctx context.Context, text, language string) error
	// Stop interrupts any in-progress playback.
	Stop()
}

// EventKind classifies controller events.
type EventKind string

const (
	// EventInterim carries a partial transcript while listening.
	EventInterim EventKind = "interim"
	// EventFinal carries the single final transcript of a session.
	EventFinal EventKind = "final"
	// EventError reports a recognition failure; the session is over.
	EventError EventKind = "error"
	// EventEnded reports a session that ended without a final
	// transcript (stopped or timed out).
	EventEnded EventKind = "ended"
)

// Event is delivered on the controller's subscription channel.
type Event struct {
	Kind       EventKind
	Transcript string
	Language   string
	Err        error
}

// Config holds controller configuration.
type Config struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
	// Timeout is the maximum listening window (default 30s).
	Timeout time.Duration
	Logger  observability.Logger
	// Metrics counts started listening sessions. May be nil.
	Metrics *observability.Metrics
}

// Controller is the voice state machine. All methods are safe for
// concurrent use.
type Controller struct {
	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	session int

	rec     Recognizer
	synth   Synthesizer
	timeout time.Duration
	log     observability.Logger
	metrics *observability.Metrics

	events chan Event
}

// NewController creates a controller in the idle state.
func NewController(cfg Config) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultListenTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Controller{
		rec:     cfg.Recognizer,
		synth:   cfg.Synthesizer,
		timeout: cfg.Timeout,
		log:     cfg.Logger.WithComponent("voice"),
		metrics: cfg.Metrics,
		events:  make(chan Event, 16),
	}
}

// Events returns the subscription channel. Events are dropped rather
// than blocking when no one is draining the channel.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State reports the current mode.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartListening begins a recognition session in the given language.
// Calling it while already listening is a no-op. Returns
// ErrRecognitionUnavailable when no engine is wired.
func (c *Controller) StartListening(ctx context.Context, language string) error {
	c.mu.Lock()
	if c.state == StateListening {
		c.mu.Unlock()
		return nil
	}
	if c.rec == nil {
		c.mu.Unlock()
		return ErrRecognitionUnavailable
	}
	lctx, cancel := context.WithCancel(ctx)
	ch, err := c.rec.Start(lctx, language)
	if err != nil {
		cancel()
		c.mu.Unlock()
		return err
	}
	c.state = StateListening
	c.cancel = cancel
	c.session++
	session := c.session
	c.mu.Unlock()

	c.metrics.RecordVoiceSession()
	c.log.Debug("listening started", "language", language)
	go c.listen(session, language, ch, cancel)
	return nil
}

// listen consumes recognition results until a terminal condition:
// final transcript, error, engine shutdown, or the listening timeout.
// Exactly one terminal event is emitted per session.
func (c *Controller) listen(session int, language string, ch <-chan Recognition, cancel context.CancelFunc) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	defer cancel()

	for {
		select {
		case <-timer.C:
			c.log.Debug("listening timed out", "language", language)
			c.finish(session, Event{Kind: EventEnded, Language: language})
			return
		case rec, ok := <-ch:
			if !ok {
				c.finish(session, Event{Kind: EventEnded, Language: language})
				return
			}
			if rec.Err != nil {
				c.log.Warn("recognition failed", "error", rec.Err)
				c.finish(session, Event{Kind: EventError, Language: language, Err: rec.Err})
				return
			}
			if rec.Final {
				c.finish(session, Event{Kind: EventFinal, Transcript: strings.TrimSpace(rec.Text), Language: language})
				return
			}
			c.emit(Event{Kind: EventInterim, Transcript: rec.Text, Language: language})
		}
	}
}

// finish transitions back to idle and emits the terminal event unless
// the session was already superseded by StopListening or a new start.
func (c *Controller) finish(session int, ev Event) {
	c.mu.Lock()
	if c.session != session {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.cancel = nil
	c.mu.Unlock()
	c.emit(ev)
}

// StopListening ends the current session, if any. Safe to call in any
// state.
func (c *Controller) StopListening() {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	cancel := c.cancel
	c.cancel = nil
	// Invalidate the running session goroutine so it cannot emit a
	// second terminal event.
	c.session++
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.emit(Event{Kind: EventEnded})
}

// Speak renders text aloud, preempting any in-progress speech. Without
// a synthesizer it is a no-op.
func (c *Controller) Speak(ctx context.Context, text, language string) error {
	c.mu.Lock()
	synth := c.synth
	c.mu.Unlock()
	if synth == nil || text == "" {
		return nil
	}

	synth.Stop()
	c.mu.Lock()
	c.state = StateSpeaking
	c.mu.Unlock()

	err := synth.Speak(ctx, text, language)

	c.mu.Lock()
	if c.state == StateSpeaking {
		c.state = StateIdle
	}
	c.mu.Unlock()
	return err
}

// StopSpeaking interrupts playback, if any.
func (c *Controller) StopSpeaking() {
	c.mu.Lock()
	synth := c.synth
	if c.state == StateSpeaking {
		c.state = StateIdle
	}
	c.mu.Unlock()
	if synth != nil {
		synth.Stop()
	}
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event dropped", "kind", string(ev.Kind))
	}
}
