package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"karebot/internal/domain"
	"karebot/internal/language"
	"karebot/internal/observability"
	"karebot/internal/storage"
	"karebot/internal/voice"
)

// apologyReply is appended when a send cycle fails unexpectedly.
const apologyReply = "Sorry, I encountered an error. Please try again."

// ErrBusy is returned when a send arrives while another one is still
// being processed. The rejected send appends nothing.
var ErrBusy = errors.New("chat: a message is already being processed")

// Sink receives pipeline notifications. Implementations must not block.
type Sink interface {
	TurnAppended(conversationID string, turn domain.Turn)
	LanguageDetected(tag language.Tag)
	HistoryChanged()
}

// NoopSink ignores all notifications.
type NoopSink struct{}

func (NoopSink) TurnAppended(string, domain.Turn) {}
func (NoopSink) LanguageDetected(language.Tag)    {}
func (NoopSink) HistoryChanged()                  {}

// LastMessage is the most recent bot reply in speakable form.
type LastMessage struct {
	Text     string
	Language language.Tag
}

// ServiceConfig wires the pipeline's collaborators.
type ServiceConfig struct {
	Store   storage.Store
	Router  *Router
	Voice   *voice.Controller
	Sink    Sink
	Logger  observability.Logger
	Metrics *observability.Metrics
}

// Service runs the send pipeline: detect language, append the user
// turn, route to a strategy, append the reply. One send at a time.
type Service struct {
	store   storage.Store
	router  *Router
	voice   *voice.Controller
	sink    Sink
	log     observability.Logger
	metrics *observability.Metrics

	processing atomic.Bool

	mu       sync.Mutex
	last     *LastMessage
	language language.Tag
}

// NewService creates the pipeline service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Sink == nil {
		cfg.Sink = NoopSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.DefaultConfig())
	}
	return &Service{
		store:    cfg.Store,
		router:   cfg.Router,
		voice:    cfg.Voice,
		sink:     cfg.Sink,
		log:      cfg.Logger.WithComponent("chat"),
		metrics:  cfg.Metrics,
		language: language.English,
	}
}

// Send processes one user message and returns the reply turn. A blank
// message is a no-op. While a send is in flight further sends return
// ErrBusy without appending anything.
func (s *Service) Send(ctx context.Context, text string) (domain.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Turn{}, nil
	}
	if !s.processing.CompareAndSwap(false, true) {
		return domain.Turn{}, ErrBusy
	}
	defer func() {
		s.processing.Store(false)
		s.sink.HistoryChanged()
	}()

	tag := language.Detect(text)
	s.mu.Lock()
	s.language = tag
	s.mu.Unlock()
	s.sink.LanguageDetected(tag)
	s.metrics.RecordLanguageDetection(string(tag))

	active, err := s.store.ActiveConversation(ctx)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("load active conversation: %w", err)
	}

	userTurn := domain.Turn{Role: domain.RoleUser, Type: domain.TurnText, Content: text}
	conv, err := s.store.AppendTurn(ctx, userTurn)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("append user turn: %w", err)
	}
	s.sink.TurnAppended(conv.ID, conv.Turns[len(conv.Turns)-1])

	q := Query{
		Text:      text,
		Lower:     strings.ToLower(text),
		Language:  tag,
		SessionID: active.ID,
	}
	reply, strategy := s.route(ctx, q)

	conv, err = s.store.AppendTurn(ctx, reply)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("append reply turn: %w", err)
	}
	appended := conv.Turns[len(conv.Turns)-1]
	s.sink.TurnAppended(conv.ID, appended)
	s.metrics.RecordChatTurn(strategy)
	s.log.InfoContext(ctx, "reply appended", "strategy", strategy, "language", string(tag), "conversation", conv.ID)

	s.recordLast(appended, tag)
	s.autoSpeak(ctx)

	return appended, nil
}

// route runs the router and converts panics and routing failures into
// the apologetic reply.
func (s *Service) route(ctx context.Context, q Query) (reply domain.Turn, strategy string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "strategy panicked", "panic", fmt.Sprint(r))
			reply = apologyTurn()
			strategy = "error"
		}
	}()

	reply, strategy, err := s.router.Route(ctx, q)
	if err != nil {
		s.log.ErrorContext(ctx, "routing failed", "error", err)
		return apologyTurn(), "error"
	}
	return reply, strategy
}

func apologyTurn() domain.Turn {
	return domain.Turn{Role: domain.RoleBot, Type: domain.TurnText, Content: apologyReply}
}

// recordLast keeps the speakable form of the newest bot reply.
func (s *Service) recordLast(turn domain.Turn, tag language.Tag) {
	if turn.Role != domain.RoleBot {
		return
	}
	if turn.DetectedLanguage != "" {
		tag = language.Tag(turn.DetectedLanguage)
	}
	text := SpeechText(turn.Content)
	if turn.Type == domain.TurnNews {
		n := len(turn.News)
		noun := "articles"
		if n == 1 {
			noun = "article"
		}
		text = fmt.Sprintf("%s. Found %d news %s.", text, n, noun)
	}
	s.mu.Lock()
	s.last = &LastMessage{Text: text, Language: tag}
	s.mu.Unlock()
}

// autoSpeak voices the last reply when the voiceOutput setting is on.
func (s *Service) autoSpeak(ctx context.Context) {
	if s.voice == nil {
		return
	}
	settings, err := s.store.Settings(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "load settings for auto speak", "error", err)
		return
	}
	if !settings.VoiceOutput {
		return
	}
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return
	}
	if err := s.voice.Speak(ctx, last.Text, string(last.Language)); err != nil {
		s.log.WarnContext(ctx, "auto speak failed", "error", err)
	}
}

// Last returns the most recent bot reply in speakable form, or false
// if no reply has been produced yet.
func (s *Service) Last() (LastMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return LastMessage{}, false
	}
	return *s.last, true
}

// ReplayLast speaks the most recent bot reply again. No reply yet, or
// no voice controller, is a no-op.
func (s *Service) ReplayLast(ctx context.Context) error {
	last, ok := s.Last()
	if !ok || s.voice == nil {
		return nil
	}
	return s.voice.Speak(ctx, last.Text, string(last.Language))
}

// Language returns the language of the exchange in progress.
func (s *Service) Language() language.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}
