package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"karebot/internal/domain"
	"karebot/internal/knowledge"
	"karebot/internal/language"
	"karebot/internal/storage"
	"karebot/internal/voice"
)

func newTestService(t *testing.T, strategies ...Strategy) (*Service, *storage.KVStore) {
	t.Helper()
	store, err := storage.NewKVStore(context.Background(), storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	if len(strategies) == 0 {
		strategies = []Strategy{
			NewConversational(time.Millisecond),
			NewNews(&fakeFetcher{}),
			NewKnowledge(&fakeKnowledgeClient{}),
			NewFallback(time.Millisecond),
		}
	}
	svc := NewService(ServiceConfig{
		Store:  store,
		Router: NewRouter(nil, strategies...),
	})
	return svc, store
}

func TestSendAppendsUserAndBotTurns(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	reply, err := svc.Send(ctx, "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Role != domain.RoleBot || reply.Content != "Hi there! What can I assist you with?" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	conv, err := store.ActiveConversation(ctx)
	if err != nil {
		t.Fatalf("active conversation: %v", err)
	}
	if len(conv.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(conv.Turns))
	}
	if conv.Turns[0].Role != domain.RoleUser || conv.Turns[0].Content != "hello" {
		t.Fatalf("unexpected user turn: %+v", conv.Turns[0])
	}
	if conv.Title != "hello" {
		t.Fatalf("title = %q", conv.Title)
	}
}

func TestSendBlankInputIsNoop(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	reply, err := svc.Send(ctx, "   \n ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Content != "" {
		t.Fatalf("expected zero turn, got %+v", reply)
	}
	conv, _ := store.ActiveConversation(ctx)
	if len(conv.Turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(conv.Turns))
	}
}

// blockingStrategy holds the pipeline open until released.
type blockingStrategy struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStrategy) Name() string { return "blocking" }

func (b *blockingStrategy) Respond(ctx context.Context, _ Query) (domain.Turn, bool, error) {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
		return domain.Turn{}, false, ctx.Err()
	}
	return domain.Turn{Role: domain.RoleBot, Type: domain.TurnText, Content: "done"}, true, nil
}

func TestSendWhileProcessingReturnsErrBusy(t *testing.T) {
	blocking := &blockingStrategy{entered: make(chan struct{}), release: make(chan struct{})}
	svc, store := newTestService(t, blocking)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := svc.Send(ctx, "slow question"); err != nil {
			t.Errorf("first send: %v", err)
		}
	}()

	<-blocking.entered
	if _, err := svc.Send(ctx, "impatient question"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(blocking.release)
	wg.Wait()

	// The rejected send appended nothing.
	conv, _ := store.ActiveConversation(ctx)
	if len(conv.Turns) != 2 {
		t.Fatalf("turns = %d, want 2 (user + bot from first send only)", len(conv.Turns))
	}
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "panicking" }
func (panickingStrategy) Respond(context.Context, Query) (domain.Turn, bool, error) {
	panic("boom")
}

func TestSendStrategyPanicAppendsApology(t *testing.T) {
	svc, _ := newTestService(t, panickingStrategy{})

	reply, err := svc.Send(context.Background(), "trigger")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Content != apologyReply {
		t.Fatalf("reply = %q, want apology", reply.Content)
	}
}

func TestSendFallsBackWhenBackendFails(t *testing.T) {
	svc, _ := newTestService(t,
		NewConversational(time.Millisecond),
		NewNews(&fakeFetcher{}),
		NewKnowledge(&fakeKnowledgeClient{available: true, err: errors.New("connection refused")}),
		NewFallback(time.Millisecond),
	)

	reply, err := svc.Send(context.Background(), "what does tuition cost")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Content != feeHelp {
		t.Fatalf("expected fee fallback, got %q", reply.Content)
	}
}

func TestSendRecordsLastMessage(t *testing.T) {
	svc, _ := newTestService(t)

	if _, ok := svc.Last(); ok {
		t.Fatal("expected no last message before first send")
	}
	if _, err := svc.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	last, ok := svc.Last()
	if !ok {
		t.Fatal("expected last message after send")
	}
	if last.Text != "Hello! How can I help you today?" {
		t.Fatalf("last text = %q", last.Text)
	}
	if last.Language != language.English {
		t.Fatalf("last language = %q", last.Language)
	}
}

func TestSendNewsTurnSpeakableForm(t *testing.T) {
	articles := []domain.Article{{Title: "A"}, {Title: "B"}}
	svc, _ := newTestService(t,
		NewNews(&fakeFetcher{articles: articles}),
		NewFallback(time.Millisecond),
	)

	if _, err := svc.Send(context.Background(), "news"); err != nil {
		t.Fatalf("send: %v", err)
	}
	last, ok := svc.Last()
	if !ok {
		t.Fatal("expected last message")
	}
	want := "Here are the latest General news:. Found 2 news articles."
	if last.Text != want {
		t.Fatalf("last text = %q, want %q", last.Text, want)
	}
}

func TestSendDetectsLanguage(t *testing.T) {
	var mu sync.Mutex
	var detected []language.Tag
	sink := &recordingSink{onLanguage: func(tag language.Tag) {
		mu.Lock()
		detected = append(detected, tag)
		mu.Unlock()
	}}

	store, err := storage.NewKVStore(context.Background(), storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	svc := NewService(ServiceConfig{
		Store:  store,
		Router: NewRouter(nil, NewFallback(time.Millisecond)),
		Sink:   sink,
	})

	if _, err := svc.Send(context.Background(), "கட்டணம் என்ன"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if svc.Language() != language.Tamil {
		t.Fatalf("language = %q, want ta", svc.Language())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(detected) != 1 || detected[0] != language.Tamil {
		t.Fatalf("sink detections = %v", detected)
	}
}

// recordingSink records pipeline notifications for assertions.
type recordingSink struct {
	mu         sync.Mutex
	appended   []domain.Turn
	history    int
	onLanguage func(language.Tag)
}

func (r *recordingSink) TurnAppended(_ string, turn domain.Turn) {
	r.mu.Lock()
	r.appended = append(r.appended, turn)
	r.mu.Unlock()
}

func (r *recordingSink) LanguageDetected(tag language.Tag) {
	if r.onLanguage != nil {
		r.onLanguage(tag)
	}
}

func (r *recordingSink) HistoryChanged() {
	r.mu.Lock()
	r.history++
	r.mu.Unlock()
}

func TestSendNotifiesSink(t *testing.T) {
	sink := &recordingSink{}
	store, err := storage.NewKVStore(context.Background(), storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	svc := NewService(ServiceConfig{
		Store:  store,
		Router: NewRouter(nil, NewFallback(time.Millisecond)),
		Sink:   sink,
	})

	if _, err := svc.Send(context.Background(), "anything"); err != nil {
		t.Fatalf("send: %v", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.appended) != 2 {
		t.Fatalf("appended notifications = %d, want 2", len(sink.appended))
	}
	if sink.appended[0].Role != domain.RoleUser || sink.appended[1].Role != domain.RoleBot {
		t.Fatalf("unexpected notification order: %+v", sink.appended)
	}
	if sink.history != 1 {
		t.Fatalf("history notifications = %d, want 1", sink.history)
	}
}

func TestReplayLastWithoutVoiceIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.ReplayLast(context.Background()); err != nil {
		t.Fatalf("replay: %v", err)
	}
}

func TestSendUsesSessionIDOfActiveConversation(t *testing.T) {
	client := &fakeKnowledgeClient{available: true, answer: knowledge.Answer{Text: "answer"}}
	svc, store := newTestService(t,
		NewKnowledge(client),
		NewFallback(time.Millisecond),
	)
	ctx := context.Background()

	conv, err := store.ActiveConversation(ctx)
	if err != nil {
		t.Fatalf("active conversation: %v", err)
	}
	if _, err := svc.Send(ctx, "question"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if client.gotSessionID != conv.ID {
		t.Fatalf("session id = %q, want %q", client.gotSessionID, conv.ID)
	}
}


type captureSynthesizer struct {
	mu     sync.Mutex
	spoken []string
}

func (c *captureSynthesizer) Speak(_ context.Context, text, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spoken = append(c.spoken, text)
	return nil
}

func (c *captureSynthesizer) Stop() {}

func TestAutoSpeakWhenVoiceOutputEnabled(t *testing.T) {
	synth := &captureSynthesizer{}
	store, err := storage.NewKVStore(context.Background(), storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	if _, err := store.SetSetting(context.Background(), domain.SettingVoiceOutput, []byte(`true`)); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	svc := NewService(ServiceConfig{
		Store:  store,
		Router: NewRouter(nil, NewConversational(time.Millisecond), NewFallback(time.Millisecond)),
		Voice:  voice.NewController(voice.Config{Synthesizer: synth}),
	})

	if _, err := svc.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	synth.mu.Lock()
	defer synth.mu.Unlock()
	if len(synth.spoken) != 1 || synth.spoken[0] != "Hello! How can I help you today?" {
		t.Fatalf("spoken = %v", synth.spoken)
	}
}

func TestNoAutoSpeakByDefault(t *testing.T) {
	synth := &captureSynthesizer{}
	store, err := storage.NewKVStore(context.Background(), storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	svc := NewService(ServiceConfig{
		Store:  store,
		Router: NewRouter(nil, NewConversational(time.Millisecond), NewFallback(time.Millisecond)),
		Voice:  voice.NewController(voice.Config{Synthesizer: synth}),
	})

	if _, err := svc.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	synth.mu.Lock()
	defer synth.mu.Unlock()
	if len(synth.spoken) != 0 {
		t.Fatalf("spoken = %v, want none", synth.spoken)
	}
}

func TestReplayLastSpeaks(t *testing.T) {
	synth := &captureSynthesizer{}
	store, err := storage.NewKVStore(context.Background(), storage.NewMemoryKV())
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}
	svc := NewService(ServiceConfig{
		Store:  store,
		Router: NewRouter(nil, NewConversational(time.Millisecond), NewFallback(time.Millisecond)),
		Voice:  voice.NewController(voice.Config{Synthesizer: synth}),
	})

	if _, err := svc.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.ReplayLast(context.Background()); err != nil {
		t.Fatalf("replay: %v", err)
	}
	synth.mu.Lock()
	defer synth.mu.Unlock()
	if len(synth.spoken) != 1 {
		t.Fatalf("spoken = %v, want exactly the replay", synth.spoken)
	}
}
