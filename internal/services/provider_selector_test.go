package services

import (
	"campusbot/internal/health"
	"campusbot/internal/providers"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeAdapter struct {
	kind  providers.Kind
	reply string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls []providers.Request
	cfgs  []providers.Config
}

func (f *fakeAdapter) Kind() providers.Kind { return f.kind }

func (f *fakeAdapter) Generate(ctx context.Context, req providers.Request, cfg providers.Config) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.cfgs = append(f.cfgs, cfg)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", &providers.UpstreamError{Provider: f.kind, Kind: providers.ErrTimeout, Message: "deadline exceeded", Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeAdapter) TestConnection(ctx context.Context, cfg providers.Config) *providers.TestResult {
	f.mu.Lock()
	f.cfgs = append(f.cfgs, cfg)
	f.mu.Unlock()
	return &providers.TestResult{Success: true, Message: "ok"}
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func upstream(kind providers.Kind, errKind providers.ErrorKind) error {
	return &providers.UpstreamError{Provider: kind, Kind: errKind, Message: string(errKind)}
}

type fakeSet struct {
	ollama, openai, gemini *fakeAdapter
}

func newFakeSet() *fakeSet {
	return &fakeSet{
		ollama: &fakeAdapter{kind: providers.KindOllama, reply: "from ollama"},
		openai: &fakeAdapter{kind: providers.KindOpenAI, reply: "from openai"},
		gemini: &fakeAdapter{kind: providers.KindGemini, reply: "from gemini"},
	}
}

func (f *fakeSet) registry() *providers.Registry {
	return providers.NewRegistry(f.ollama, f.openai, f.gemini)
}

func testSettings(sel providers.Selection) EffectiveSettings {
	return EffectiveSettings{
		Selection:   sel,
		HostedOrder: []providers.Kind{providers.KindOpenAI, providers.KindGemini},
		Timeout:     time.Second,
		Configs: map[providers.Kind]providers.Config{
			providers.KindOllama: {Kind: providers.KindOllama, BaseURL: "http://ollama.test", Model: "gemma:7b", KeySource: providers.SourceServer},
			providers.KindOpenAI: {Kind: providers.KindOpenAI, APIKey: "sk-req", Model: "gpt-4", KeySource: providers.SourceRequest},
			providers.KindGemini: {Kind: providers.KindGemini, APIKey: "g-req", Model: "gemini", KeySource: providers.SourceRequest},
		},
	}
}

var testRequest = providers.Request{System: "be nice", Prompt: "hello"}

func TestExecute_AutoFallsBackToNextCandidate(t *testing.T) {
	fakes := newFakeSet()
	fakes.ollama.err = upstream(providers.KindOllama, providers.ErrUnreachable)
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	res, err := sel.Execute(context.Background(), testSettings(providers.SelectionAuto), testRequest)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Provider != providers.KindOpenAI || res.Text != "from openai" {
		t.Errorf("got %s/%q, want openai reply", res.Provider, res.Text)
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Provider != providers.KindOllama || res.Attempts[0].Kind != providers.ErrUnreachable {
		t.Errorf("unexpected attempts: %+v", res.Attempts)
	}
	if fakes.gemini.callCount() != 0 {
		t.Error("gemini should not be called after openai succeeded")
	}
}

func TestExecute_AutoLocalFirst(t *testing.T) {
	fakes := newFakeSet()
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	res, err := sel.Execute(context.Background(), testSettings(providers.SelectionAuto), testRequest)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Provider != providers.KindOllama {
		t.Errorf("expected ollama first, got %s", res.Provider)
	}
	if fakes.openai.callCount()+fakes.gemini.callCount() != 0 {
		t.Error("hosted providers should not be called")
	}
}

func TestExecute_AutoExhaustionListsEveryAttempt(t *testing.T) {
	fakes := newFakeSet()
	fakes.ollama.err = upstream(providers.KindOllama, providers.ErrUnreachable)
	fakes.openai.err = upstream(providers.KindOpenAI, providers.ErrAuthFailure)
	fakes.gemini.err = upstream(providers.KindGemini, providers.ErrRateLimited)
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	_, err := sel.Execute(context.Background(), testSettings(providers.SelectionAuto), testRequest)

	var composite *providers.CompositeError
	if !errors.As(err, &composite) {
		t.Fatalf("expected CompositeError, got %v", err)
	}
	want := []struct {
		provider providers.Kind
		kind     providers.ErrorKind
	}{
		{providers.KindOllama, providers.ErrUnreachable},
		{providers.KindOpenAI, providers.ErrAuthFailure},
		{providers.KindGemini, providers.ErrRateLimited},
	}
	if len(composite.Attempts) != len(want) {
		t.Fatalf("expected %d attempts, got %d", len(want), len(composite.Attempts))
	}
	for i, w := range want {
		if composite.Attempts[i].Provider != w.provider || composite.Attempts[i].Kind != w.kind {
			t.Errorf("attempt %d = %+v, want %s/%s", i, composite.Attempts[i], w.provider, w.kind)
		}
	}
}

func TestExecute_AutoNoUsableProvider(t *testing.T) {
	fakes := newFakeSet()
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	settings := testSettings(providers.SelectionAuto)
	settings.Configs = map[providers.Kind]providers.Config{}

	_, err := sel.Execute(context.Background(), settings, testRequest)
	var composite *providers.CompositeError
	if !errors.As(err, &composite) {
		t.Fatalf("expected CompositeError, got %v", err)
	}
	if len(composite.Attempts) != 0 {
		t.Errorf("expected no attempts, got %d", len(composite.Attempts))
	}
}

func TestExecute_AutoSkipsUnusable(t *testing.T) {
	fakes := newFakeSet()
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	settings := testSettings(providers.SelectionAuto)
	settings.Configs[providers.KindOllama] = providers.Config{Kind: providers.KindOllama, BaseURL: ""}
	settings.Configs[providers.KindOpenAI] = providers.Config{Kind: providers.KindOpenAI}

	res, err := sel.Execute(context.Background(), settings, testRequest)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Provider != providers.KindGemini {
		t.Errorf("expected gemini, got %s", res.Provider)
	}
	if fakes.ollama.callCount()+fakes.openai.callCount() != 0 {
		t.Error("unusable providers must not be called")
	}
}

func TestExecute_HostedOrderRespected(t *testing.T) {
	fakes := newFakeSet()
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	settings := testSettings(providers.SelectionAuto)
	settings.Configs[providers.KindOllama] = providers.Config{Kind: providers.KindOllama}
	settings.HostedOrder = []providers.Kind{providers.KindGemini, providers.KindOpenAI}

	res, err := sel.Execute(context.Background(), settings, testRequest)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Provider != providers.KindGemini {
		t.Errorf("expected gemini first, got %s", res.Provider)
	}
}

func TestExecute_ExplicitHostedWithoutRequestKey(t *testing.T) {
	fakes := newFakeSet()
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	settings := testSettings(providers.Selection(providers.KindOpenAI))
	settings.Configs[providers.KindOpenAI] = providers.Config{Kind: providers.KindOpenAI, APIKey: "sk-server", KeySource: providers.SourceServer}

	_, err := sel.Execute(context.Background(), settings, testRequest)
	var cfgErr *providers.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Provider != providers.KindOpenAI {
		t.Errorf("expected openai in error, got %s", cfgErr.Provider)
	}
	if fakes.openai.callCount()+fakes.ollama.callCount()+fakes.gemini.callCount() != 0 {
		t.Error("no adapter should be called for a config error")
	}
}

func TestExecute_ExplicitFailureDoesNotFallBack(t *testing.T) {
	fakes := newFakeSet()
	fakes.gemini.err = upstream(providers.KindGemini, providers.ErrAuthFailure)
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	_, err := sel.Execute(context.Background(), testSettings(providers.Selection(providers.KindGemini)), testRequest)
	var composite *providers.CompositeError
	if !errors.As(err, &composite) {
		t.Fatalf("expected CompositeError, got %v", err)
	}
	if len(composite.Attempts) != 1 {
		t.Errorf("expected a single attempt, got %d", len(composite.Attempts))
	}
	if fakes.ollama.callCount()+fakes.openai.callCount() != 0 {
		t.Error("explicit selection must not fall back")
	}
}

func TestExecute_ExplicitLocalMissingURL(t *testing.T) {
	fakes := newFakeSet()
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	settings := testSettings(providers.Selection(providers.KindOllama))
	settings.Configs[providers.KindOllama] = providers.Config{Kind: providers.KindOllama, BaseURL: "not a url"}

	_, err := sel.Execute(context.Background(), settings, testRequest)
	var cfgErr *providers.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestExecute_PerCandidateTimeout(t *testing.T) {
	fakes := newFakeSet()
	fakes.ollama.delay = 2 * time.Second
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	settings := testSettings(providers.SelectionAuto)
	settings.Timeout = 50 * time.Millisecond

	start := time.Now()
	res, err := sel.Execute(context.Background(), settings, testRequest)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("candidate deadline was not applied")
	}
	if res.Provider != providers.KindOpenAI {
		t.Errorf("expected openai after ollama timeout, got %s", res.Provider)
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Kind != providers.ErrTimeout {
		t.Errorf("expected one timeout attempt, got %+v", res.Attempts)
	}
}

func TestExecute_CancelledParentStops(t *testing.T) {
	fakes := newFakeSet()
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sel.Execute(ctx, testSettings(providers.SelectionAuto), testRequest)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fakes.ollama.callCount() != 0 {
		t.Error("no adapter should be called after cancellation")
	}
}

func TestExecute_HealthRecordedButNeverSkips(t *testing.T) {
	fakes := newFakeSet()
	hs := health.NewService(1, time.Hour)
	hs.MarkUnhealthy(providers.KindOllama, "down earlier")
	sel := NewProviderSelector(fakes.registry(), hs, nil)

	res, err := sel.Execute(context.Background(), testSettings(providers.SelectionAuto), testRequest)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Provider != providers.KindOllama {
		t.Errorf("unhealthy provider must still be tried first, got %s", res.Provider)
	}
	if got := hs.Get(providers.KindOllama).Status; got != health.StatusHealthy {
		t.Errorf("expected ollama healthy after success, got %s", got)
	}
}

func TestExecute_AttemptHookAndFit(t *testing.T) {
	fakes := newFakeSet()
	fakes.ollama.err = upstream(providers.KindOllama, providers.ErrUnreachable)
	sel := NewProviderSelector(fakes.registry(), nil, nil)

	settings := testSettings(providers.SelectionAuto)
	openai := settings.Configs[providers.KindOpenAI]
	openai.ContextTokens = 60
	openai.MaxTokens = 10
	settings.Configs[providers.KindOpenAI] = openai

	req := providers.Request{Prompt: "hi"}
	for i := 0; i < 10; i++ {
		req.History = append(req.History,
			providers.Message{Role: providers.RoleUser, Content: "question number something long enough"},
			providers.Message{Role: providers.RoleAssistant, Content: "answer number something long enough"},
		)
	}

	var seen []providers.Kind
	hook := WithAttemptHook(func(i int, k providers.Kind) { seen = append(seen, k) })
	if _, err := sel.Execute(context.Background(), settings, req, hook); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(seen) != 2 || seen[0] != providers.KindOllama || seen[1] != providers.KindOpenAI {
		t.Errorf("unexpected hook order: %v", seen)
	}
	if got := len(fakes.ollama.calls[0].History); got != 20 {
		t.Errorf("ollama has no context limit and should get full history, got %d", got)
	}
	if got := len(fakes.openai.calls[0].History); got >= 20 {
		t.Errorf("openai history should be trimmed, got %d", got)
	}
	if fakes.openai.calls[0].Prompt != "hi" {
		t.Error("prompt must survive trimming")
	}
}

func TestPlan_DoesNotMutateSettings(t *testing.T) {
	sel := NewProviderSelector(newFakeSet().registry(), nil, nil)
	settings := testSettings(providers.SelectionAuto)

	first, err := sel.Plan(settings)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := sel.Plan(settings)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 candidates, got %d and %d", len(first), len(second))
	}
	if len(settings.HostedOrder) != 2 {
		t.Error("Plan must not modify the hosted order")
	}
}
