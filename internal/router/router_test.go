package router_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/policychat/internal/cache"
	"github.com/flemzord/policychat/internal/provider"
	"github.com/flemzord/policychat/internal/retrieval"
	"github.com/flemzord/policychat/internal/retrieval/retrievaltest"
	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/router/routertest"
	"github.com/flemzord/policychat/internal/session"
	"github.com/flemzord/policychat/internal/store"
	"github.com/flemzord/policychat/internal/store/storetest"
	"github.com/flemzord/policychat/internal/telemetry"
	"github.com/flemzord/policychat/modules/store/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var labels = map[string]string{
	"Hello":                 "GREETING",
	"what are cookies?":     "QUERY",
	"What are cookies":      "QUERY",
	"explain your cookies":  "QUERY",
	"how long is data kept": "QUERY",
	"tell me more":          "FOLLOWUP",
	"bye":                   "GOODBYE",
	"asdf qwerty":           "UNCLEAR",
}

type harness struct {
	router    *router.Router
	gen       *routertest.ScriptedGenerator
	retriever *retrievaltest.MockRetriever
	sessions  *session.Manager
	cache     *cache.Cache
	store     store.Store
	metrics   *telemetry.Metrics
	spans     *tracetest.SpanRecorder
}

func newHarness(t *testing.T, opts ...func(*router.Config)) *harness {
	t.Helper()
	return newHarnessWithStore(t, memory.New(time.Minute), opts...)
}

func newHarnessWithStore(t *testing.T, s store.Store, opts ...func(*router.Config)) *harness {
	t.Helper()

	h := &harness{
		gen:       &routertest.ScriptedGenerator{Classify: routertest.IntentByUtterance(labels)},
		retriever: &retrievaltest.MockRetriever{},
		store:     s,
		metrics:   telemetry.NewMetrics(),
		spans:     tracetest.NewSpanRecorder(),
	}

	var err error
	h.sessions, err = session.NewManager(session.Config{Store: s, TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	h.cache, err = cache.New(cache.Config{Store: s, Judge: h.gen, TTL: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	cfg := router.Config{
		Sessions:  h.sessions,
		Cache:     h.cache,
		Retriever: h.retriever,
		Generator: h.gen,
		Metrics:   h.metrics,
		Tracer:    tp.Tracer("test"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.router, err = router.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) start(t *testing.T) string {
	t.Helper()
	id, err := h.router.StartSession(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (h *harness) turn(t *testing.T, id, text string) router.TurnResult {
	t.Helper()
	res, err := h.router.HandleTurn(context.Background(), id, text)
	if err != nil {
		t.Fatalf("HandleTurn(%q): %v", text, err)
	}
	return res
}

func (h *harness) cached(t *testing.T, id string) int {
	t.Helper()
	n, err := h.cache.Len(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := router.New(router.Config{}); err == nil {
		t.Fatal("New with no dependencies succeeded")
	}
}

func TestHandleTurn_Greeting(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)

	res := h.turn(t, id, "Hello")
	if res.Intent != router.IntentGreeting || res.Cached || res.EndSession {
		t.Fatalf("result = %+v", res)
	}
	if res.Response != routertest.DefaultAnswer {
		t.Errorf("response = %q", res.Response)
	}
	if h.gen.JudgeCalls() != 0 || len(h.retriever.Calls()) != 0 {
		t.Errorf("greeting consulted cache or retriever: judge=%d search=%d", h.gen.JudgeCalls(), len(h.retriever.Calls()))
	}
	if len(h.gen.Answers()) != 1 {
		t.Errorf("answers = %d, want 1", len(h.gen.Answers()))
	}
	if n := h.cached(t, id); n != 0 {
		t.Errorf("greeting cached: %d entries", n)
	}
}

func TestHandleTurn_QueryColdCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)

	res := h.turn(t, id, "what are cookies?")
	if res.Intent != router.IntentQuery || res.Cached {
		t.Fatalf("result = %+v", res)
	}
	if h.gen.JudgeCalls() != 0 {
		t.Errorf("similarity judge called on empty cache")
	}
	calls := h.retriever.Calls()
	if len(calls) != 1 || calls[0].Limit != router.DefaultQueryResults || calls[0].Query != "what are cookies?" {
		t.Errorf("search calls = %+v", calls)
	}
	answers := h.gen.Answers()
	if len(answers) != 1 || !strings.Contains(answers[0].Prompt, "Context 3: policy passage") {
		t.Errorf("answer prompt missing context: %+v", answers)
	}
	got, ok, err := h.cache.LookupExact(context.Background(), id, "what are cookies?")
	if err != nil || !ok || got != res.Response {
		t.Errorf("answer not cached: (%q, %v, %v)", got, ok, err)
	}
}

func TestHandleTurn_ExactRepeatServedFromCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)

	first := h.turn(t, id, "what are cookies?")
	second := h.turn(t, id, "What are cookies")

	if !second.Cached || second.Response != first.Response || second.Intent != router.IntentQuery {
		t.Fatalf("second = %+v, first = %+v", second, first)
	}
	if len(h.retriever.Calls()) != 1 || len(h.gen.Answers()) != 1 {
		t.Errorf("cache hit still searched or generated: search=%d answers=%d", len(h.retriever.Calls()), len(h.gen.Answers()))
	}
	if h.gen.JudgeCalls() != 0 {
		t.Errorf("exact hit consulted the judge")
	}
	if got := testutil.ToFloat64(h.metrics.CacheLookups.WithLabelValues("exact", "hit")); got != 1 {
		t.Errorf("exact hits metric = %v", got)
	}
}

func TestHandleTurn_ParaphraseServedBySimilarity(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.gen.Judge = func(prompt string) (string, error) {
		if !strings.Contains(prompt, "1. what are cookies?") || !strings.Contains(prompt, "explain your cookies") {
			t.Errorf("judge prompt = %q", prompt)
		}
		return "1", nil
	}
	id := h.start(t)

	first := h.turn(t, id, "what are cookies?")
	second := h.turn(t, id, "explain your cookies")

	if !second.Cached || second.Response != first.Response {
		t.Fatalf("second = %+v", second)
	}
	if h.gen.JudgeCalls() != 1 {
		t.Errorf("judge calls = %d, want 1", h.gen.JudgeCalls())
	}
	if len(h.gen.Answers()) != 1 || len(h.retriever.Calls()) != 1 {
		t.Errorf("similarity hit still generated")
	}
}

func TestHandleTurn_Followup(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	detailed := "Sure, here is more detail: we use session cookies, preference cookies and analytics cookies."
	h.gen.Answer = func(_ context.Context, req provider.TextRequest) (string, error) {
		if strings.Contains(req.Prompt, "MORE DETAILS") {
			return detailed, nil
		}
		return routertest.DefaultAnswer, nil
	}
	id := h.start(t)

	h.turn(t, id, "what are cookies?")
	res := h.turn(t, id, "tell me more")

	if res.Intent != router.IntentFollowup || res.Cached || res.Response != detailed {
		t.Fatalf("result = %+v", res)
	}
	calls := h.retriever.Calls()
	last := calls[len(calls)-1]
	wantQuery := "what are cookies? - provide more detailed information and additional context"
	if last.Query != wantQuery || last.Limit != router.DefaultFollowupResults {
		t.Errorf("followup search = %+v", last)
	}
	if h.gen.JudgeCalls() != 0 {
		t.Errorf("judge calls = %d, want 0 for a followup", h.gen.JudgeCalls())
	}
	answers := h.gen.Answers()
	if !strings.Contains(answers[len(answers)-1].Prompt, `"what are cookies?"`) {
		t.Errorf("followup prompt does not cite previous question")
	}
	if got, ok, _ := h.cache.LookupExact(context.Background(), id, wantQuery); !ok || got != detailed {
		t.Errorf("followup not cached under expanded query: %q %v", got, ok)
	}
	if n := h.cached(t, id); n != 2 {
		t.Errorf("cache entries = %d, want 2", n)
	}
}

func TestHandleTurn_FollowupNotServedByEarlierAnswer(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	detailed := "Sure, here is more detail: we use session cookies, preference cookies and analytics cookies."
	h.gen.Answer = func(_ context.Context, req provider.TextRequest) (string, error) {
		if strings.Contains(req.Prompt, "MORE DETAILS") {
			return detailed, nil
		}
		return routertest.DefaultAnswer, nil
	}
	// A judge that considers anything about cookies a match.
	h.gen.Judge = func(prompt string) (string, error) {
		if strings.Contains(prompt, "New question: what are cookies?") {
			return "1", nil
		}
		return "NONE", nil
	}
	id := h.start(t)

	h.turn(t, id, "what are cookies?")
	res := h.turn(t, id, "tell me more")

	if res.Intent != router.IntentFollowup || res.Cached || res.Response != detailed {
		t.Fatalf("result = %+v", res)
	}
	if h.gen.JudgeCalls() != 0 {
		t.Errorf("judge calls = %d, want 0", h.gen.JudgeCalls())
	}
	calls := h.retriever.Calls()
	if len(calls) != 2 || calls[1].Limit != router.DefaultFollowupResults {
		t.Errorf("search calls = %+v", calls)
	}
}

func TestHandleTurn_FollowupExactRepeatServedFromCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)

	h.turn(t, id, "what are cookies?")
	first := h.turn(t, id, "tell me more")
	h.turn(t, id, "what are cookies?")
	second := h.turn(t, id, "tell me more")

	if first.Cached || !second.Cached || second.Response != first.Response || second.Intent != router.IntentFollowup {
		t.Fatalf("first = %+v, second = %+v", first, second)
	}
	if len(h.retriever.Calls()) != 2 {
		t.Errorf("search calls = %d, want 2", len(h.retriever.Calls()))
	}
}

func TestHandleTurn_RepeatedFollowupStaysFollowup(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)

	h.turn(t, id, "what are cookies?")
	h.turn(t, id, "tell me more")
	res := h.turn(t, id, "tell me more")

	if res.Intent != router.IntentFollowup {
		t.Fatalf("intent = %s, want followup", res.Intent)
	}
	calls := h.retriever.Calls()
	last := calls[len(calls)-1]
	if last.Query != "tell me more" || last.Limit != router.DefaultFollowupResults {
		t.Errorf("repeated followup search = %+v", last)
	}
	answers := h.gen.Answers()
	if !strings.Contains(answers[len(answers)-1].Prompt, "MORE DETAILS") {
		t.Errorf("repeated followup did not use the followup prompt")
	}
}

func TestHandleTurn_FollowupWithoutHistoryDegradesToQuery(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)

	res := h.turn(t, id, "tell me more")
	if res.Intent != router.IntentQuery {
		t.Fatalf("intent = %s, want query", res.Intent)
	}
	calls := h.retriever.Calls()
	if len(calls) != 1 || calls[0].Limit != router.DefaultQueryResults || calls[0].Query != "tell me more" {
		t.Errorf("search calls = %+v", calls)
	}
}

func TestHandleTurn_GoodbyeThenEndSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	id := h.start(t)

	h.turn(t, id, "what are cookies?")
	res := h.turn(t, id, "bye")
	if res.Intent != router.IntentGoodbye || !res.EndSession || res.Cached {
		t.Fatalf("result = %+v", res)
	}
	if n := h.cached(t, id); n != 1 {
		t.Errorf("cache entries = %d, want only the query", n)
	}

	if err := h.router.EndSession(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := h.sessions.Info(ctx, id); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Info after end = %v", err)
	}
	keys, err := h.store.Keys(ctx, store.SessionKey(id))
	if err != nil || len(keys) != 0 {
		t.Errorf("session keys left: %v (%v)", keys, err)
	}
	if n := h.cached(t, id); n != 0 {
		t.Errorf("cache entries after end = %d", n)
	}
	if err := h.router.EndSession(ctx, id); err != nil {
		t.Errorf("second EndSession = %v", err)
	}
	if _, err := h.router.HandleTurn(ctx, id, "hello again"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("turn after end = %v, want session.ErrNotFound", err)
	}
}

func TestHandleTurn_NonCacheableIntentsNeverCached(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("This is a long and friendly reply. ", 5)
	h := newHarness(t)
	h.gen.Answer = func(context.Context, provider.TextRequest) (string, error) { return long, nil }
	id := h.start(t)

	for _, text := range []string{"Hello", "asdf qwerty", "something unmapped", "bye"} {
		h.turn(t, id, text)
	}
	if n := h.cached(t, id); n != 0 {
		t.Errorf("cache entries = %d, want 0", n)
	}
}

func TestHandleTurn_ClassificationFailureIsUnclear(t *testing.T) {
	t.Parallel()

	for name, classify := range map[string]func(string) (string, error){
		"error":     func(string) (string, error) { return "", provider.ErrGeneration },
		"malformed": func(string) (string, error) { return "I cannot tell", nil },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.gen.Classify = classify
			id := h.start(t)

			res := h.turn(t, id, "what are cookies?")
			if res.Intent != router.IntentUnclear {
				t.Fatalf("intent = %s, want unclear", res.Intent)
			}
			answers := h.gen.Answers()
			if len(answers) != 1 || !strings.Contains(answers[0].Prompt, `"what are cookies?"`) {
				t.Errorf("clarification does not reference input: %+v", answers)
			}
		})
	}
}

func TestHandleTurn_UnclearGenerationFailureUsesFixedReply(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.gen.Answer = func(context.Context, provider.TextRequest) (string, error) {
		return "", errors.New("upstream 500")
	}
	id := h.start(t)

	res := h.turn(t, id, "asdf qwerty")
	want, _ := router.Fallback(router.IntentUnclear, provider.ErrGeneration)
	if res.Response != want {
		t.Errorf("response = %q, want %q", res.Response, want)
	}
}

func TestHandleTurn_RetrievalFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.retriever.SearchFunc = func(context.Context, string, int) ([]retrieval.Passage, error) {
		return nil, errors.New("index offline")
	}
	id := h.start(t)

	res := h.turn(t, id, "what are cookies?")
	want, _ := router.Fallback(router.IntentQuery, retrieval.ErrRetrieval)
	if res.Response != want {
		t.Errorf("response = %q, want %q", res.Response, want)
	}
	if len(h.gen.Answers()) != 0 {
		t.Error("generator called after retrieval failure")
	}
	if n := h.cached(t, id); n != 0 {
		t.Errorf("failure reply cached")
	}
	if got := testutil.ToFloat64(h.metrics.Fallbacks.WithLabelValues("retrieval")); got != 1 {
		t.Errorf("retrieval fallbacks = %v", got)
	}
}

func TestHandleTurn_GenerationFailureNotRetriedNorCached(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.gen.Answer = func(context.Context, provider.TextRequest) (string, error) {
		return "", provider.ErrGeneration
	}
	id := h.start(t)

	res := h.turn(t, id, "what are cookies?")
	want, _ := router.Fallback(router.IntentQuery, provider.ErrGeneration)
	if res.Response != want {
		t.Errorf("response = %q", res.Response)
	}
	if len(h.gen.Answers()) != 1 {
		t.Errorf("answers = %d, want exactly 1", len(h.gen.Answers()))
	}
	if n := h.cached(t, id); n != 0 {
		t.Errorf("failure reply cached")
	}
}

func TestHandleTurn_GenerationTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(c *router.Config) { c.GenerationTimeout = 20 * time.Millisecond })
	h.gen.Answer = func(ctx context.Context, _ provider.TextRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	id := h.start(t)

	start := time.Now()
	res := h.turn(t, id, "what are cookies?")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("turn took %v", elapsed)
	}
	want, _ := router.Fallback(router.IntentQuery, provider.ErrGeneration)
	if res.Response != want {
		t.Errorf("response = %q", res.Response)
	}
}

func TestHandleTurn_NoRelevantContext(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.retriever.SearchFunc = func(_ context.Context, _ string, limit int) ([]retrieval.Passage, error) {
		return []retrieval.Passage{{Content: "unrelated", Score: 1.5}, {Content: "far", Score: 1.9}}, nil
	}
	id := h.start(t)

	res := h.turn(t, id, "how long is data kept")
	want, _ := router.Fallback(router.IntentQuery, router.ErrNoContext)
	if res.Response != want {
		t.Errorf("response = %q", res.Response)
	}
	if len(h.gen.Answers()) != 0 {
		t.Error("generator called without context")
	}
	if n := h.cached(t, id); n != 1 {
		t.Errorf("no-context reply cached %d times, want 1", n)
	}
}

func TestHandleTurn_ShortAnswerNotCached(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.gen.Answer = func(context.Context, provider.TextRequest) (string, error) { return "Yes, we do.", nil }
	id := h.start(t)

	h.turn(t, id, "what are cookies?")
	if n := h.cached(t, id); n != 0 {
		t.Errorf("short answer cached")
	}
}

func TestHandleTurn_StripsGreetingFromAnswers(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.gen.Answer = func(context.Context, provider.TextRequest) (string, error) {
		return "Hi there! " + routertest.DefaultAnswer, nil
	}
	id := h.start(t)

	if res := h.turn(t, id, "what are cookies?"); res.Response != routertest.DefaultAnswer {
		t.Errorf("response = %q", res.Response)
	}
}

func TestHandleTurn_AcknowledgeCached(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(c *router.Config) { c.AcknowledgeCached = true })
	id := h.start(t)

	h.turn(t, id, "what are cookies?")
	res := h.turn(t, id, "what are cookies?")
	if res.Response != "As I mentioned earlier, "+routertest.DefaultAnswer {
		t.Errorf("response = %q", res.Response)
	}
}

func TestHandleTurn_EngagementPrompts(t *testing.T) {
	t.Parallel()

	long := routertest.DefaultAnswer + " We also use them to keep you signed in between visits to our site."
	h := newHarness(t, func(c *router.Config) { c.EngagementPrompts = true })
	h.gen.Answer = func(_ context.Context, req provider.TextRequest) (string, error) {
		if strings.Contains(req.Prompt, "how long is data kept") {
			return "We keep it for one year at most, then delete it.", nil
		}
		return long, nil
	}
	id := h.start(t)

	res := h.turn(t, id, "what are cookies?")
	rest, ok := strings.CutPrefix(res.Response, long+"\n\n")
	if !ok || !strings.HasSuffix(rest, "?") {
		t.Fatalf("response = %q", res.Response)
	}
	if again := h.turn(t, id, "what are cookies?"); !again.Cached || again.Response != res.Response {
		t.Errorf("cached response = %q", again.Response)
	}

	short := h.turn(t, id, "how long is data kept")
	if short.Response != "We keep it for one year at most, then delete it." {
		t.Errorf("short answer got an engagement question: %q", short.Response)
	}
}

func TestHandleTurn_RecordsHistory(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)

	h.turn(t, id, "Hello")
	h.turn(t, id, "what are cookies?")

	hist, err := h.sessions.History(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 4 {
		t.Fatalf("history length = %d, want 4", len(hist))
	}
	if hist[0].Role != session.RoleUser || hist[0].Message != "Hello" || hist[3].Role != session.RoleAssistant {
		t.Errorf("history = %+v", hist)
	}
	info, err := h.sessions.Info(context.Background(), id)
	if err != nil || info.QueryCount != 2 {
		t.Errorf("info = %+v, %v", info, err)
	}
}

func TestHandleTurn_EmptyUtterance(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)
	if _, err := h.router.HandleTurn(context.Background(), id, "  \n"); !errors.Is(err, router.ErrEmptyUtterance) {
		t.Errorf("err = %v", err)
	}
}

func TestHandleTurn_StoreUnavailable(t *testing.T) {
	t.Parallel()

	s := storetest.NewUnavailable(memory.New(time.Minute))
	s.Down.Store(false)
	h := newHarnessWithStore(t, s)
	id := h.start(t)

	s.Down.Store(true)
	res, err := h.router.HandleTurn(context.Background(), id, "what are cookies?")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("err = %v, want store.ErrUnavailable", err)
	}
	want, _ := router.Fallback(router.IntentQuery, store.ErrUnavailable)
	if res.Response != want {
		t.Errorf("response = %q", res.Response)
	}
	if h.gen.ClassifyCalls() != 0 {
		t.Error("classified a turn with the store down")
	}
}

func TestHandleTurn_ConcurrentTurnsCountEveryTouch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)

	const n = 16
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.router.HandleTurn(context.Background(), id, "what are cookies?"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	info, err := h.sessions.Info(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if info.QueryCount != n {
		t.Errorf("query count = %d, want %d", info.QueryCount, n)
	}
	if c := h.cached(t, id); c != 1 {
		t.Errorf("cache entries = %d, want 1", c)
	}
}

func TestHandleTurn_Tracing(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	id := h.start(t)
	h.turn(t, id, "what are cookies?")

	names := map[string]bool{}
	for _, s := range h.spans.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{"router.HandleTurn", "router.classify", "retriever.Search", "generator.GenerateText"} {
		if !names[want] {
			t.Errorf("span %q not recorded (got %v)", want, names)
		}
	}
}
