package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/policychat/internal/cache"
	"github.com/flemzord/policychat/internal/core"
	"github.com/flemzord/policychat/internal/health"
	"github.com/flemzord/policychat/internal/retrieval/retrievaltest"
	"github.com/flemzord/policychat/internal/router"
	"github.com/flemzord/policychat/internal/router/routertest"
	"github.com/flemzord/policychat/internal/session"
	"github.com/flemzord/policychat/internal/store"
	"github.com/flemzord/policychat/internal/telemetry"
	"gopkg.in/yaml.v3"
)

var labels = map[string]string{
	"Hello":             "GREETING",
	"what are cookies?": "QUERY",
	"bye":               "GOODBYE",
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newAssistant builds a Router over s with a scripted model.
func newAssistant(t *testing.T, s store.Store) *router.Router {
	t.Helper()
	gen := &routertest.ScriptedGenerator{Classify: routertest.IntentByUtterance(labels)}
	sessions, err := session.NewManager(session.Config{Store: s, TTL: time.Hour, Logger: discardLogger()})
	if err != nil {
		t.Fatal(err)
	}
	c, err := cache.New(cache.Config{Store: s, Judge: gen, TTL: time.Hour, Logger: discardLogger()})
	if err != nil {
		t.Fatal(err)
	}
	r, err := router.New(router.Config{
		Sessions:  sessions,
		Cache:     c,
		Retriever: &retrievaltest.MockRetriever{},
		Generator: gen,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

// newTestGateway returns a gateway wired to an in-memory assistant, as
// Start would leave it, without listening.
func newTestGateway(t *testing.T, s store.Store, cfg Config) *Gateway {
	t.Helper()
	cfg.defaults()
	g := &Gateway{config: cfg, logger: discardLogger(), startedAt: time.Now()}
	g.assistant = newAssistant(t, s)
	g.metrics = telemetry.NewMetrics()
	g.checker = health.NewChecker(time.Second, g.metrics)
	g.checker.Add("store", true, health.StoreProbe(s))
	g.stats = &health.StatsSource{Sessions: g.assistant.Sessions(), Store: "store.memory", Retriever: "retriever.mock"}
	return g
}

func newTestServer(t *testing.T, g *Gateway) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string, header http.Header) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func createSession(t *testing.T, baseURL string) string {
	t.Helper()
	resp := doRequest(t, http.MethodPost, baseURL+"/v1/sessions", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d", resp.StatusCode)
	}
	return decode[CreateSessionResponse](t, resp).SessionID
}

// freeAddr returns a free TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

func mustYAMLNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Content) == 0 {
		t.Fatal("empty yaml document")
	}
	return doc.Content[0]
}

func newAppContext(t *testing.T) *core.AppContext {
	t.Helper()
	return core.NewAppContext(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), t.TempDir())
}
