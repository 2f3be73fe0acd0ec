package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveGeneration("arrangement", OK, 2*time.Second)
	m.ObserveGeneration("inspiration", NoKey, 0)

	var refreshed bool
	h := m.Middleware(m.Handler(func() {
		refreshed = true
		m.SetSessions(3)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !refreshed {
		t.Fatal("refresh not called")
	}
	b, _ := io.ReadAll(rec.Body)
	body := string(b)
	for _, want := range []string{
		`sonicarch_generations_total{mode="arrangement",outcome="ok"} 1`,
		`sonicarch_generations_total{mode="inspiration",outcome="no_key"} 1`,
		`sonicarch_generation_duration_seconds_count 1`,
		`sonicarch_active_sessions 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	b, _ = io.ReadAll(rec.Body)
	if !strings.Contains(string(b), `sonicarch_http_requests_total{code="200"} 1`) {
		t.Fatalf("metrics missing request count:\n%s", b)
	}
}
