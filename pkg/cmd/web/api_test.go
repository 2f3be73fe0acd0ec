package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/igolaizola/sonicarch/pkg/credential"
	"github.com/igolaizola/sonicarch/pkg/prompt"
	"github.com/igolaizola/sonicarch/pkg/session"
)

type memoryKeys struct {
	mu  sync.Mutex
	key string
}

func (m *memoryKeys) GetKey(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key, nil
}

func (m *memoryKeys) SetKey(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	return nil
}

func (m *memoryKeys) DeleteKey(ctx context.Context) error {
	return m.SetKey(ctx, "")
}

type fakeCompleter struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int
	user  string
	hang  bool
}

func (f *fakeCompleter) JSONCompletion(ctx context.Context, key, system, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.user = user
	body, err, hang := f.body, f.err, f.hang
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return body, err
}

func (f *fakeCompleter) setBody(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
}

func (f *fakeCompleter) state() (int, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.user
}

type fakePinger struct {
	valid string
}

func (f *fakePinger) Ping(ctx context.Context, key string) error {
	if key != f.valid {
		return errors.New("401 unauthorized")
	}
	return nil
}

const validBody = `{"title":"t","stylePrompt":"Pop, Piano, Pop","lyrics":"[BPM: 120]","explanation":"e"}`

type testServer struct {
	*httptest.Server
	completer *fakeCompleter
	keys      *memoryKeys
}

func newTestServer(t *testing.T, creds map[string]string) *testServer {
	t.Helper()
	return newTestServerWith(t, &Options{Credentials: creds}, &fakeCompleter{body: validBody})
}

func newTestServerWith(t *testing.T, opts *Options, completer *fakeCompleter) *testServer {
	t.Helper()
	keys := &memoryKeys{}
	resolver := credential.NewResolver(keys, func(string) string { return "" })
	opts.Sessions = session.NewManager(prompt.New(completer, nil), resolver, nil)
	opts.Keys = resolver
	opts.Pinger = &fakePinger{valid: "good"}
	srv := httptest.NewServer(NewHandler(opts))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, completer: completer, keys: keys}
}

func (s *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var r io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: couldn't decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) create(t *testing.T) *session.View {
	t.Helper()
	var v session.View
	if code := s.do(t, http.MethodPost, "/api/sessions", nil, &v); code != http.StatusCreated {
		t.Fatalf("create session = %d; want %d", code, http.StatusCreated)
	}
	return &v
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	v := s.create(t)
	if len(v.Timeline.Segments) != 5 || v.Total != 105 || v.Timeline.TargetMinutes != 1.8 {
		t.Fatalf("create session = %d segments, %ds, %v min; want 5, 105s, 1.8 min",
			len(v.Timeline.Segments), v.Total, v.Timeline.TargetMinutes)
	}
	if v.Status != session.Idle {
		t.Fatalf("Status = %s; want %s", v.Status, session.Idle)
	}

	var got session.View
	if code := s.do(t, http.MethodGet, "/api/sessions/"+v.ID, nil, &got); code != http.StatusOK {
		t.Fatalf("get session = %d; want 200", code)
	}
	if got.ID != v.ID {
		t.Fatalf("ID = %s; want %s", got.ID, v.ID)
	}
	if code := s.do(t, http.MethodDelete, "/api/sessions/"+v.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete session = %d; want 204", code)
	}
	if code := s.do(t, http.MethodGet, "/api/sessions/"+v.ID, nil, nil); code != http.StatusNotFound {
		t.Fatalf("get deleted session = %d; want 404", code)
	}
}

func TestSegments(t *testing.T) {
	s := newTestServer(t, nil)
	v := s.create(t)
	base := "/api/sessions/" + v.ID + "/segments"

	var added session.View
	if code := s.do(t, http.MethodPost, base, nil, &added); code != http.StatusCreated {
		t.Fatalf("add segment = %d; want 201", code)
	}
	segs := added.Timeline.Segments
	last := segs[len(segs)-1]
	if len(segs) != 6 || added.Timeline.Selected != last.ID || last.Duration != 30 {
		t.Fatalf("add segment = %+v", added.Timeline)
	}

	var updated session.View
	code := s.do(t, http.MethodPut, base+"/"+last.ID, map[string]string{"field": "duration", "value": "2"}, &updated)
	if code != http.StatusOK {
		t.Fatalf("update segment = %d; want 200", code)
	}
	if d := updated.Timeline.Segments[5].Duration; d != 5 {
		t.Fatalf("Duration = %d; want 5", d)
	}

	code = s.do(t, http.MethodPut, base+"/"+last.ID, map[string]string{"field": "color", "value": "red"}, nil)
	if code != http.StatusBadRequest {
		t.Fatalf("update unknown field = %d; want 400", code)
	}
	code = s.do(t, http.MethodPut, base+"/nope", map[string]string{"field": "lyrics", "value": "x"}, nil)
	if code != http.StatusNotFound {
		t.Fatalf("update unknown segment = %d; want 404", code)
	}

	var moved session.View
	first := segs[0].ID
	if code := s.do(t, http.MethodPost, base+"/"+first+"/move", map[string]string{"direction": "left"}, &moved); code != http.StatusOK {
		t.Fatalf("move segment = %d; want 200", code)
	}
	if moved.Timeline.Segments[0].ID != first {
		t.Fatal("moving the first segment left changed the order")
	}
	if code := s.do(t, http.MethodPost, base+"/"+first+"/move", map[string]string{"direction": "right"}, &moved); code != http.StatusOK {
		t.Fatalf("move segment = %d; want 200", code)
	}
	if moved.Timeline.Segments[1].ID != first {
		t.Fatal("moving the first segment right didn't swap it")
	}

	var resized session.View
	if code := s.do(t, http.MethodPost, base+"/"+first+"/resize", map[string]float64{"delta": -100}, &resized); code != http.StatusOK {
		t.Fatalf("resize segment = %d; want 200", code)
	}
	if d := resized.Timeline.Segments[1].Duration; d != 5 {
		t.Fatalf("Duration = %d; want 5", d)
	}

	var removed session.View
	if code := s.do(t, http.MethodDelete, base+"/"+last.ID, nil, &removed); code != http.StatusOK {
		t.Fatalf("delete segment = %d; want 200", code)
	}
	if len(removed.Timeline.Segments) != 5 || removed.Timeline.Selected != removed.Timeline.Segments[0].ID {
		t.Fatalf("delete segment = %+v", removed.Timeline)
	}
}

func TestDrag(t *testing.T) {
	s := newTestServer(t, nil)
	v := s.create(t)
	path := "/api/sessions/" + v.ID + "/segments/" + v.Timeline.Segments[1].ID + "/drag"

	var got session.View
	if code := s.do(t, http.MethodPost, path, map[string]any{"phase": "start"}, &got); code != http.StatusOK {
		t.Fatalf("drag start = %d; want 200", code)
	}
	if code := s.do(t, http.MethodPost, path, map[string]any{"phase": "move", "delta": 300}, &got); code != http.StatusOK {
		t.Fatalf("drag move = %d; want 200", code)
	}
	// Target is held while dragging.
	if got.Timeline.TargetMinutes != 1.8 || got.Dragging == "" {
		t.Fatalf("during drag = %v min, dragging %q", got.Timeline.TargetMinutes, got.Dragging)
	}
	if code := s.do(t, http.MethodPost, path, map[string]any{"phase": "end", "delta": 300}, &got); code != http.StatusOK {
		t.Fatalf("drag end = %d; want 200", code)
	}
	// 105 - 30 + 330 = 405 seconds
	if got.Total != 405 || got.Timeline.TargetMinutes != 6.8 || got.Dragging != "" {
		t.Fatalf("after drag = %ds, %v min, dragging %q", got.Total, got.Timeline.TargetMinutes, got.Dragging)
	}
	if code := s.do(t, http.MethodPost, path, map[string]any{"phase": "move", "delta": 1}, nil); code != http.StatusBadRequest {
		t.Fatalf("drag move without start = %d; want 400", code)
	}
}

func TestDragEndKeepsDuration(t *testing.T) {
	s := newTestServer(t, nil)
	v := s.create(t)
	path := "/api/sessions/" + v.ID + "/segments/" + v.Timeline.Segments[1].ID + "/drag"

	var got session.View
	s.do(t, http.MethodPost, path, map[string]any{"phase": "start"}, &got)
	if code := s.do(t, http.MethodPost, path, map[string]any{"phase": "move"}, nil); code != http.StatusBadRequest {
		t.Fatalf("drag move without delta = %d; want 400", code)
	}
	s.do(t, http.MethodPost, path, map[string]any{"phase": "move", "delta": 30}, &got)
	if d := got.Timeline.Segments[1].Duration; d != 60 {
		t.Fatalf("Duration = %d; want 60", d)
	}
	if code := s.do(t, http.MethodPost, path, map[string]any{"phase": "end"}, &got); code != http.StatusOK {
		t.Fatalf("drag end = %d; want 200", code)
	}
	// 105 - 30 + 60 = 135 seconds
	if d := got.Timeline.Segments[1].Duration; d != 60 || got.Total != 135 || got.Timeline.TargetMinutes != 2.3 {
		t.Fatalf("after drag end = %ds segment, %ds total, %v min; want 60, 135, 2.3",
			d, got.Total, got.Timeline.TargetMinutes)
	}
}

func TestTags(t *testing.T) {
	s := newTestServer(t, nil)
	v := s.create(t)
	sid := v.Timeline.Segments[2].ID
	path := "/api/sessions/" + v.ID + "/segments/" + sid + "/tags"

	var got session.View
	if code := s.do(t, http.MethodPost, path, map[string]any{"tag": "Epic"}, &got); code != http.StatusOK {
		t.Fatalf("append tag = %d; want 200", code)
	}
	if got.Timeline.Selected != sid || got.Timeline.Segments[2].StyleTags != "Building up, Epic" {
		t.Fatalf("append tag = %+v", got.Timeline.Segments[2])
	}
	solo := map[string]any{"solo": map[string]string{"adjective": "Emotional", "instrument": "钢琴 (Piano)", "technique": ""}}
	if code := s.do(t, http.MethodPost, path, solo, &got); code != http.StatusOK {
		t.Fatalf("append solo = %d; want 200", code)
	}
	if tags := got.Timeline.Segments[2].StyleTags; tags != "Building up, Epic, [情感的 钢琴 独奏]" {
		t.Fatalf("StyleTags = %q", tags)
	}
	if code := s.do(t, http.MethodPost, path, map[string]any{"phrase": "Led by piano"}, &got); code != http.StatusOK {
		t.Fatalf("append phrase = %d; want 200", code)
	}
	if n := got.Timeline.Segments[2].Narrative; n != "Led by piano" {
		t.Fatalf("Narrative = %q", n)
	}
	if code := s.do(t, http.MethodPost, path, map[string]any{}, nil); code != http.StatusBadRequest {
		t.Fatalf("append nothing = %d; want 400", code)
	}
}

func TestGenerate(t *testing.T) {
	s := newTestServer(t, nil)
	v := s.create(t)
	path := "/api/sessions/" + v.ID + "/generate"

	var e errorResponse
	if code := s.do(t, http.MethodPost, path, nil, &e); code != http.StatusPreconditionFailed {
		t.Fatalf("generate without key = %d; want 412", code)
	}
	if e.Error != session.DisplayMessage(prompt.ErrMissingCredential) {
		t.Fatalf("error = %q", e.Error)
	}
	if calls, _ := s.completer.state(); calls != 0 {
		t.Fatalf("calls = %d; want 0", calls)
	}

	if code := s.do(t, http.MethodPut, "/api/settings/apikey", map[string]string{"key": "  good  "}, nil); code != http.StatusNoContent {
		t.Fatalf("put key = %d; want 204", code)
	}
	if key, _ := s.keys.GetKey(context.Background()); key != "good" {
		t.Fatalf("stored key = %q; want good", key)
	}

	var res prompt.Result
	if code := s.do(t, http.MethodPost, path, nil, &res); code != http.StatusOK {
		t.Fatalf("generate = %d; want 200", code)
	}
	if res.Title != "t" || res.Lyrics != "[BPM: 120]" {
		t.Fatalf("generate = %+v", res)
	}
	if _, user := s.completer.state(); !strings.Contains(user, "STRUCTURE BLUEPRINT") {
		t.Fatalf("user prompt = %s", user)
	}
	var after session.View
	s.do(t, http.MethodGet, "/api/sessions/"+v.ID, nil, &after)
	if after.Status != session.Success || after.Result == nil {
		t.Fatalf("after generate = %s %v", after.Status, after.Result)
	}

	s.completer.setBody(`{"title":"t"}`)
	if code := s.do(t, http.MethodPost, path, nil, nil); code != http.StatusBadGateway {
		t.Fatalf("generate with invalid reply = %d; want 502", code)
	}
	s.do(t, http.MethodGet, "/api/sessions/"+v.ID, nil, &after)
	if after.Status != session.Error || after.Result != nil {
		t.Fatalf("after failure = %s %v", after.Status, after.Result)
	}
}

func TestGenerateTimeout(t *testing.T) {
	s := newTestServerWith(t, &Options{Timeout: 50 * time.Millisecond}, &fakeCompleter{hang: true})
	s.keys.SetKey(context.Background(), "good")
	v := s.create(t)

	var e errorResponse
	if code := s.do(t, http.MethodPost, "/api/sessions/"+v.ID+"/generate", nil, &e); code != http.StatusGatewayTimeout {
		t.Fatalf("generate = %d; want 504", code)
	}
	if e.Error != session.DisplayMessage(context.DeadlineExceeded) {
		t.Fatalf("error = %q", e.Error)
	}
	var after session.View
	s.do(t, http.MethodGet, "/api/sessions/"+v.ID, nil, &after)
	if after.Status != session.Error || after.Busy {
		t.Fatalf("after timeout = %s, busy %v; want error, not busy", after.Status, after.Busy)
	}
}

func TestForm(t *testing.T) {
	s := newTestServer(t, nil)
	v := s.create(t)
	path := "/api/sessions/" + v.ID + "/form"

	var got session.View
	body := map[string]any{"mode": "inspiration", "topic": "rain", "model_version": "v4", "bpm": 90, "target_minutes": 4}
	if code := s.do(t, http.MethodPut, path, body, &got); code != http.StatusOK {
		t.Fatalf("put form = %d; want 200", code)
	}
	if got.Form.Mode != prompt.Inspiration || got.Form.Topic != "rain" || got.Form.ModelVersion != prompt.V4 {
		t.Fatalf("Form = %+v", got.Form)
	}
	if got.Timeline.BPM != 90 || got.Timeline.TargetMinutes != 4 {
		t.Fatalf("BPM, TargetMinutes = %d, %v; want 90, 4", got.Timeline.BPM, got.Timeline.TargetMinutes)
	}
	for _, bad := range []map[string]any{{"mode": "karaoke"}, {"bpm": 0}, {"model_version": "v9"}} {
		if code := s.do(t, http.MethodPut, path, bad, nil); code != http.StatusBadRequest {
			t.Fatalf("put form %v = %d; want 400", bad, code)
		}
	}

	if code := s.do(t, http.MethodPost, "/api/sessions/"+v.ID+"/presets/gem", nil, &got); code != http.StatusOK {
		t.Fatalf("apply preset = %d; want 200", code)
	}
	if got.Form.Genre == "" || got.Form.CustomInstructions == "" {
		t.Fatalf("Form = %+v; want preset values", got.Form)
	}
	if code := s.do(t, http.MethodPost, "/api/sessions/"+v.ID+"/presets/nope", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("apply unknown preset = %d; want 400", code)
	}
}

func TestExportImport(t *testing.T) {
	s := newTestServer(t, nil)
	v := s.create(t)

	resp, err := s.Client().Get(s.URL + "/api/sessions/" + v.ID + "/export?format=csv")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(b), "kind,duration") {
		t.Fatalf("export = %d %s", resp.StatusCode, b)
	}

	other := s.create(t)
	csv := "kind,duration\nIntro,10\nChorus,50\n"
	var got session.View
	if code := s.do(t, http.MethodPost, "/api/sessions/"+other.ID+"/import?format=csv", csv, &got); code != http.StatusOK {
		t.Fatalf("import = %d; want 200", code)
	}
	if len(got.Timeline.Segments) != 2 || got.Total != 60 || got.Timeline.TargetMinutes != 1 {
		t.Fatalf("import = %+v", got.Timeline)
	}
	// The imported target is reconciled with the imported segments.
	doc := `{"mode":"arrangement","bpm":100,"target_minutes":10,"segments":[{"kind":"Verse","duration":60}]}`
	if code := s.do(t, http.MethodPost, "/api/sessions/"+other.ID+"/import", doc, &got); code != http.StatusOK {
		t.Fatalf("import json = %d; want 200", code)
	}
	if got.Total != 60 || got.Timeline.TargetMinutes != 1 || got.Timeline.BPM != 100 {
		t.Fatalf("import json = %ds, %v min, %d bpm; want 60s, 1 min, 100 bpm",
			got.Total, got.Timeline.TargetMinutes, got.Timeline.BPM)
	}
	if code := s.do(t, http.MethodPost, "/api/sessions/"+other.ID+"/import?format=xml", csv, nil); code != http.StatusBadRequest {
		t.Fatalf("import xml = %d; want 400", code)
	}
}

func TestSettings(t *testing.T) {
	s := newTestServer(t, nil)

	var k keyResponse
	s.do(t, http.MethodGet, "/api/settings/apikey", nil, &k)
	if k.Configured {
		t.Fatal("Configured = true; want false")
	}
	if code := s.do(t, http.MethodPost, "/api/settings/test", nil, nil); code != http.StatusPreconditionFailed {
		t.Fatalf("test without key = %d; want 412", code)
	}

	var tr testResponse
	if code := s.do(t, http.MethodPost, "/api/settings/test", map[string]string{"key": "bad"}, &tr); code != http.StatusBadGateway || tr.Valid {
		t.Fatalf("test bad key = %d %v; want 502 false", code, tr.Valid)
	}
	s.do(t, http.MethodPut, "/api/settings/apikey", map[string]string{"key": "good"}, nil)
	if code := s.do(t, http.MethodPost, "/api/settings/test", nil, &tr); code != http.StatusOK || !tr.Valid {
		t.Fatalf("test stored key = %d %v; want 200 true", code, tr.Valid)
	}
	s.do(t, http.MethodGet, "/api/settings/apikey", nil, &k)
	if !k.Configured || k.Source != credential.Stored {
		t.Fatalf("key = %+v; want stored", k)
	}

	if code := s.do(t, http.MethodDelete, "/api/settings/apikey", nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete key = %d; want 204", code)
	}
	s.do(t, http.MethodGet, "/api/settings/apikey", nil, &k)
	if k.Configured {
		t.Fatal("Configured = true after delete; want false")
	}
}

func TestPresetsAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	var p presetsResponse
	if code := s.do(t, http.MethodGet, "/api/presets", nil, &p); code != http.StatusOK {
		t.Fatalf("get presets = %d; want 200", code)
	}
	if len(p.Visuals) != 4 || len(p.Kinds) != 8 || len(p.Solo.Instruments) == 0 {
		t.Fatalf("presets = %d visuals, %d kinds", len(p.Visuals), len(p.Kinds))
	}

	s.create(t)
	resp, err := s.Client().Get(s.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(b), "sonicarch_active_sessions 1") {
		t.Fatalf("metrics = %s", b)
	}
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t, map[string]string{"user": "pass"})
	if code := s.do(t, http.MethodGet, "/api/presets", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("get presets = %d; want 401", code)
	}
	req, _ := http.NewRequest(http.MethodGet, s.URL+"/api/presets", nil)
	req.SetBasicAuth("user", "pass")
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get presets with auth = %d; want 200", resp.StatusCode)
	}
}
