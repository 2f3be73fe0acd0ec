package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/igolaizola/sonicarch/pkg/arrangement"
	"github.com/igolaizola/sonicarch/pkg/credential"
	"github.com/igolaizola/sonicarch/pkg/metrics"
	"github.com/igolaizola/sonicarch/pkg/preset"
	"github.com/igolaizola/sonicarch/pkg/prompt"
	"github.com/igolaizola/sonicarch/pkg/session"
	"github.com/igolaizola/sonicarch/pkg/timeline"
	"go.uber.org/zap"
)

// statusClientClosed is used when the generation was cancelled.
const statusClientClosed = 499

var (
	errSegmentNotFound = errors.New("web: segment not found")
	errBadRequest      = errors.New("web: bad request")
)

// Keys manages the configured api key.
type Keys interface {
	Resolve(ctx context.Context) (credential.Credentials, error)
	Save(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Pinger checks that a key is accepted by the model provider.
type Pinger interface {
	Ping(ctx context.Context, key string) error
}

type Options struct {
	Sessions    *session.Manager
	Keys        Keys
	Pinger      Pinger
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	Debug       bool
	Credentials map[string]string
	// Timeout bounds every request. Generation gets the same budget as its
	// own deadline and answers 504 when it runs out.
	Timeout     time.Duration
}

type api struct {
	sessions *session.Manager
	keys     Keys
	pinger   Pinger
	metrics  *metrics.Metrics
	log      *zap.Logger
	debug    bool
	timeout  time.Duration
}

// NewHandler returns the router serving the api and the metrics.
func NewHandler(opts *Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	a := &api{
		sessions: opts.Sessions,
		keys:     opts.Keys,
		pinger:   opts.Pinger,
		metrics:  m,
		log:      log,
		debug:    opts.Debug,
		timeout:  timeout,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(m.Middleware)

	// Generation runs under its own deadline, everything else under the
	// request timeout.
	limit := middleware.Timeout(timeout)

	mux.With(limit).Get("/metrics", m.Handler(func() {
		m.SetSessions(a.sessions.Len())
	}).ServeHTTP)

	mux.Route("/api", func(r chi.Router) {
		if len(opts.Credentials) > 0 {
			r.Use(middleware.BasicAuth("private", opts.Credentials))
		}
		if opts.Debug {
			r.Use(requestLogger(log))
		}

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Get("/presets", a.getPresets)
			r.Route("/settings", func(r chi.Router) {
				r.Get("/apikey", a.getKey)
				r.Put("/apikey", a.putKey)
				r.Delete("/apikey", a.deleteKey)
				r.Post("/test", a.testKey)
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.With(limit).Get("/", a.listSessions)
			r.With(limit).Post("/", a.createSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Post("/generate", a.generate)
				r.Group(func(r chi.Router) {
					r.Use(limit)
					r.Get("/", a.getSession)
					r.Delete("/", a.deleteSession)
					r.Put("/form", a.putForm)
					r.Post("/presets/{preset}", a.applyPreset)
					r.Post("/cancel", a.cancel)
					r.Get("/export", a.export)
					r.Post("/import", a.importArrangement)
					r.Post("/segments", a.addSegment)
					r.Route("/segments/{sid}", func(r chi.Router) {
						r.Put("/", a.updateSegment)
						r.Delete("/", a.deleteSegment)
						r.Post("/move", a.moveSegment)
						r.Post("/resize", a.resizeSegment)
						r.Post("/drag", a.dragSegment)
						r.Post("/select", a.selectSegment)
						r.Post("/tags", a.appendTag)
					})
				})
			})
		})
	})
	return mux
}

func requestLogger(log *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("web: request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Int("size", ww.BytesWritten()),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: couldn't decode body: %v", errBadRequest, err)
	}
	return nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, errSegmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, prompt.ErrMissingCredential):
		return http.StatusPreconditionFailed
	case errors.Is(err, context.Canceled):
		return statusClientClosed
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, prompt.ErrService), errors.Is(err, prompt.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, errBadRequest), errors.Is(err, timeline.ErrUnknownField):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (a *api) fail(w http.ResponseWriter, err error) {
	code := statusOf(err)
	resp := errorResponse{Error: err.Error()}
	switch code {
	case http.StatusPreconditionFailed, http.StatusConflict, http.StatusBadGateway, http.StatusGatewayTimeout, statusClientClosed:
		resp.Error = session.DisplayMessage(err)
		if a.debug {
			resp.Detail = err.Error()
		}
	case http.StatusInternalServerError:
		a.log.Error("web: request failed", zap.Error(err))
	}
	writeJSON(w, code, resp)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OK
	case errors.Is(err, prompt.ErrMissingCredential):
		return metrics.NoKey
	case errors.Is(err, session.ErrBusy):
		return metrics.Busy
	case errors.Is(err, prompt.ErrInvalidResponse):
		return metrics.Invalid
	case errors.Is(err, context.Canceled):
		return metrics.Cancelled
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.Timeout
	}
	return metrics.Failed
}

func (a *api) session(r *http.Request) (*session.Session, error) {
	return a.sessions.Get(chi.URLParam(r, "id"))
}

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sessions.IDs())
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	s := a.sessions.Create()
	writeJSON(w, http.StatusCreated, s.View())
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type formRequest struct {
	Mode               *prompt.Mode         `json:"mode"`
	ModelVersion       *prompt.ModelVersion `json:"model_version"`
	CustomInstructions *string              `json:"custom_instructions"`
	Topic              *string              `json:"topic"`
	Mood               *string              `json:"mood"`
	Genre              *string              `json:"genre"`
	Instrumental       *bool                `json:"instrumental"`
	Lyrics             *string              `json:"lyrics"`
	BPM                *int                 `json:"bpm"`
	TargetMinutes      *float64             `json:"target_minutes"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (a *api) putForm(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	var req formRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if req.BPM != nil && *req.BPM <= 0 {
		a.fail(w, fmt.Errorf("%w: bpm must be positive", errBadRequest))
		return
	}
	if req.TargetMinutes != nil && *req.TargetMinutes <= 0 {
		a.fail(w, fmt.Errorf("%w: target minutes must be positive", errBadRequest))
		return
	}
	view, err := s.UpdateForm(func(f *session.Form) error {
		set(&f.Mode, req.Mode)
		set(&f.ModelVersion, req.ModelVersion)
		set(&f.CustomInstructions, req.CustomInstructions)
		set(&f.Topic, req.Topic)
		set(&f.Mood, req.Mood)
		set(&f.Genre, req.Genre)
		set(&f.Instrumental, req.Instrumental)
		set(&f.Lyrics, req.Lyrics)
		return nil
	})
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.BPM != nil || req.TargetMinutes != nil {
		view, err = s.Edit(func(t *timeline.Timeline) error {
			set(&t.BPM, req.BPM)
			if req.TargetMinutes != nil {
				t.SetTargetMinutes(*req.TargetMinutes)
			}
			return nil
		})
		if err != nil {
			a.fail(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) applyPreset(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	view, err := s.ApplyPreset(chi.URLParam(r, "preset"))
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) generate(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	mode := s.View().Form.Mode
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	start := time.Now()
	res, err := s.Generate(ctx)
	a.metrics.ObserveGeneration(string(mode), outcome(err), time.Since(start))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) cancel(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.Cancel()})
}

func (a *api) export(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	format := arrangement.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = arrangement.JSON
	}
	b, err := arrangement.Marshal(format, s.Request())
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	contentType := map[arrangement.Format]string{
		arrangement.JSON: "application/json",
		arrangement.YAML: "application/yaml",
		arrangement.CSV:  "text/csv",
	}[format]
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=arrangement.%s", format))
	_, _ = w.Write(b)
}

// importArrangement replaces the session state with an uploaded arrangement.
func (a *api) importArrangement(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	format := arrangement.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = arrangement.JSON
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		a.fail(w, fmt.Errorf("%w: couldn't read body: %v", errBadRequest, err))
		return
	}
	req, err := arrangement.Unmarshal(format, b)
	if err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if _, err := s.UpdateForm(func(f *session.Form) error {
		f.Mode = req.Mode
		f.ModelVersion = req.ModelVersion
		f.CustomInstructions = req.CustomInstructions
		f.Topic = req.Topic
		f.Mood = req.Mood
		f.Genre = req.Genre
		f.Instrumental = req.Instrumental
		f.Lyrics = req.Lyrics
		return nil
	}); err != nil {
		a.fail(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	view, err := s.Edit(func(t *timeline.Timeline) error {
		if req.Mode == prompt.Arrangement {
			*t = *arrangement.Timeline(req)
			t.Reconcile()
		}
		return nil
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) addSegment(w http.ResponseWriter, r *http.Request) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	view, err := s.Edit(func(t *timeline.Timeline) error {
		t.Add()
		return nil
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// editSegment runs fn on the session timeline after checking that the
// segment in the url exists.
func (a *api) editSegment(w http.ResponseWriter, r *http.Request, fn func(t *timeline.Timeline, sid string) error) {
	s, err := a.session(r)
	if err != nil {
		a.fail(w, err)
		return
	}
	sid := chi.URLParam(r, "sid")
	view, err := s.Edit(func(t *timeline.Timeline) error {
		if t.Get(sid) == nil {
			return errSegmentNotFound
		}
		return fn(t, sid)
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateRequest struct {
	Field timeline.Field `json:"field"`
	Value string         `json:"value"`
}

func (a *api) updateSegment(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	a.editSegment(w, r, func(t *timeline.Timeline, sid string) error {
		if err := t.Update(sid, req.Field, req.Value); err != nil {
			if errors.Is(err, timeline.ErrUnknownField) {
				return err
			}
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return nil
	})
}

func (a *api) deleteSegment(w http.ResponseWriter, r *http.Request) {
	a.editSegment(w, r, func(t *timeline.Timeline, sid string) error {
		t.Remove(sid)
		return nil
	})
}

type moveRequest struct {
	Direction timeline.Direction `json:"direction"`
}

func (a *api) moveSegment(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if req.Direction != timeline.Left && req.Direction != timeline.Right {
		a.fail(w, fmt.Errorf("%w: invalid direction %q", errBadRequest, req.Direction))
		return
	}
	a.editSegment(w, r, func(t *timeline.Timeline, sid string) error {
		t.Move(t.Index(sid), req.Direction)
		return nil
	})
}

type resizeRequest struct {
	Delta float64 `json:"delta"`
}

func (a *api) resizeSegment(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	a.editSegment(w, r, func(t *timeline.Timeline, sid string) error {
		t.Resize(sid, req.Delta)
		return nil
	})
}

// dragRequest is one step of a drag gesture. Delta is relative to the
// duration at start and may be omitted on end.
type dragRequest struct {
	Phase string   `json:"phase"`
	Delta *float64 `json:"delta,omitempty"`
}

func (a *api) dragSegment(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	a.editSegment(w, r, func(t *timeline.Timeline, sid string) error {
		switch req.Phase {
		case "start":
			t.BeginDrag(sid)
		case "move":
			if id, ok := t.Dragging(); !ok || id != sid {
				return fmt.Errorf("%w: segment is not being dragged", errBadRequest)
			}
			if req.Delta == nil {
				return fmt.Errorf("%w: missing delta", errBadRequest)
			}
			t.DragTo(*req.Delta)
		case "end":
			if id, ok := t.Dragging(); ok && id == sid && req.Delta != nil {
				t.DragTo(*req.Delta)
			}
			t.EndDrag()
		default:
			return fmt.Errorf("%w: invalid phase %q", errBadRequest, req.Phase)
		}
		return nil
	})
}

func (a *api) selectSegment(w http.ResponseWriter, r *http.Request) {
	a.editSegment(w, r, func(t *timeline.Timeline, sid string) error {
		t.Select(sid)
		return nil
	})
}

type tagRequest struct {
	Tag    string       `json:"tag,omitempty"`
	Phrase string       `json:"phrase,omitempty"`
	Solo   *preset.Solo `json:"solo,omitempty"`
}

func (a *api) appendTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	a.editSegment(w, r, func(t *timeline.Timeline, sid string) error {
		t.Select(sid)
		var ok bool
		switch {
		case req.Solo != nil:
			tag, err := req.Solo.Tag()
			if err != nil {
				return fmt.Errorf("%w: %v", errBadRequest, err)
			}
			ok = t.AppendStyleTag(tag)
		case req.Tag != "":
			ok = t.AppendStyleTag(req.Tag)
		case req.Phrase != "":
			ok = t.AppendNarrative(req.Phrase)
		}
		if !ok {
			return fmt.Errorf("%w: nothing to append", errBadRequest)
		}
		return nil
	})
}

type presetsResponse struct {
	Kinds    []string          `json:"kinds"`
	Moods    []preset.Option   `json:"moods"`
	Genres   []preset.Option   `json:"genres"`
	Visuals  []preset.Visual   `json:"visuals"`
	Library  []preset.Category `json:"library"`
	Phrases  []preset.Option   `json:"phrases"`
	Solo     soloOptions       `json:"solo"`
	Versions []string          `json:"model_versions"`
}

type soloOptions struct {
	Instruments []preset.Option `json:"instruments"`
	Adjectives  []preset.Option `json:"adjectives"`
	Techniques  []preset.Option `json:"techniques"`
}

func (a *api) getPresets(w http.ResponseWriter, r *http.Request) {
	kinds := make([]string, 0, len(timeline.Kinds)+1)
	for _, k := range timeline.Kinds {
		kinds = append(kinds, k.Label())
	}
	kinds = append(kinds, timeline.Custom("").Label())
	writeJSON(w, http.StatusOK, &presetsResponse{
		Kinds:   kinds,
		Moods:   preset.Moods,
		Genres:  preset.Genres,
		Visuals: preset.Visuals,
		Library: preset.Library,
		Phrases: preset.Phrases,
		Solo: soloOptions{
			Instruments: preset.SoloInstruments,
			Adjectives:  preset.SoloAdjectives,
			Techniques:  preset.SoloTechniques,
		},
		Versions: []string{string(prompt.V5), string(prompt.V4)},
	})
}

type keyResponse struct {
	Configured bool              `json:"configured"`
	Source     credential.Source `json:"source,omitempty"`
}

func (a *api) getKey(w http.ResponseWriter, r *http.Request) {
	creds, err := a.keys.Resolve(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &keyResponse{
		Configured: creds.APIKey != "",
		Source:     creds.Source,
	})
}

type keyRequest struct {
	Key string `json:"key"`
}

func (a *api) putKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	if err := a.keys.Save(r.Context(), req.Key); err != nil {
		a.fail(w, err)
		return
	}
	a.log.Info("web: api key saved")
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) deleteKey(w http.ResponseWriter, r *http.Request) {
	if err := a.keys.Clear(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	a.log.Info("web: api key cleared")
	w.WriteHeader(http.StatusNoContent)
}

type testResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// testKey pings the model with the key in the body or, when empty, with the
// configured one.
func (a *api) testKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			a.fail(w, err)
			return
		}
	}
	key := req.Key
	if key == "" {
		creds, err := a.keys.Resolve(r.Context())
		if err != nil {
			a.fail(w, err)
			return
		}
		key = creds.APIKey
	}
	if key == "" {
		a.fail(w, prompt.ErrMissingCredential)
		return
	}
	if err := a.pinger.Ping(r.Context(), key); err != nil {
		a.log.Warn("web: api key test failed", zap.Error(err))
		resp := &testResponse{Valid: false}
		if a.debug {
			resp.Error = err.Error()
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, &testResponse{Valid: true})
}
