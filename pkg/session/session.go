package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/igolaizola/sonicarch/pkg/credential"
	"github.com/igolaizola/sonicarch/pkg/preset"
	"github.com/igolaizola/sonicarch/pkg/prompt"
	"github.com/igolaizola/sonicarch/pkg/timeline"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var (
	ErrBusy     = errors.New("session: generation already in progress")
	ErrNotFound = errors.New("session: not found")
)

// Status of the last generation.
type Status string

const (
	Idle    Status = "idle"
	Loading Status = "loading"
	Success Status = "success"
	Error   Status = "error"
)

// Compiler produces a result from a request.
type Compiler interface {
	Compile(ctx context.Context, creds credential.Credentials, r *prompt.Request) (*prompt.Result, error)
}

// Resolver returns the credentials to use for a call.
type Resolver interface {
	Resolve(ctx context.Context) (credential.Credentials, error)
}

// Form holds everything the user filled in besides the timeline.
type Form struct {
	Mode               prompt.Mode         `json:"mode"`
	ModelVersion       prompt.ModelVersion `json:"model_version"`
	CustomInstructions string              `json:"custom_instructions"`
	Topic              string              `json:"topic"`
	Mood               string              `json:"mood"`
	Genre              string              `json:"genre"`
	Instrumental       bool                `json:"instrumental"`
	Lyrics             string              `json:"lyrics"`
}

// Session is one editing session. It is safe for concurrent use.
type Session struct {
	id       string
	compiler Compiler
	resolver Resolver
	log      *zap.Logger

	mu       sync.Mutex
	timeline *timeline.Timeline
	form     Form
	status   Status
	result   *prompt.Result
	errMsg   string
	cancel   context.CancelFunc
	lastSeen time.Time
}

func New(compiler Compiler, resolver Resolver, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := ulid.Make().String()
	return &Session{
		id:       id,
		compiler: compiler,
		resolver: resolver,
		log:      log.With(zap.String("session", id)),
		timeline: timeline.Default(),
		form: Form{
			Mode:         prompt.Arrangement,
			ModelVersion: prompt.V5,
		},
		status:   Idle,
		lastSeen: time.Now(),
	}
}

func (s *Session) ID() string {
	return s.id
}

// View is a snapshot of the session state.
type View struct {
	ID       string             `json:"id"`
	Form     Form               `json:"form"`
	Timeline *timeline.Timeline `json:"timeline"`
	Total    int                `json:"total_seconds"`
	Dragging string             `json:"dragging,omitempty"`
	Busy     bool               `json:"busy"`
	Status   Status             `json:"status"`
	Result   *prompt.Result     `json:"result,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

func (s *Session) view() *View {
	dragging, _ := s.timeline.Dragging()
	return &View{
		ID:       s.id,
		Form:     s.form,
		Timeline: s.timeline.Clone(),
		Total:    s.timeline.TotalSeconds(),
		Dragging: dragging,
		Busy:     s.cancel != nil,
		Status:   s.status,
		Result:   s.result,
		Error:    s.errMsg,
	}
}

// Edit runs fn with exclusive access to the timeline.
func (s *Session) Edit(fn func(t *timeline.Timeline) error) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	if err := fn(s.timeline); err != nil {
		return nil, err
	}
	return s.view(), nil
}

// UpdateForm runs fn with exclusive access to the form.
func (s *Session) UpdateForm(fn func(f *Form) error) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	f := s.form
	if err := fn(&f); err != nil {
		return nil, err
	}
	version, err := prompt.ParseModelVersion(string(f.ModelVersion))
	if err != nil {
		return nil, err
	}
	f.ModelVersion = version
	switch f.Mode {
	case prompt.Inspiration, prompt.Arrangement, prompt.TextArrangement:
	default:
		return nil, fmt.Errorf("session: unknown mode %q", f.Mode)
	}
	s.form = f
	return s.view(), nil
}

// ApplyPreset fills genre, mood and instructions from a visual preset.
func (s *Session) ApplyPreset(id string) (*View, error) {
	v, ok := preset.LookupVisual(id)
	if !ok {
		return nil, fmt.Errorf("session: unknown preset %q", id)
	}
	return s.UpdateForm(func(f *Form) error {
		f.Genre = v.Genre
		f.Mood = v.Mood
		f.CustomInstructions = v.Instruction
		return nil
	})
}

// Request builds the compiler request from the current state.
func (s *Session) Request() *prompt.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.request()
}

func (s *Session) request() *prompt.Request {
	f := s.form
	var r *prompt.Request
	switch f.Mode {
	case prompt.Inspiration:
		r = prompt.NewInspiration(f.Topic, f.Mood, f.Genre, f.Instrumental, f.CustomInstructions)
	case prompt.TextArrangement:
		r = &prompt.Request{
			Mode:               prompt.TextArrangement,
			Lyrics:             f.Lyrics,
			CustomInstructions: f.CustomInstructions,
		}
	default:
		r = prompt.NewArrangement(s.timeline, f.CustomInstructions)
	}
	r.ModelVersion = f.ModelVersion
	return r
}

// Generate submits the current state. Only one generation may run at a time;
// a second call fails with ErrBusy. The previous result is cleared when the
// call starts.
func (s *Session) Generate(ctx context.Context) (*prompt.Result, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	req := s.request()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel
	s.status = Loading
	s.result = nil
	s.errMsg = ""
	s.lastSeen = time.Now()
	s.mu.Unlock()

	s.log.Info("session: generation started", zap.String("mode", string(req.Mode)))
	res, err := s.generate(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = nil
	s.lastSeen = time.Now()
	if err != nil {
		s.status = Error
		s.errMsg = DisplayMessage(err)
		s.log.Warn("session: generation failed", zap.Error(err))
		return nil, err
	}
	s.status = Success
	s.result = res
	s.log.Info("session: generation ended", zap.String("title", res.Title))
	return res, nil
}

func (s *Session) generate(ctx context.Context, req *prompt.Request) (*prompt.Result, error) {
	creds, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: couldn't resolve credentials: %w", err)
	}
	return s.compiler.Compile(ctx, creds, req)
}

// Cancel aborts the running generation, if any.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return time.Now()
	}
	return s.lastSeen
}

// DisplayMessage converts an error into the text shown to the user.
func DisplayMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, prompt.ErrMissingCredential):
		return "API key not configured. Open the settings and configure your API key."
	case errors.Is(err, ErrBusy):
		return "A generation is already running. Wait for it to finish."
	case errors.Is(err, context.Canceled):
		return "Generation cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The model took too long to answer. Try again later."
	default:
		return "Something went wrong. Check your network or try again later."
	}
}
