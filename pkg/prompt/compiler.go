package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/igolaizola/sonicarch/pkg/credential"
	"go.uber.org/zap"
)

var (
	ErrMissingCredential = errors.New("prompt: api key not configured")
	ErrService           = errors.New("prompt: generation service failed")
	ErrInvalidResponse   = errors.New("prompt: invalid response")
)

// Completer sends one JSON mode completion to the language model.
type Completer interface {
	JSONCompletion(ctx context.Context, key, system, user string) (string, error)
}

// Compiler turns requests into a single model call and parses the reply.
type Compiler struct {
	completer Completer
	log       *zap.Logger
}

func New(completer Completer, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{
		completer: completer,
		log:       log,
	}
}

// Compile renders the request, calls the model once and decodes the reply.
// Nothing is sent when the credentials carry no key.
func (c *Compiler) Compile(ctx context.Context, creds credential.Credentials, r *Request) (*Result, error) {
	if creds.APIKey == "" {
		return nil, ErrMissingCredential
	}
	system, user, err := Render(r)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	c.log.Debug("prompt: compile started",
		zap.String("mode", string(r.Mode)),
		zap.String("credential_source", string(creds.Source)),
		zap.Int("segments", len(r.Segments)),
	)
	body, err := c.completer.JSONCompletion(ctx, creds.APIKey, system, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrService, err)
	}
	res, err := Decode(body)
	if err != nil {
		return nil, err
	}
	c.log.Debug("prompt: compile ended",
		zap.String("title", res.Title),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

type reply struct {
	Title            *string `json:"title"`
	StylePrompt      *string `json:"stylePrompt"`
	Lyrics           *string `json:"lyrics"`
	Explanation      *string `json:"explanation"`
	StyleDescription *string `json:"styleDescription"`
}

// Decode parses a model reply. The body must be a JSON object with the string
// fields title, stylePrompt, lyrics and explanation.
func Decode(body string) (*Result, error) {
	var v reply
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	required := []struct {
		name  string
		value *string
	}{
		{"title", v.Title},
		{"stylePrompt", v.StylePrompt},
		{"lyrics", v.Lyrics},
		{"explanation", v.Explanation},
	}
	for _, f := range required {
		if f.value == nil {
			return nil, fmt.Errorf("%w: missing field %s", ErrInvalidResponse, f.name)
		}
	}
	res := &Result{
		Title:       *v.Title,
		StylePrompt: *v.StylePrompt,
		Lyrics:      *v.Lyrics,
		Explanation: *v.Explanation,
	}
	if v.StyleDescription != nil {
		res.StyleDescription = *v.StyleDescription
	}
	return res, nil
}
