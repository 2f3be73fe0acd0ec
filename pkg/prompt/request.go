package prompt

import (
	"fmt"
	"strings"

	"github.com/igolaizola/sonicarch/pkg/timeline"
)

// Mode selects the request template.
type Mode string

const (
	Inspiration     Mode = "inspiration"
	Arrangement     Mode = "arrangement"
	TextArrangement Mode = "text"
)

// ModelVersion is the target version of the music model.
type ModelVersion string

const (
	V4 ModelVersion = "v4"
	V5 ModelVersion = "v5"
)

// ParseModelVersion returns the matching version, defaulting to V5.
func ParseModelVersion(s string) (ModelVersion, error) {
	switch ModelVersion(strings.ToLower(strings.TrimSpace(s))) {
	case "", V5:
		return V5, nil
	case V4:
		return V4, nil
	}
	return "", fmt.Errorf("prompt: unknown model version %q", s)
}

// Request is what the user asks for. Exactly one of the mode specific groups is
// read, depending on Mode.
type Request struct {
	Mode               Mode         `json:"mode" yaml:"mode"`
	ModelVersion       ModelVersion `json:"model_version,omitempty" yaml:"model_version,omitempty"`
	CustomInstructions string       `json:"custom_instructions,omitempty" yaml:"custom_instructions,omitempty"`

	// Inspiration
	Topic        string `json:"topic,omitempty" yaml:"topic,omitempty"`
	Mood         string `json:"mood,omitempty" yaml:"mood,omitempty"`
	Genre        string `json:"genre,omitempty" yaml:"genre,omitempty"`
	Instrumental bool   `json:"instrumental,omitempty" yaml:"instrumental,omitempty"`

	// Arrangement
	Segments      []*timeline.Segment `json:"segments,omitempty" yaml:"segments,omitempty"`
	BPM           int                 `json:"bpm,omitempty" yaml:"bpm,omitempty"`
	TargetMinutes float64             `json:"target_minutes,omitempty" yaml:"target_minutes,omitempty"`

	// Text arrangement
	Lyrics string `json:"lyrics,omitempty" yaml:"lyrics,omitempty"`
}

// NewInspiration builds an inspiration request.
func NewInspiration(topic, mood, genre string, instrumental bool, instructions string) *Request {
	return &Request{
		Mode:               Inspiration,
		ModelVersion:       V5,
		Topic:              topic,
		Mood:               mood,
		Genre:              genre,
		Instrumental:       instrumental,
		CustomInstructions: instructions,
	}
}

// NewArrangement builds an arrangement request from a timeline snapshot.
func NewArrangement(t *timeline.Timeline, instructions string) *Request {
	c := t.Clone()
	return &Request{
		Mode:               Arrangement,
		ModelVersion:       V5,
		Segments:           c.Segments,
		BPM:                c.BPM,
		TargetMinutes:      c.TargetMinutes,
		CustomInstructions: instructions,
	}
}

// Validate checks that the request can be rendered.
func (r *Request) Validate() error {
	if _, err := ParseModelVersion(string(r.ModelVersion)); err != nil {
		return err
	}
	switch r.Mode {
	case Inspiration, TextArrangement:
	case Arrangement:
		if len(r.Segments) == 0 {
			return fmt.Errorf("prompt: arrangement has no segments")
		}
	default:
		return fmt.Errorf("prompt: unknown mode %q", r.Mode)
	}
	return nil
}

// Result is the reply of the model. Fields map to what the music service
// expects: the style box, the lyrics box and a title.
type Result struct {
	Title            string `json:"title"`
	StylePrompt      string `json:"stylePrompt"`
	Lyrics           string `json:"lyrics"`
	Explanation      string `json:"explanation"`
	StyleDescription string `json:"styleDescription,omitempty"`
}
