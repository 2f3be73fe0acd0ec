package timeline

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	// MinDuration is the shortest segment allowed, in seconds.
	MinDuration = 5
	// DefaultDuration is the duration of a newly added segment, in seconds.
	DefaultDuration = 30
	// DefaultBPM is the tempo of a new timeline.
	DefaultBPM = 120
	// DefaultTargetMinutes is the target duration of a new timeline.
	DefaultTargetMinutes = 3.5

	reconcileTolerance = 0.1
)

var ErrUnknownField = errors.New("timeline: unknown field")

// Segment is one section of the song.
type Segment struct {
	ID          string `json:"id" yaml:"id"`
	Kind        Kind   `json:"kind" yaml:"kind"`
	StyleTags   string `json:"style_tags" yaml:"style_tags"`
	Instruments string `json:"instruments" yaml:"instruments"`
	Narrative   string `json:"narrative" yaml:"narrative"`
	Lyrics      string `json:"lyrics" yaml:"lyrics"`
	Duration    int    `json:"duration" yaml:"duration"`
}

// Field names a mutable segment field.
type Field string

const (
	FieldKind        Field = "kind"
	FieldStyleTags   Field = "style_tags"
	FieldInstruments Field = "instruments"
	FieldNarrative   Field = "narrative"
	FieldLyrics      Field = "lyrics"
	FieldDuration    Field = "duration"
)

// Direction is the side a segment is moved to.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

type drag struct {
	id     string
	origin int
}

// Timeline is an ordered sequence of segments plus the target duration that is
// derived from them. It is not safe for concurrent use.
type Timeline struct {
	Segments      []*Segment `json:"segments"`
	Selected      string     `json:"selected,omitempty"`
	BPM           int        `json:"bpm"`
	TargetMinutes float64    `json:"target_minutes"`

	drag *drag
}

// New returns an empty timeline with default global settings.
func New() *Timeline {
	return &Timeline{
		BPM:           DefaultBPM,
		TargetMinutes: DefaultTargetMinutes,
	}
}

// Default returns the starter structure: intro, verse, pre-chorus, chorus and
// outro.
func Default() *Timeline {
	t := New()
	t.Segments = []*Segment{
		{ID: newID(), Kind: Intro, StyleTags: "Atmospheric start", Duration: 15},
		{ID: newID(), Kind: Verse, StyleTags: "Soft vocals", Instruments: "Piano, Light Drums", Duration: 30},
		{ID: newID(), Kind: PreChorus, StyleTags: "Building up", Duration: 15},
		{ID: newID(), Kind: Chorus, StyleTags: "Powerful, Emotional", Instruments: "Full Band, Strings", Duration: 25},
		{ID: newID(), Kind: Outro, StyleTags: "Fading out", Duration: 20},
	}
	t.Selected = t.Segments[0].ID
	t.Reconcile()
	return t
}

// FromSegments builds a timeline from existing segments. Missing ids are
// generated and durations are clamped.
func FromSegments(segments []*Segment, bpm int, targetMinutes float64) *Timeline {
	t := New()
	if bpm > 0 {
		t.BPM = bpm
	}
	if targetMinutes > 0 {
		t.TargetMinutes = targetMinutes
	}
	seen := map[string]bool{}
	for _, s := range segments {
		cp := *s
		if cp.ID == "" || seen[cp.ID] {
			cp.ID = newID()
		}
		seen[cp.ID] = true
		cp.Duration = clamp(cp.Duration)
		t.Segments = append(t.Segments, &cp)
	}
	if len(t.Segments) > 0 {
		t.Selected = t.Segments[0].ID
	}
	return t
}

func newID() string {
	return ulid.Make().String()
}

func clamp(d int) int {
	if d < MinDuration {
		return MinDuration
	}
	return d
}

// Add appends a new verse and selects it.
func (t *Timeline) Add() *Segment {
	s := &Segment{
		ID:       newID(),
		Kind:     Verse,
		Duration: DefaultDuration,
	}
	t.Segments = append(t.Segments, s)
	t.Selected = s.ID
	t.Reconcile()
	return s
}

// Remove deletes the segment with the given id. If it was selected the
// selection falls back to the first segment.
func (t *Timeline) Remove(id string) {
	i := t.Index(id)
	if i < 0 {
		return
	}
	t.Segments = append(t.Segments[:i], t.Segments[i+1:]...)
	if t.drag != nil && t.drag.id == id {
		t.drag = nil
	}
	if t.Selected == id {
		t.Selected = ""
		if len(t.Segments) > 0 {
			t.Selected = t.Segments[0].ID
		}
	}
	t.Reconcile()
}

// Move swaps the segment at index with its neighbour. Moving past either end
// is ignored.
func (t *Timeline) Move(index int, dir Direction) {
	if index < 0 || index >= len(t.Segments) {
		return
	}
	var target int
	switch dir {
	case Left:
		target = index - 1
	case Right:
		target = index + 1
	default:
		return
	}
	if target < 0 || target >= len(t.Segments) {
		return
	}
	t.Segments[index], t.Segments[target] = t.Segments[target], t.Segments[index]
	t.Reconcile()
}

// Update sets one field of the segment with the given id.
func (t *Timeline) Update(id string, field Field, value string) error {
	s := t.Get(id)
	switch field {
	case FieldKind, FieldStyleTags, FieldInstruments, FieldNarrative, FieldLyrics, FieldDuration:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if s == nil {
		return nil
	}
	switch field {
	case FieldKind:
		s.Kind = ParseKind(value)
	case FieldStyleTags:
		s.StyleTags = value
	case FieldInstruments:
		s.Instruments = value
	case FieldNarrative:
		s.Narrative = value
	case FieldLyrics:
		s.Lyrics = value
	case FieldDuration:
		d, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("timeline: invalid duration %q: %w", value, err)
		}
		s.Duration = clamp(int(math.Round(d)))
	}
	t.Reconcile()
	return nil
}

// Resize changes the duration of a segment by delta seconds, never going
// below MinDuration.
func (t *Timeline) Resize(id string, delta float64) {
	s := t.Get(id)
	if s == nil {
		return
	}
	s.Duration = resized(s.Duration, delta)
	t.Reconcile()
}

func resized(origin int, delta float64) int {
	return clamp(int(math.Round(float64(origin) + delta)))
}

// BeginDrag starts an interactive resize of the given segment. Reconciliation
// of the target duration is held back until EndDrag.
func (t *Timeline) BeginDrag(id string) bool {
	s := t.Get(id)
	if s == nil {
		return false
	}
	t.drag = &drag{id: id, origin: s.Duration}
	return true
}

// DragTo applies a delta relative to the duration the drag started with.
func (t *Timeline) DragTo(delta float64) {
	if t.drag == nil {
		return
	}
	s := t.Get(t.drag.id)
	if s == nil {
		t.drag = nil
		return
	}
	s.Duration = resized(t.drag.origin, delta)
}

// EndDrag finishes the interactive resize and reconciles once.
func (t *Timeline) EndDrag() {
	if t.drag == nil {
		return
	}
	t.drag = nil
	t.Reconcile()
}

// Dragging returns the id of the segment being resized, if any.
func (t *Timeline) Dragging() (string, bool) {
	if t.drag == nil {
		return "", false
	}
	return t.drag.id, true
}

// Select marks a segment as selected. Unknown ids are ignored.
func (t *Timeline) Select(id string) {
	if t.Index(id) < 0 {
		return
	}
	t.Selected = id
}

// SetTargetMinutes overrides the target duration. Segment durations are left
// untouched, so the target may diverge from the segments until the next
// structural edit.
func (t *Timeline) SetTargetMinutes(v float64) {
	t.TargetMinutes = v
}

// Get returns the segment with the given id or nil.
func (t *Timeline) Get(id string) *Segment {
	if i := t.Index(id); i >= 0 {
		return t.Segments[i]
	}
	return nil
}

// Index returns the position of the segment with the given id or -1.
func (t *Timeline) Index(id string) int {
	for i, s := range t.Segments {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// TotalSeconds is the sum of all segment durations.
func (t *Timeline) TotalSeconds() int {
	var total int
	for _, s := range t.Segments {
		total += s.Duration
	}
	return total
}

// TotalMinutes is the total duration in minutes rounded to one decimal.
func (t *Timeline) TotalMinutes() float64 {
	return math.Round(float64(t.TotalSeconds())/60*10) / 10
}

// Reconcile syncs the target duration with the segments unless a drag is in
// progress. It reports whether the target changed.
func (t *Timeline) Reconcile() bool {
	if t.drag != nil {
		return false
	}
	total := t.TotalMinutes()
	if math.Abs(total-t.TargetMinutes) <= reconcileTolerance {
		return false
	}
	t.TargetMinutes = total
	return true
}

// Clone returns a deep copy without the drag state.
func (t *Timeline) Clone() *Timeline {
	c := &Timeline{
		Selected:      t.Selected,
		BPM:           t.BPM,
		TargetMinutes: t.TargetMinutes,
	}
	for _, s := range t.Segments {
		cp := *s
		c.Segments = append(c.Segments, &cp)
	}
	return c
}
