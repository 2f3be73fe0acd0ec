package arrangement

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/igolaizola/sonicarch/pkg/prompt"
	"github.com/igolaizola/sonicarch/pkg/timeline"
	"gopkg.in/yaml.v3"
)

// Format of an arrangement file.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CSV  Format = "csv"
)

// FormatOf returns the format matching the file extension.
func FormatOf(file string) (Format, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".csv":
		return CSV, nil
	}
	return "", fmt.Errorf("arrangement: unsupported format: %s", filepath.Ext(file))
}

// row is one segment in a csv file.
type row struct {
	Kind        string `csv:"kind"`
	Duration    int    `csv:"duration"`
	StyleTags   string `csv:"style_tags"`
	Instruments string `csv:"instruments"`
	Narrative   string `csv:"narrative"`
	Lyrics      string `csv:"lyrics"`
}

// Load reads a request from a file. JSON and YAML files hold a whole request;
// CSV files hold the segments of an arrangement, one per row.
func Load(file string) (*prompt.Request, error) {
	format, err := FormatOf(file)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("arrangement: couldn't read file: %w", err)
	}
	return Unmarshal(format, b)
}

// Unmarshal decodes a request and normalizes its segments.
func Unmarshal(format Format, b []byte) (*prompt.Request, error) {
	var r prompt.Request
	switch format {
	case JSON:
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("arrangement: couldn't unmarshal json: %w", err)
		}
	case YAML:
		if err := yaml.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("arrangement: couldn't unmarshal yaml: %w", err)
		}
	case CSV:
		var rows []*row
		if err := gocsv.UnmarshalBytes(b, &rows); err != nil {
			return nil, fmt.Errorf("arrangement: couldn't unmarshal csv: %w", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("arrangement: no segments found in file")
		}
		r.Mode = prompt.Arrangement
		for _, row := range rows {
			r.Segments = append(r.Segments, &timeline.Segment{
				Kind:        timeline.ParseKind(row.Kind),
				Duration:    row.Duration,
				StyleTags:   row.StyleTags,
				Instruments: row.Instruments,
				Narrative:   row.Narrative,
				Lyrics:      row.Lyrics,
			})
		}
	default:
		return nil, fmt.Errorf("arrangement: unsupported format: %s", format)
	}
	normalize(&r)
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("arrangement: invalid request: %w", err)
	}
	return &r, nil
}

func normalize(r *prompt.Request) {
	if r.Mode == "" {
		switch {
		case len(r.Segments) > 0:
			r.Mode = prompt.Arrangement
		case r.Lyrics != "":
			r.Mode = prompt.TextArrangement
		default:
			r.Mode = prompt.Inspiration
		}
	}
	if v, err := prompt.ParseModelVersion(string(r.ModelVersion)); err == nil {
		r.ModelVersion = v
	}
	if r.Mode != prompt.Arrangement {
		return
	}
	t := timeline.FromSegments(r.Segments, r.BPM, r.TargetMinutes)
	if r.TargetMinutes <= 0 {
		t.Reconcile()
	}
	r.Segments = t.Segments
	r.BPM = t.BPM
	r.TargetMinutes = t.TargetMinutes
}

// Timeline builds an editable timeline from an arrangement request.
func Timeline(r *prompt.Request) *timeline.Timeline {
	return timeline.FromSegments(r.Segments, r.BPM, r.TargetMinutes)
}

// Marshal encodes a request. CSV only carries the segments.
func Marshal(format Format, r *prompt.Request) ([]byte, error) {
	switch format {
	case JSON:
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("arrangement: couldn't marshal json: %w", err)
		}
		return b, nil
	case YAML:
		b, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("arrangement: couldn't marshal yaml: %w", err)
		}
		return b, nil
	case CSV:
		rows := make([]*row, 0, len(r.Segments))
		for _, s := range r.Segments {
			rows = append(rows, &row{
				Kind:        s.Kind.Label(),
				Duration:    s.Duration,
				StyleTags:   s.StyleTags,
				Instruments: s.Instruments,
				Narrative:   s.Narrative,
				Lyrics:      s.Lyrics,
			})
		}
		b, err := gocsv.MarshalBytes(&rows)
		if err != nil {
			return nil, fmt.Errorf("arrangement: couldn't marshal csv: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("arrangement: unsupported format: %s", format)
}
