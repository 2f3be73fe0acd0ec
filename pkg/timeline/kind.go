package timeline

import (
	"encoding/json"
	"strings"
)

// Kind is the section type of a segment. Known sections are matched against a
// closed set, anything else is kept as a custom label.
type Kind struct {
	base  string
	label string
}

var (
	Intro        = Kind{base: "Intro"}
	Verse        = Kind{base: "Verse"}
	PreChorus    = Kind{base: "Pre-Chorus"}
	Chorus       = Kind{base: "Chorus"}
	Bridge       = Kind{base: "Bridge"}
	Instrumental = Kind{base: "Instrumental"}
	Outro        = Kind{base: "Outro"}
)

const custom = "Custom"

// Kinds lists the known section kinds in display order.
var Kinds = []Kind{Intro, Verse, PreChorus, Chorus, Bridge, Instrumental, Outro}

// Custom returns a custom kind with the given label.
func Custom(label string) Kind {
	return Kind{base: custom, label: strings.TrimSpace(label)}
}

// ParseKind returns the known kind matching s (case insensitive) or a custom
// kind labelled s. Empty input is a verse.
func ParseKind(s string) Kind {
	s = strings.TrimSpace(s)
	if s == "" {
		return Verse
	}
	for _, k := range Kinds {
		if strings.EqualFold(k.base, s) {
			return k
		}
	}
	if strings.EqualFold(s, custom) {
		return Custom("")
	}
	return Custom(s)
}

// IsCustom reports whether the kind is outside the closed set.
func (k Kind) IsCustom() bool {
	return k.base == custom
}

// Label returns the text used in prompts.
func (k Kind) Label() string {
	if k.IsCustom() && k.label != "" {
		return k.label
	}
	if k.base == "" {
		return Verse.base
	}
	return k.base
}

func (k Kind) String() string {
	return k.Label()
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.Label()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	*k = ParseKind(string(b))
	return nil
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Label())
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*k = ParseKind(s)
	return nil
}
