package timeline

import "strings"

// AppendStyleTag adds a tag to the style tags of the selected segment,
// separated by a comma. It reports whether a segment was updated.
func (t *Timeline) AppendStyleTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	s := t.Get(t.Selected)
	if s == nil || tag == "" {
		return false
	}
	if s.StyleTags == "" {
		s.StyleTags = tag
	} else {
		s.StyleTags = s.StyleTags + ", " + tag
	}
	return true
}

// AppendNarrative adds a phrase to the narrative of the selected segment.
func (t *Timeline) AppendNarrative(phrase string) bool {
	phrase = strings.TrimSpace(phrase)
	s := t.Get(t.Selected)
	if s == nil || phrase == "" {
		return false
	}
	if s.Narrative == "" {
		s.Narrative = phrase
	} else {
		s.Narrative = s.Narrative + " " + phrase
	}
	return true
}
