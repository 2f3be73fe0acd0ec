package preset

import (
	"fmt"
	"strings"
)

// Option is a selectable value with its localized display label.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var Moods = []Option{
	{"充满活力", "Energetic"},
	{"忧伤", "Melancholic"},
	{"慵懒", "Chill"},
	{"愤怒", "Aggressive"},
	{"浪漫", "Romantic"},
	{"空灵", "Ethereal"},
	{"暗黑", "Dark"},
}

var Genres = []Option{
	{"流行", "Pop"},
	{"古风", "Traditional Chinese"},
	{"摇滚", "Rock"},
	{"电子", "Electronic"},
	{"爵士", "Jazz"},
	{"R&B", "R&B"},
	{"嘻哈", "Hip Hop"},
	{"金属", "Metal"},
}

// Visual is a one-click preset for the inspiration form.
type Visual struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tag         string `json:"tag"`
	Instruction string `json:"instruction"`
	Genre       string `json:"genre"`
	Mood        string `json:"mood"`
}

var Visuals = []Visual{
	{
		ID:          "faye",
		Name:        "王菲风格 (Faye)",
		Tag:         "Dream Pop / Ethereal",
		Instruction: "Style of Faye Wong, Dream Pop, Ethereal, Whispery vocals, Avant-garde",
		Genre:       "Pop",
		Mood:        "Ethereal",
	},
	{
		ID:          "wangfeng",
		Name:        "汪峰风格 (Wang Feng)",
		Tag:         "Folk Rock / Philosophical",
		Instruction: "Style of Wang Feng, Mando-Rock, Raspy male vocals, Piano intro, Philosophical lyrics",
		Genre:       "Rock",
		Mood:        "Aggressive",
	},
	{
		ID:          "gem",
		Name:        "邓紫棋 (G.E.M.)",
		Tag:         "Power Pop / R&B",
		Instruction: "Style of G.E.M., Power Pop, Soul, R&B, Belting high notes, Emotional",
		Genre:       "Pop",
		Mood:        "Energetic",
	},
	{
		ID:          "cyber",
		Name:        "赛博朋克 (Cyberpunk)",
		Tag:         "Dark Synth / Industrial",
		Instruction: "Cyberpunk, Dark Synthwave, Heavy Bass, Distorted vocals, Future Bass",
		Genre:       "Electronic",
		Mood:        "Dark",
	},
}

// LookupVisual returns the visual preset with the given id.
func LookupVisual(id string) (Visual, bool) {
	for _, v := range Visuals {
		if v.ID == id {
			return v, true
		}
	}
	return Visual{}, false
}

// Solo parts. The label is what ends up in the generated tag.
var (
	SoloInstruments = []Option{
		{"电吉他", "Electric Guitar"}, {"木吉他", "Acoustic Guitar"}, {"钢琴", "Piano"},
		{"合成器", "Synthesizer"}, {"萨克斯", "Saxophone"}, {"小提琴", "Violin"},
		{"大提琴", "Cello"}, {"贝斯", "Bass"}, {"鼓机", "Drum Machine"}, {"808 Bass", "808 Bass"},
		{"古筝", "Guzheng"}, {"琵琶", "Pipa"}, {"二胡", "Erhu"}, {"笛子", "Dizi"},
		{"唢呐", "Suona"}, {"马头琴", "Matouqin"},
	}
	SoloAdjectives = []Option{
		{"情感的", "Emotional"}, {"失真的", "Distorted"}, {"清音", "Clean"}, {"快速的", "Fast"},
		{"缓慢的", "Slow"}, {"旋律化的", "Melodic"}, {"激进的", "Aggressive"}, {"柔和的", "Soft"},
		{"史诗的", "Epic"}, {"爵士感的", "Jazzy"},
	}
	SoloTechniques = []Option{
		{"独奏", "Solo"}, {"乐句", "Riff"}, {"加花", "Licks"}, {"琶音", "Arpeggio"},
		{"速弹", "Shredding"}, {"和弦", "Chords"}, {"即兴", "Improvisation"}, {"高潮", "Drop"},
		{"过门", "Fill"},
	}
)

// Solo describes a solo tag.
type Solo struct {
	Adjective  string `json:"adjective"`
	Instrument string `json:"instrument"`
	Technique  string `json:"technique"`
}

// Tag renders the solo as a bracketed style tag using the display label of
// each part, e.g. "[情感的 钢琴 独奏]". Parts may be given by label, by english
// term or as "label (term)". Unknown parts are used verbatim.
func (s Solo) Tag() (string, error) {
	adj := part(s.Adjective, SoloAdjectives)
	inst := part(s.Instrument, SoloInstruments)
	tech := part(s.Technique, SoloTechniques)
	if strings.ContainsAny(adj+inst+tech, "[]") {
		return "", fmt.Errorf("preset: invalid solo %v", s)
	}
	return fmt.Sprintf("[%s %s %s]", adj, inst, tech), nil
}

func part(v string, opts []Option) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return opts[0].Label
	}
	// "钢琴 (Piano)" -> "钢琴"
	if i := strings.Index(v, " ("); i >= 0 {
		v = v[:i]
	}
	for _, o := range opts {
		if strings.EqualFold(o.Label, v) || strings.EqualFold(o.Value, v) {
			return o.Label
		}
	}
	return v
}
