package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/igolaizola/sonicarch/pkg/timeline"
)

// lyricsExcerpt is the number of characters of each segment's lyrics sent to
// the model. Longer lyrics are cut, so the model never sees them in full.
const lyricsExcerpt = 50

const none = "None"

const artistKnowledge = `
**Suno V5 Artist Styles (Master Presets):**
1. **Faye Wong (王菲)**:
   - Keywords: "Dream Pop, Ethereal, Cantopop, Alternative Rock, Avant-garde".
   - Vocals: "Whispery, airy, head voice, yodeling (falsetto breaks), lazy phrasing, ethereal female vocals".
   - Instruments: "Reverb-heavy guitars, atmospheric pads, acoustic guitar, subtle electronic beats".
   - Structure: often loose, atmospheric.

2. **Wang Feng (汪峰)**:
   - Keywords: "Mando-Rock, Stadium Rock, Folk Rock, Philosophical".
   - Vocals: "Raspy male vocals, emotional shouting, gritty, storytelling, powerful belting".
   - Instruments: "Piano intro (essential), distorted electric guitar solo, driving drum beat, acoustic guitar strumming".
   - Mood: "Existential, longing, inspiring, rebellious".

3. **G.E.M. (邓紫棋)**:
   - Keywords: "C-Pop, Mandopop, Soul, R&B, Power Ballad".
   - Vocals: "Powerhouse female vocals, extensive range, belting high notes, R&B runs, emotional, agile".
   - Instruments: "Grand piano, modern pop production, heavy bass, electronic elements mixed with orchestral strings".

4. **Huang Ling (黄龄)**:
   - Keywords: "Electro-Chinoiserie, Nu-Disco, Sultry Pop".
   - Vocals: "Sultry, coquettish, breathy, melismatic runs, slide notes, distinct Chinese opera influence".

**Suno V5 Prompting Rules (CRITICAL):**
1. **Global Consistency**: Ensure the "Style Prompt" defines the overall genre, and individual sections (Verse/Chorus) follow that genre but add variations.
2. **Anchoring**: Place the most important style keyword at the VERY START and VERY END of the style prompt string.
3. **Section Headers**: V5 reads section headers for context. Combine Type + Tempo/Vibe + Instruments.
   - GOOD: [Verse 1: Soft Piano, Slow build]
   - BAD: [Verse 1] (Too generic)
4. **Timing**: Use the estimated duration to control pacing.
   - Example: [Intro: 15s Atmospheric]
`

const systemInstruction = `
你是一位世界顶级的音乐制作人和 Suno V5 提示词工程师 (Sonic Architect)。
你的任务是将用户的编曲意图转化为 Suno V5 最能完美执行的 Prompt。

**核心生成逻辑**：

1. **分析整体氛围 (Global Vibe Analysis)**:
   - 扫描用户提供的所有 Structure Blocks。
   - 提取共性的风格 (Style) 和乐器 (Instruments)。
   - 确定一首歌曲的 "主基调" (例如：是悲伤的钢琴民谣，还是激进的摇滚)。
   - 在生成的 Style Prompt 中，必须体现这个主基调，并使用 **首尾锚定**。

2. **构建风格提示词 (Style Prompt Construction)**:
   - 格式：[Primary Genre], [Mood], [Global Instruments], [Vocal Style] ... [Primary Genre]
   - 如果用户选择了 "大师预设" 或特定艺人风格，务必加入相关的专业关键词（如 "Dream Pop" for Faye Wong）。
   - **V5 特性**: 尝试使用伪 JSON 格式增强理解，例如: "Genre: Pop, Vibe: Sad, Inst: Piano".

3. **构建歌词与结构 (Lyrics & Structure Construction)**:
   - **严格遵守** 用户在工作台定义的结构顺序。
   - **智能融合标签**: 将 [Type], [Duration], [Instruments] 融合为一个强大的段落头。
     - 格式: **[SectionType: Mood/Vibe, Main Instrument]**
     - 示例: **[Verse 1: Melancholic, Acoustic Guitar Arpeggio]**
   - **歌词内容**:
     - 如果用户提供了歌词，请按段落分配。
     - 如果是纯音乐 (Instrumental)，请在段落内填写具体的演奏细节描述（如 "The guitar plays a sorrowful melody..."）。
     - 必须在开头添加 **[BPM: {bpm}]** 标签。

**响应格式 (JSON)**:
只返回一个 JSON 对象，所有字段均为字符串，title、stylePrompt、lyrics、explanation 为必填：
{
  "title": "歌名 (中文/英文)",
  "stylePrompt": "填入 Suno Style 栏的字符串",
  "lyrics": "填入 Suno Lyrics 栏的完整内容 (包含所有 [标签])",
  "explanation": "简短的中文解释 (你的编曲思路)",
  "styleDescription": "一段详细的英文描述，用于解释歌曲的整体画面感 (Optional)"
}
`

// SystemInstruction returns the fixed producer persona sent with every call.
func SystemInstruction() string {
	return systemInstruction + artistKnowledge
}

// Render builds the system and user messages for the request.
func Render(r *Request) (string, string, error) {
	if err := r.Validate(); err != nil {
		return "", "", err
	}
	var context string
	switch r.Mode {
	case Inspiration:
		context = inspirationContext(r)
	case Arrangement:
		context = arrangementContext(r)
	case TextArrangement:
		context = textContext(r)
	}
	version, _ := ParseModelVersion(string(r.ModelVersion))
	target := "Suno " + strings.ToUpper(string(version))
	user := fmt.Sprintf(`Target Model: %s

INPUT CONTEXT:
%s

Perform the task acting as the Sonic Architect AI.
Ensure the output is musically coherent and leverages %s's ability to understand instrument placement and timing.
`, target, context, target)
	return SystemInstruction(), user, nil
}

func inspirationContext(r *Request) string {
	return fmt.Sprintf(`TASK: Inspiration Mode.
Topic: %s
Mood: %s
Genre: %s
Instrumental: %t
Custom Instructions: %s
`, r.Topic, r.Mood, r.Genre, r.Instrumental, r.CustomInstructions)
}

func textContext(r *Request) string {
	return fmt.Sprintf(`TASK: Standard Text Arrangement.
Original Lyrics: %s
Custom Instructions: %s
`, r.Lyrics, r.CustomInstructions)
}

func arrangementContext(r *Request) string {
	var blocks []string
	for i, s := range r.Segments {
		blocks = append(blocks, Block(i+1, s))
	}
	return fmt.Sprintf(`TASK: Arrangement Mode (Visual Workstation).

GLOBAL SETTINGS:
- BPM: %d
- Total Duration: %s minutes
- Custom User Instructions: %s

STRUCTURE BLUEPRINT (Strictly follow this order):
%s
INSTRUCTION:
Analyze the "Specific Instruments" and "Narrative/Vibe" from all blocks to determine a cohesive main genre.
Then, generate a "Style Prompt" that anchors this main genre.
Finally, write the "Lyrics" field with advanced V5 tags like [Verse 1: Sad Piano, 30s].
`, r.BPM, strconv.FormatFloat(r.TargetMinutes, 'f', -1, 64), r.CustomInstructions, strings.Join(blocks, "\n"))
}

// Block renders one segment of the blueprint. Empty annotations are sent as
// "None" and lyrics are cut to a short excerpt.
func Block(n int, s *timeline.Segment) string {
	return fmt.Sprintf(`Block %d:
- Type: %s
- Duration: %d seconds
- Style Tags: %s
- Specific Instruments: %s
- Narrative/Vibe: %s
- Lyrics Fragment: "%s..."
`, n, s.Kind.Label(), s.Duration, orNone(s.StyleTags), orNone(s.Instruments), orNone(s.Narrative), excerpt(s.Lyrics))
}

func orNone(s string) string {
	if s == "" {
		return none
	}
	return s
}

func excerpt(s string) string {
	rs := []rune(s)
	if len(rs) > lyricsExcerpt {
		rs = rs[:lyricsExcerpt]
	}
	return string(rs)
}
