// Package plato converts between Plato text and dialogue.Dialogue.
//
// Plato text is a sequence of turns. Each turn opens with a marker line made of
// a speaker token and a colon, alone on its line, followed by the body:
//
//	Alex:
//	Is virtue teachable?
//
//	grok:
//	Let us first ask what virtue is.
//
// Bodies run until the next marker or the end of the text. Blank lines around a
// body are dropped while blank lines inside it are kept. A body line that would
// read as a marker, or that starts with a backslash, is written with one extra
// leading backslash which the parser removes again.
package plato

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-go-golems/multilogue/pkg/dialogue"
	"github.com/rs/zerolog/log"
)

const DefaultSpeaker = "user"

const escapePrefix = `\`

var markerRegex = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.\-]*):[ \t]*$`)

// Codec carries the role table used to derive roles while parsing and the
// speaker given to text that has no markers.
type Codec struct {
	Roles          dialogue.RoleTable
	DefaultSpeaker string
}

func NewCodec(roles dialogue.RoleTable) *Codec {
	return &Codec{
		Roles:          roles,
		DefaultSpeaker: DefaultSpeaker,
	}
}

// ParseResult is the outcome of Parse. Fallback is set when the text contained
// no marker at all and was kept whole as a single default-speaker turn.
type ParseResult struct {
	Dialogue dialogue.Dialogue
	Fallback bool
}

// Parse never fails. Malformed text degrades to a single turn holding all of it.
func (c *Codec) Parse(original string) ParseResult {
	text := normalizeNewlines(original)
	if strings.TrimSpace(text) == "" {
		return ParseResult{Dialogue: dialogue.New()}
	}

	lines := strings.Split(text, "\n")

	type section struct {
		speaker string
		lines   []string
	}
	var sections []*section
	var preamble []string

	for _, line := range lines {
		if speaker, ok := MarkerSpeaker(line); ok {
			sections = append(sections, &section{speaker: speaker})
			continue
		}
		if len(sections) == 0 {
			preamble = append(preamble, line)
			continue
		}
		cur := sections[len(sections)-1]
		cur.lines = append(cur.lines, unescapeLine(line))
	}

	if len(sections) == 0 {
		log.Debug().Int("length", len(text)).Msg("no turn markers found, keeping text as a single turn")
		return ParseResult{
			Dialogue: dialogue.New(c.Roles.Turn(c.defaultSpeaker(), original)),
			Fallback: true,
		}
	}

	ret := dialogue.New()
	if body := trimBlankLines(preamble); len(body) > 0 {
		ret = append(ret, c.Roles.Turn(c.defaultSpeaker(), strings.Join(body, "\n")))
	}
	for _, s := range sections {
		body := trimBlankLines(s.lines)
		ret = append(ret, c.Roles.Turn(s.speaker, strings.Join(body, "\n")))
	}

	return ParseResult{Dialogue: ret}
}

// Serialize writes every turn as a marker line followed by its escaped content,
// separating turns with one blank line.
func (c *Codec) Serialize(d dialogue.Dialogue) string {
	var sb strings.Builder
	for i, t := range d {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(SpeakerToken(t.Speaker, c.defaultSpeaker()))
		sb.WriteString(":\n")
		sb.WriteString(escapeContent(t.Content))
	}
	return sb.String()
}

func (c *Codec) defaultSpeaker() string {
	if c.DefaultSpeaker == "" {
		return DefaultSpeaker
	}
	return c.DefaultSpeaker
}

// MarkerSpeaker reports whether line is a marker line and returns its speaker.
func MarkerSpeaker(line string) (string, bool) {
	m := markerRegex.FindStringSubmatch(strings.TrimSuffix(line, "\r"))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SpeakerToken turns an arbitrary speaker name into a valid marker token.
// Whitespace becomes an underscore and other invalid runes are dropped.
func SpeakerToken(speaker string, fallback string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(speaker) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(r)
		case r == '_':
			sb.WriteRune(r)
		case r == '.' || r == '-':
			if sb.Len() > 0 {
				sb.WriteRune(r)
			}
		case unicode.IsSpace(r):
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return fallback
	}
	return sb.String()
}

func escapeContent(content string) string {
	content = normalizeNewlines(content)
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if needsEscape(line) {
			lines[i] = escapePrefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func needsEscape(line string) bool {
	if strings.HasPrefix(line, escapePrefix) {
		return true
	}
	_, ok := MarkerSpeaker(line)
	return ok
}

func unescapeLine(line string) string {
	return strings.TrimPrefix(line, escapePrefix)
}

func trimBlankLines(lines []string) []string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
