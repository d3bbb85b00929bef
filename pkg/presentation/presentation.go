// Package presentation renders dialogues to an HTML fragment for reading and
// extracts them back when the reader switches to edit mode.
//
// Speaker and role are carried as data attributes on every turn block so that
// extraction never has to guess them from the rendered prose. Extract only
// understands fragments produced by Render.
package presentation

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-go-golems/multilogue/pkg/dialogue"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	ClassDialogue  = "dialogue"
	ClassTurn      = "turn"
	ClassSpeaker   = "speaker"
	ClassUtterance = "utterance"
	ClassError     = "dialogue-error"

	AttrSpeaker = "data-speaker"
	AttrRole    = "data-role"
)

// ErrorPlaceholder is shown instead of a fragment that could not be rendered or extracted.
const ErrorPlaceholder = `<p class="dialogue-error">Error loading content. Please try editing or loading a new file.</p>`

var ErrExtraction = errors.New("could not extract dialogue from markup")

var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n\s*`)

// Render builds the display fragment for d.
func Render(d dialogue.Dialogue) (string, error) {
	root := element(atom.Div, ClassDialogue)
	if !d.IsEmpty() {
		root.AppendChild(text("\n"))
	}
	for _, t := range d {
		root.AppendChild(renderTurn(t))
		root.AppendChild(text("\n"))
	}

	var sb strings.Builder
	if err := html.Render(&sb, root); err != nil {
		return "", errors.Wrap(err, "could not render dialogue")
	}
	return sb.String(), nil
}

// RenderOrPlaceholder never fails; render errors yield ErrorPlaceholder.
func RenderOrPlaceholder(d dialogue.Dialogue) string {
	s, err := Render(d)
	if err != nil {
		log.Error().Err(err).Msg("Error rendering dialogue")
		return ErrorPlaceholder
	}
	return s
}

func renderTurn(t dialogue.Turn) *html.Node {
	n := element(atom.Div, ClassTurn)
	n.Attr = append(n.Attr,
		html.Attribute{Key: AttrSpeaker, Val: t.Speaker},
		html.Attribute{Key: AttrRole, Val: string(t.Role)},
	)

	n.AppendChild(text("\n"))
	speaker := element(atom.P, ClassSpeaker)
	speaker.AppendChild(text(t.Speaker))
	n.AppendChild(speaker)
	n.AppendChild(text("\n"))

	utterance := element(atom.Div, ClassUtterance)
	for _, para := range Paragraphs(t.Content) {
		p := element(atom.P, "")
		for i, line := range strings.Split(para, "\n") {
			if i > 0 {
				p.AppendChild(&html.Node{Type: html.ElementNode, DataAtom: atom.Br, Data: "br"})
			}
			p.AppendChild(text(line))
		}
		utterance.AppendChild(p)
	}
	n.AppendChild(utterance)
	n.AppendChild(text("\n"))

	return n
}

// Paragraphs splits content at runs of blank lines. Empty content has no paragraphs.
func Paragraphs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.Trim(content, "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return paragraphBreak.Split(content, -1)
}

func element(a atom.Atom, class string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
	}
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// Extract reads a dialogue back from a fragment produced by Render. Anything
// Render would not have written, such as stray text, foreign elements, or
// turns without their speaker and utterance blocks, is an ErrExtraction.
func Extract(fragment string) (dialogue.Dialogue, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, errors.Wrap(ErrExtraction, err.Error())
	}

	root := doc.Find("div." + ClassDialogue).First()
	if root.Length() == 0 {
		return nil, errors.Wrap(ErrExtraction, "no dialogue block")
	}
	if err := onlyChildren(doc.Find("body"), "div."+ClassDialogue); err != nil {
		return nil, errors.Wrap(err, "outside the dialogue block")
	}
	if err := onlyChildren(root, "div."+ClassTurn); err != nil {
		return nil, errors.Wrap(err, "in the dialogue block")
	}

	ret := dialogue.New()
	var extractErr error
	root.ChildrenFiltered("div." + ClassTurn).EachWithBreak(func(i int, s *goquery.Selection) bool {
		t, err := extractTurn(s)
		if err != nil {
			extractErr = errors.Wrapf(err, "turn %d", i)
			return false
		}
		ret = append(ret, t)
		return true
	})
	if extractErr != nil {
		return nil, extractErr
	}

	return ret, nil
}

func extractTurn(s *goquery.Selection) (dialogue.Turn, error) {
	speaker, ok := s.Attr(AttrSpeaker)
	if !ok {
		return dialogue.Turn{}, errors.Wrap(ErrExtraction, "no speaker attribute")
	}
	roleAttr, ok := s.Attr(AttrRole)
	role := dialogue.Role(roleAttr)
	if !ok || !role.IsValid() {
		return dialogue.Turn{}, errors.Wrapf(ErrExtraction, "invalid role %q", roleAttr)
	}

	if err := onlyChildren(s, "p."+ClassSpeaker+", div."+ClassUtterance); err != nil {
		return dialogue.Turn{}, err
	}
	speakerBlock := s.ChildrenFiltered("p." + ClassSpeaker)
	if speakerBlock.Length() != 1 || speakerBlock.Text() != speaker {
		return dialogue.Turn{}, errors.Wrapf(ErrExtraction, "speaker block does not name %q", speaker)
	}
	utterance := s.ChildrenFiltered("div." + ClassUtterance)
	if utterance.Length() != 1 {
		return dialogue.Turn{}, errors.Wrap(ErrExtraction, "expected one utterance block")
	}
	if err := onlyChildren(utterance, "p"); err != nil {
		return dialogue.Turn{}, err
	}

	var paragraphs []string
	utterance.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
		paragraphs = append(paragraphs, paragraphText(p))
	})

	return dialogue.NewTurn(speaker, role, strings.Join(paragraphs, "\n\n")), nil
}

// onlyChildren fails if s holds anything besides whitespace, comments and
// elements matching selector.
func onlyChildren(s *goquery.Selection, selector string) error {
	var err error
	s.Contents().EachWithBreak(func(_ int, c *goquery.Selection) bool {
		n := c.Get(0)
		switch n.Type {
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				err = errors.Wrapf(ErrExtraction, "unexpected text %q", n.Data)
			}
		case html.ElementNode:
			if !c.Is(selector) {
				err = errors.Wrapf(ErrExtraction, "unexpected element <%s>", n.Data)
			}
		case html.CommentNode:
		default:
			err = errors.Wrap(ErrExtraction, "unexpected node")
		}
		return err == nil
	})
	return err
}

func paragraphText(p *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range p.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(&sb, c)
		}
	}
	return sb.String()
}

func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
	case html.ElementNode:
		if n.DataAtom == atom.Br {
			sb.WriteString("\n")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(sb, c)
		}
	}
}

// ExtractOrPlaceholder is used by display code: on failure the dialogue is nil
// and the returned fragment is ErrorPlaceholder.
func ExtractOrPlaceholder(fragment string) (dialogue.Dialogue, string) {
	d, err := Extract(fragment)
	if err != nil {
		log.Error().Err(err).Msg("Error converting markup to dialogue")
		return nil, ErrorPlaceholder
	}
	return d, RenderOrPlaceholder(d)
}
