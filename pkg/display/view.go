// Package display derives what the reader sees from the persisted dialogue
// text: which view is active, how the dialogue is rendered, and how notices
// and the thoughts channel are shown.
package display

import (
	"encoding/json"
	"strings"

	"github.com/go-go-golems/multilogue/pkg/cmj"
	"github.com/go-go-golems/multilogue/pkg/plato"
	"github.com/go-go-golems/multilogue/pkg/presentation"
	"github.com/pkg/errors"
)

type ViewMode string

const (
	ViewContent ViewMode = "content"
	ViewEdit    ViewMode = "edit"
	ViewPicker  ViewMode = "picker"
)

// DeriveViewMode picks the view for the persisted text. An explicit edit
// request wins; otherwise blank text shows the file picker.
func DeriveViewMode(text string, editing bool) ViewMode {
	switch {
	case editing:
		return ViewEdit
	case strings.TrimSpace(text) == "":
		return ViewPicker
	default:
		return ViewContent
	}
}

type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatCMJ  Format = "cmj"
	FormatTerm Format = "term"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatHTML, FormatCMJ, FormatTerm:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", errors.Errorf("unknown format %q (expected text, html, cmj or term)", s)
	}
}

const PickerMessage = "No dialogue yet. Load one with `multilogue load <file>`."

// Renderer produces the content view of the persisted text.
type Renderer struct {
	Codec *plato.Codec
	Width int
}

func NewRenderer(codec *plato.Codec) *Renderer {
	return &Renderer{Codec: codec, Width: 80}
}

// Render draws text in format. Blank text renders the picker message in every
// format except cmj, which yields an empty list. Render never fails on
// content: html falls back to the error placeholder.
func (r *Renderer) Render(text string, format Format) (string, error) {
	if DeriveViewMode(text, false) == ViewPicker && format != FormatCMJ {
		return PickerMessage, nil
	}

	d := r.Codec.Parse(text).Dialogue
	switch format {
	case FormatText, "":
		return r.Codec.Serialize(d), nil
	case FormatHTML:
		return presentation.RenderOrPlaceholder(d), nil
	case FormatCMJ:
		b, err := json.MarshalIndent(cmj.ToRequestRecords(d), "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "could not encode records")
		}
		return string(b), nil
	case FormatTerm:
		return RenderTerminal(d, r.Width), nil
	default:
		return "", errors.Errorf("unknown format %q", format)
	}
}
