package display

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var thoughtsMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// ThoughtsHTML renders the thoughts channel, which models usually write in
// markdown. Raw HTML in the source is not passed through.
func ThoughtsHTML(thoughts string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(`<div class="thoughts">` + "\n")
	if err := thoughtsMarkdown.Convert([]byte(thoughts), &buf); err != nil {
		return "", errors.Wrap(err, "could not render thoughts")
	}
	buf.WriteString("</div>")
	return buf.String(), nil
}
