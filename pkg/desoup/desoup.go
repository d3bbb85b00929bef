// Package desoup flattens the reply payloads of model providers into plain text.
//
// Providers send visible content and reasoning either as a plain string or as a
// sequence of typed segments ({"type":"text","text":...}, {"type":"thinking",
// "thinking":...}, markup-wrapped strings, ...). Text joins the segments in order
// without adding separators and strips any wrapping markup.
package desoup

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
)

// segmentTextFields are looked up in order on object segments; the first present wins.
var segmentTextFields = []string{
	"text",
	"content",
	"thinking",
	"reasoning",
	"reasoning_content",
	"summary",
	"value",
}

// Text flattens a decoded JSON value. Absent or empty input yields "".
func Text(v interface{}) string {
	switch v_ := v.(type) {
	case nil:
		return ""
	case string:
		return v_
	case []interface{}:
		var sb strings.Builder
		for _, segment := range v_ {
			sb.WriteString(segmentText(segment))
		}
		return sb.String()
	case map[string]interface{}:
		return objectText(v_)
	case json.RawMessage:
		return RawText(v_)
	default:
		return ""
	}
}

// RawText decodes raw JSON and flattens it. Undecodable payloads yield "".
func RawText(raw json.RawMessage) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Debug().Err(err).Msg("could not decode reply segment, ignoring it")
		return ""
	}
	return Text(v)
}

func segmentText(segment interface{}) string {
	switch s := segment.(type) {
	case string:
		return StripMarkup(s)
	case []interface{}, map[string]interface{}:
		return Text(s)
	default:
		return ""
	}
}

func objectText(o map[string]interface{}) string {
	for _, field := range segmentTextFields {
		v, ok := o[field]
		if !ok || v == nil {
			continue
		}
		return segmentText(v)
	}
	return ""
}

// StripMarkup removes tags and decodes entities, keeping the text in order.
// Strings without any tag are returned unchanged.
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				log.Debug().Err(z.Err()).Msg("could not tokenize segment, keeping it verbatim")
				return s
			}
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}

// IsEmpty reports whether the flattened text has no visible characters.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}
