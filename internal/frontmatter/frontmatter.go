// Package frontmatter splits, parses, and deterministically rewrites the
// YAML metadata block (`---` delimited) of markdown documents.
//
// Rewriting is byte-stable: the same fields and body always serialize to the
// same output, which is what makes sync runs idempotent at the git level.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// ErrUnterminated indicates the document opened a frontmatter block but never
// closed it.
var ErrUnterminated = errors.New("frontmatter: opening delimiter without closing delimiter")

// Style captures the newline convention of the original document so a
// rewritten file keeps its line endings.
type Style struct {
	Newline string
}

// DefaultStyle is used when a document carries no newline at all.
var DefaultStyle = Style{Newline: "\n"}

// Doc is a markdown document decomposed into metadata fields and raw body.
type Doc struct {
	Fields map[string]any
	Body   []byte
	// HasFrontmatter records whether the original document carried a
	// metadata block. Rewrites of documents without one get a block added
	// only when fields are set explicitly.
	HasFrontmatter bool
	Style          Style
}

// Parse decomposes a markdown document.
//
// A document without a leading `---` line parses as body-only with an empty
// fields map.
func Parse(content []byte) (*Doc, error) {
	style := detectStyle(content)
	delim := []byte("---" + style.Newline)

	if !bytes.HasPrefix(content, delim) {
		return &Doc{Fields: map[string]any{}, Body: content, Style: style}, nil
	}

	rest := content[len(delim):]

	closing := []byte(style.Newline + "---" + style.Newline)

	var raw, body []byte
	switch end := bytes.Index(rest, closing); {
	case bytes.HasPrefix(rest, delim):
		// Empty block: `---\n---\n`.
		raw, body = nil, rest[len(delim):]
	case bytes.Equal(rest, []byte("---")):
		// Empty block closed at EOF.
		raw, body = nil, nil
	case end >= 0:
		raw = rest[:end+len(style.Newline)]
		body = rest[end+len(closing):]
	case bytes.HasSuffix(rest, []byte(style.Newline+"---")):
		// Closing delimiter on the final line with no trailing newline.
		raw, body = rest[:len(rest)-3], nil
	default:
		return nil, ErrUnterminated
	}

	fields := map[string]any{}
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		if fields == nil {
			fields = map[string]any{}
		}
	}

	return &Doc{Fields: fields, Body: body, HasFrontmatter: true, Style: style}, nil
}

// Render reassembles the document. Documents that had a metadata block (or
// gained fields) are emitted with deterministically serialized YAML; bare
// documents come back as their body.
func (d *Doc) Render() ([]byte, error) {
	if !d.HasFrontmatter && len(d.Fields) == 0 {
		return d.Body, nil
	}

	nl := d.Style.Newline
	if nl == "" {
		nl = DefaultStyle.Newline
	}

	raw, err := Serialize(d.Fields, d.Style)
	if err != nil {
		return nil, err
	}

	delim := "---" + nl
	out := make([]byte, 0, 2*len(delim)+len(raw)+len(d.Body))
	out = append(out, delim...)
	out = append(out, raw...)
	out = append(out, delim...)
	out = append(out, d.Body...)
	return out, nil
}

// Set assigns a metadata field. Setting a field on a bare document gives it a
// metadata block on render.
func (d *Doc) Set(key string, value any) {
	if d.Fields == nil {
		d.Fields = map[string]any{}
	}
	d.Fields[key] = value
	d.HasFrontmatter = true
}

// GetString returns a string-typed field.
func (d *Doc) GetString(key string) (string, bool) {
	v, ok := d.Fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func detectStyle(content []byte) Style {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return Style{Newline: "\r\n"}
	}
	return DefaultStyle
}
