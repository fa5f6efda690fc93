package sync

import (
	"path"
	"strings"

	"github.com/inful/mdfp"
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/forge"
	"git.home.luguber.info/inful/docsync/internal/frontmatter"
)

const (
	fieldEditURL = "custom_edit_url"
	fieldTitle   = "title"
)

// Transformer rewrites markdown documents for publication: it points
// custom_edit_url back at the source forge, fills in a title when the
// document has none, and stamps a content fingerprint.
//
// The output is a pure function of the input document, so re-running the
// transform over an unchanged source produces byte-identical files.
type Transformer struct {
	src        config.Source
	titleCaser cases.Caser
}

// NewTransformer creates a transformer for one source.
func NewTransformer(src config.Source) *Transformer {
	return &Transformer{src: src, titleCaser: cases.Title(language.English)}
}

// Transform rewrites one markdown document. repoRel is the document's path
// relative to the source repository root.
func (t *Transformer) Transform(content []byte, repoRel string) ([]byte, error) {
	doc, err := frontmatter.Parse(content)
	if err != nil {
		return nil, err
	}

	editURL := forge.EditURL(t.src.Forge.Type, t.src.Forge.BaseURL, t.src.Forge.FullName, t.src.Branch, repoRel)
	if editURL != "" {
		doc.Set(fieldEditURL, editURL)
	}

	if _, ok := doc.GetString(fieldTitle); !ok {
		doc.Set(fieldTitle, t.deriveTitle(doc.Body, repoRel))
	}

	fp, err := computeFingerprint(doc.Fields, doc.Body)
	if err != nil {
		return nil, err
	}
	doc.Set(mdfp.FingerprintField, fp)

	return doc.Render()
}

// deriveTitle prefers the document's first level-1 heading and falls back to
// a humanized form of the file name.
func (t *Transformer) deriveTitle(body []byte, repoRel string) string {
	if h := firstHeading(body); h != "" {
		return h
	}
	return t.humanizeFilename(repoRel)
}

func (t *Transformer) humanizeFilename(repoRel string) string {
	name := path.Base(repoRel)
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return t.titleCaser.String(name)
}

// firstHeading returns the text of the first level-1 heading, or "".
func firstHeading(body []byte) string {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(body))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok || h.Level != 1 {
			return gmast.WalkContinue, nil
		}
		title = headingText(h, body)
		return gmast.WalkStop, nil
	})
	return strings.TrimSpace(title)
}

// headingText collects the literal text under a heading node, ignoring
// inline markup.
func headingText(h *gmast.Heading, source []byte) string {
	var sb strings.Builder
	_ = gmast.Walk(h, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if txt, ok := n.(*gmast.Text); ok {
			sb.Write(txt.Segment.Value(source))
		}
		return gmast.WalkContinue, nil
	})
	return sb.String()
}

// computeFingerprint hashes the document's frontmatter (minus the fingerprint
// field itself) together with its body.
func computeFingerprint(fields map[string]any, body []byte) (string, error) {
	fieldsForHash := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == mdfp.FingerprintField {
			continue
		}
		fieldsForHash[k] = v
	}

	fmForHash := ""
	if len(fieldsForHash) > 0 {
		serialized, err := frontmatter.Serialize(fieldsForHash, frontmatter.Style{Newline: "\n"})
		if err != nil {
			return "", err
		}
		fmForHash = strings.TrimSuffix(string(serialized), "\n")
	}

	return mdfp.CalculateFingerprintFromParts(fmForHash, string(body)), nil
}
