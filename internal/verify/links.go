package verify

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/docsync/internal/forge"
)

// checkLinks validates the relative links of one document against the set
// of known documents and their anchors.
func checkLinks(report *Report, doc *document, byPath map[string]*document, docsDir string) {
	for _, dest := range extractLinkDestinations(doc.body) {
		if isExternalLink(dest) {
			continue
		}

		target, fragment, _ := strings.Cut(dest, "#")

		if target == "" {
			// Same-document fragment.
			if fragment != "" && !doc.hasAnchor(fragment) {
				report.add("broken_anchor", doc.relPath, dest)
			}
			continue
		}

		resolved := resolveRelative(doc.relPath, target)

		// Asset links (images, attachments) are checked against the
		// filesystem; only markdown targets have anchors to verify.
		if ext := path.Ext(resolved); ext != "" && !forge.IsMarkdownPath(resolved) {
			if _, err := os.Stat(filepath.Join(docsDir, filepath.FromSlash(resolved))); err != nil {
				report.add("broken_link", doc.relPath, dest)
			}
			continue
		}

		linked, ok := lookupDoc(byPath, resolved)
		if !ok {
			report.add("broken_link", doc.relPath, dest)
			continue
		}
		if fragment != "" && !linked.hasAnchor(fragment) {
			report.add("broken_anchor", doc.relPath, dest)
		}
	}
}

func (d *document) hasAnchor(fragment string) bool {
	_, ok := d.anchors[strings.ToLower(fragment)]
	return ok
}

// lookupDoc finds a document by docs-root-relative path, trying the literal
// path and the markdown extensions an extension-less link implies.
func lookupDoc(byPath map[string]*document, rel string) (*document, bool) {
	candidates := []string{rel}
	if path.Ext(rel) == "" {
		candidates = append(candidates, rel+".md", rel+".mdx",
			path.Join(rel, "index.md"), path.Join(rel, "index.mdx"))
	}
	for _, c := range candidates {
		if d, ok := byPath[c]; ok {
			return d, true
		}
	}
	return nil, false
}

func resolveRelative(fromRel, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Clean(path.Join(path.Dir(fromRel), target))
}

func isExternalLink(dest string) bool {
	return strings.Contains(dest, "://") ||
		strings.HasPrefix(dest, "mailto:") ||
		strings.HasPrefix(dest, "tel:") ||
		strings.HasPrefix(dest, "//")
}

// extractLinkDestinations pulls link and image destinations out of a
// markdown body, including links inside embedded HTML.
func extractLinkDestinations(body []byte) []string {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(body))

	var dests []string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Link:
			dests = append(dests, string(node.Destination))
		case *gmast.Image:
			dests = append(dests, string(node.Destination))
		case *gmast.AutoLink:
			dests = append(dests, string(node.URL(body)))
		case *gmast.HTMLBlock:
			dests = append(dests, htmlHrefs(rawHTML(node, body))...)
		case *gmast.RawHTML:
			dests = append(dests, htmlHrefs(rawHTMLSegments(node, body))...)
		}
		return gmast.WalkContinue, nil
	})
	return dests
}

// collectAnchors gathers the fragment targets a document exposes: slugified
// headings plus explicit id attributes in embedded HTML.
func collectAnchors(body []byte) map[string]struct{} {
	anchors := make(map[string]struct{})

	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(body))
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			if slug := slugify(nodeText(node, body)); slug != "" {
				anchors[slug] = struct{}{}
			}
		case *gmast.HTMLBlock:
			for _, id := range htmlIDs(rawHTML(node, body)) {
				anchors[strings.ToLower(id)] = struct{}{}
			}
		case *gmast.RawHTML:
			for _, id := range htmlIDs(rawHTMLSegments(node, body)) {
				anchors[strings.ToLower(id)] = struct{}{}
			}
		}
		return gmast.WalkContinue, nil
	})

	return anchors
}

func nodeText(n gmast.Node, source []byte) string {
	var sb strings.Builder
	_ = gmast.Walk(n, func(child gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if entering {
			if txt, ok := child.(*gmast.Text); ok {
				sb.Write(txt.Segment.Value(source))
			}
		}
		return gmast.WalkContinue, nil
	})
	return sb.String()
}

// slugify approximates the GitHub/Docusaurus heading slug: lowercase,
// spaces become hyphens, everything else non-alphanumeric drops out.
func slugify(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-':
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

func rawHTML(node *gmast.HTMLBlock, source []byte) string {
	var sb strings.Builder
	for i := 0; i < node.Lines().Len(); i++ {
		seg := node.Lines().At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

func rawHTMLSegments(node *gmast.RawHTML, source []byte) string {
	var sb strings.Builder
	for i := 0; i < node.Segments.Len(); i++ {
		seg := node.Segments.At(i)
		sb.Write(seg.Value(source))
	}
	return sb.String()
}

// htmlHrefs extracts href/src attributes from an HTML fragment.
func htmlHrefs(fragment string) []string {
	var hrefs []string
	walkHTML(fragment, func(node *html.Node) {
		for _, attr := range node.Attr {
			if attr.Key == "href" || attr.Key == "src" {
				hrefs = append(hrefs, attr.Val)
			}
		}
	})
	return hrefs
}

// htmlIDs extracts id and name attributes from an HTML fragment.
func htmlIDs(fragment string) []string {
	var ids []string
	walkHTML(fragment, func(node *html.Node) {
		for _, attr := range node.Attr {
			if attr.Key == "id" || (node.Data == "a" && attr.Key == "name") {
				ids = append(ids, attr.Val)
			}
		}
	})
	return ids
}

func walkHTML(fragment string, visit func(*html.Node)) {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			visit(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}
