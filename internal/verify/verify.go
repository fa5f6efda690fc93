// Package verify inspects a documentation site checkout and reports
// structural problems that a sync run cannot fix on its own: docs missing
// from the sidebar, sidebar entries pointing at nothing, and broken
// relative links between documents.
//
// Verification is report-only. Sidebar composition stays a human decision,
// so findings never fail a sync run.
package verify

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/adrg/frontmatter"

	"git.home.luguber.info/inful/docsync/internal/forge"
)

// Finding is one reported problem.
type Finding struct {
	Kind string // orphan_doc|missing_sidebar_ref|broken_link|broken_anchor
	Doc  string // docs-root-relative path of the affected document
	Ref  string // the sidebar doc ID or link destination at fault
}

// Report is the outcome of a verification pass.
type Report struct {
	DocsScanned int
	Findings    []Finding
}

// Clean reports whether the pass found nothing to complain about.
func (r *Report) Clean() bool { return len(r.Findings) == 0 }

func (r *Report) add(kind, doc, ref string) {
	r.Findings = append(r.Findings, Finding{Kind: kind, Doc: doc, Ref: ref})
}

// docMeta is the typed slice of frontmatter verification cares about.
type docMeta struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Slug  string `yaml:"slug"`
}

// document is one markdown file under the docs root.
type document struct {
	relPath string // docs-root relative, slash separated
	id      string // Docusaurus doc ID
	meta    docMeta
	body    []byte
	anchors map[string]struct{}
}

// Run scans the docs tree rooted at docsDir and checks it against the
// sidebars file (empty sidebarsPath skips reachability checking).
func Run(docsDir, sidebarsPath string) (*Report, error) {
	report := &Report{}

	docs, err := loadDocs(docsDir)
	if err != nil {
		return nil, err
	}
	report.DocsScanned = len(docs)

	byID := make(map[string]*document, len(docs))
	byPath := make(map[string]*document, len(docs))
	for _, d := range docs {
		byID[d.id] = d
		byPath[d.relPath] = d
	}

	if sidebarsPath != "" {
		ids, err := LoadSidebarIDs(sidebarsPath)
		if err != nil {
			return nil, err
		}
		checkReachability(report, docs, byID, ids)
	}

	for _, d := range docs {
		checkLinks(report, d, byPath, docsDir)
	}

	return report, nil
}

// loadDocs walks the docs tree and parses every markdown file.
func loadDocs(docsDir string) ([]*document, error) {
	var docs []*document

	err := filepath.WalkDir(docsDir, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !forge.IsMarkdownPath(entry.Name()) {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(docsDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		var meta docMeta
		body, err := frontmatter.Parse(bytes.NewReader(content), &meta)
		if err != nil {
			// Unparseable frontmatter still leaves a linkable body.
			body = content
			meta = docMeta{}
		}

		docs = append(docs, &document{
			relPath: rel,
			id:      docID(rel, meta),
			meta:    meta,
			body:    body,
			anchors: collectAnchors(body),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan docs tree: %w", err)
	}

	return docs, nil
}

// docID derives the Docusaurus document ID: the extension-less path, with
// the last segment replaced by an explicit frontmatter id when present.
func docID(relPath string, meta docMeta) string {
	id := strings.TrimSuffix(relPath, path.Ext(relPath))
	if meta.ID != "" {
		dir := path.Dir(id)
		if dir == "." {
			return meta.ID
		}
		return path.Join(dir, meta.ID)
	}
	return id
}

func checkReachability(report *Report, docs []*document, byID map[string]*document, sidebarIDs map[string]struct{}) {
	for id := range sidebarIDs {
		if _, ok := byID[id]; !ok {
			report.add("missing_sidebar_ref", "", id)
		}
	}
	for _, d := range docs {
		if _, ok := sidebarIDs[d.id]; !ok {
			report.add("orphan_doc", d.relPath, d.id)
		}
	}
}
