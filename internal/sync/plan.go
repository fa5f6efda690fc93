// Package sync implements the pipeline of a sync run: discover documentation
// files in a source checkout, rewrite their frontmatter, mirror them into the
// site repository's owned subtree, and commit the result.
package sync

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/forge"
)

// Entry is one file scheduled for publication.
type Entry struct {
	// AbsPath is the file's location in the source checkout.
	AbsPath string
	// RepoRel is the path relative to the source repository root, slash
	// separated. Edit URLs are built from it.
	RepoRel string
	// DestRel is the path relative to the site docs root, slash separated:
	// the source's destination joined with the full source-relative path, so
	// docs/guide.md from source "go" with destination implementation_guides/go
	// lands at implementation_guides/go/docs/guide.md.
	DestRel string
	// Markdown marks files that go through the frontmatter transform.
	// Everything else (images, attachments) is copied verbatim.
	Markdown bool
}

// Plan is the set of files one source contributes to the site.
type Plan struct {
	Source  string
	Entries []Entry
}

// DestPaths returns the set of destination-relative paths in the plan.
func (p *Plan) DestPaths() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Entries))
	for _, e := range p.Entries {
		set[e.DestRel] = struct{}{}
	}
	return set
}

// DiscoverDocs walks a source checkout's docs root and plans the publication
// of every markdown file and sibling asset found there.
//
// Hidden files and directories are skipped. A missing docs root is an error:
// it almost always means a misconfigured path rather than an empty docs tree.
func DiscoverDocs(checkoutPath string, src config.Source) (*Plan, error) {
	docsDir := filepath.Join(checkoutPath, filepath.FromSlash(src.DocsRoot))

	info, err := os.Stat(docsDir)
	if err != nil {
		return nil, errors.SyncError(fmt.Sprintf("docs root %q not found in source %s", src.DocsRoot, src.Name)).
			WithContext("path", docsDir).Build()
	}
	if !info.IsDir() {
		return nil, errors.SyncError(fmt.Sprintf("docs root %q of source %s is not a directory", src.DocsRoot, src.Name)).Build()
	}

	plan := &Plan{Source: src.Name}

	err = filepath.WalkDir(docsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(docsDir, p)
		if err != nil {
			return err
		}
		repoRel := path.Join(src.DocsRoot, filepath.ToSlash(rel))

		plan.Entries = append(plan.Entries, Entry{
			AbsPath:  p,
			RepoRel:  repoRel,
			DestRel:  path.Join(src.Destination, repoRel),
			Markdown: forge.IsMarkdownPath(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk docs root of %s: %w", src.Name, err)
	}

	return plan, nil
}
