package forge

import (
	"path"
	"strings"
)

// IsMarkdownPath reports whether a repository path names a markdown document.
func IsMarkdownPath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".mdx":
		return true
	}
	return false
}

func isUnder(p, root string) bool {
	if root == "" || root == "." {
		return true
	}
	root = strings.TrimSuffix(root, "/")
	return p == root || strings.HasPrefix(p, root+"/")
}
