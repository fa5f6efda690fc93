package sync

import (
	"testing"

	"github.com/inful/mdfp"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/frontmatter"
)

func githubSource() config.Source {
	return config.Source{
		Name:     "go",
		Branch:   "main",
		DocsRoot: "docs",
		Forge: config.ForgeRef{
			Type:     config.ForgeGitHub,
			BaseURL:  "https://github.com",
			FullName: "example/framework-go",
		},
	}
}

func TestTransform_SetsEditURLAndKeepsBody(t *testing.T) {
	input := []byte("---\ndescription: Install the framework\ntitle: Installation\n---\n# Installing\n\nBody text.\n")

	out, err := NewTransformer(githubSource()).Transform(input, "docs/install.md")
	require.NoError(t, err)

	doc, err := frontmatter.Parse(out)
	require.NoError(t, err)

	editURL, _ := doc.GetString("custom_edit_url")
	require.Equal(t, "https://github.com/example/framework-go/edit/main/docs/install.md", editURL)

	title, _ := doc.GetString("title")
	require.Equal(t, "Installation", title, "existing title must survive")

	desc, _ := doc.GetString("description")
	require.Equal(t, "Install the framework", desc)

	fp, _ := doc.GetString(mdfp.FingerprintField)
	require.NotEmpty(t, fp)

	require.Equal(t, "# Installing\n\nBody text.\n", string(doc.Body))
}

func TestTransform_DerivesTitleFromHeading(t *testing.T) {
	input := []byte("# Getting *Started* Guide\n\nIntro.\n")

	out, err := NewTransformer(githubSource()).Transform(input, "docs/getting-started.md")
	require.NoError(t, err)

	doc, err := frontmatter.Parse(out)
	require.NoError(t, err)
	title, _ := doc.GetString("title")
	require.Equal(t, "Getting Started Guide", title)
}

func TestTransform_DerivesTitleFromFilename(t *testing.T) {
	input := []byte("No heading here, just prose.\n")

	out, err := NewTransformer(githubSource()).Transform(input, "docs/consumer-driven_contracts.md")
	require.NoError(t, err)

	doc, err := frontmatter.Parse(out)
	require.NoError(t, err)
	title, _ := doc.GetString("title")
	require.Equal(t, "Consumer Driven Contracts", title)
}

func TestTransform_Deterministic(t *testing.T) {
	input := []byte("---\ntitle: Guide\nsidebar_position: 2\n---\nBody.\n")
	tr := NewTransformer(githubSource())

	first, err := tr.Transform(input, "docs/guide.md")
	require.NoError(t, err)
	second, err := tr.Transform(input, "docs/guide.md")
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Transforming its own output is a fixed point, which is what makes
	// repeated sync runs produce no git diff.
	again, err := tr.Transform(first, "docs/guide.md")
	require.NoError(t, err)
	require.Equal(t, first, again)
}

func TestTransform_GitLabEditURL(t *testing.T) {
	src := config.Source{
		Name: "jvm", Branch: "master", DocsRoot: "docs",
		Forge: config.ForgeRef{
			Type:     config.ForgeGitLab,
			BaseURL:  "https://gitlab.com",
			FullName: "example/framework-jvm",
		},
	}

	out, err := NewTransformer(src).Transform([]byte("# JVM\n"), "docs/jvm.md")
	require.NoError(t, err)

	doc, err := frontmatter.Parse(out)
	require.NoError(t, err)
	editURL, _ := doc.GetString("custom_edit_url")
	require.Equal(t, "https://gitlab.com/example/framework-jvm/-/edit/master/docs/jvm.md", editURL)
}

func TestFirstHeading(t *testing.T) {
	require.Equal(t, "Title", firstHeading([]byte("# Title\n\n## Sub\n")))
	require.Equal(t, "Second", firstHeading([]byte("intro line\n\n# Second\n")), "heading need not be first line")
	require.Empty(t, firstHeading([]byte("## Only a subheading\n")))
	require.Empty(t, firstHeading(nil))
}
