package forge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
)

func TestEditURL_PerForgeShapes(t *testing.T) {
	cases := []struct {
		name    string
		forge   config.ForgeType
		baseURL string
		want    string
	}{
		{
			name:    "github",
			forge:   config.ForgeGitHub,
			baseURL: "https://github.com",
			want:    "https://github.com/example/repo/edit/main/docs/guide.md",
		},
		{
			name:    "gitlab",
			forge:   config.ForgeGitLab,
			baseURL: "https://gitlab.example.com/",
			want:    "https://gitlab.example.com/example/repo/-/edit/main/docs/guide.md",
		},
		{
			name:    "forgejo",
			forge:   config.ForgeForgejo,
			baseURL: "https://code.example.com",
			want:    "https://code.example.com/example/repo/_edit/main/docs/guide.md",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EditURL(tc.forge, tc.baseURL, "example/repo", "main", "docs/guide.md")
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEditURL_InsufficientInputs(t *testing.T) {
	require.Empty(t, EditURL(config.ForgeGitHub, "", "example/repo", "main", "docs/guide.md"))
	require.Empty(t, EditURL(config.ForgeGitHub, "https://github.com", "", "main", "docs/guide.md"))
	require.Empty(t, EditURL("bitbucket", "https://bitbucket.org", "example/repo", "main", "docs/guide.md"))
}

func TestProviderFor(t *testing.T) {
	for _, ft := range []config.ForgeType{config.ForgeGitHub, config.ForgeGitLab, config.ForgeForgejo} {
		p, err := ProviderFor(ft)
		require.NoError(t, err)
		require.Equal(t, ft, p.Type())
	}
	_, err := ProviderFor("svn")
	require.Error(t, err)
}
