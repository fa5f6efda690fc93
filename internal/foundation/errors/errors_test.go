package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilder_DefaultsToErrorSeverityNoRetry(t *testing.T) {
	err := NewError(CategorySync, "sync failed").Build()
	require.Equal(t, CategorySync, err.Category())
	require.Equal(t, SeverityError, err.Severity())
	require.Equal(t, RetryNever, err.RetryStrategy())
	require.False(t, err.CanRetry())
}

func TestWrapError_PreservesCauseChain(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := WrapError(cause, CategoryGit, "clone failed").Build()
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "clone failed")
	require.Contains(t, err.Error(), "connection refused")
}

func TestConvenienceConstructors_SetExpectedClassification(t *testing.T) {
	cases := []struct {
		err      *ClassifiedError
		category ErrorCategory
		retry    RetryStrategy
	}{
		{ConfigError("bad config").Build(), CategoryConfig, RetryNever},
		{GitError("push rejected").Build(), CategoryGit, RetryBackoff},
		{ForgeError("api timeout").Build(), CategoryForge, RetryBackoff},
		{AuthError("bad token").Build(), CategoryAuth, RetryUserAction},
		{SyncError("transform failed").Build(), CategorySync, RetryNever},
	}
	for _, c := range cases {
		require.Equal(t, c.category, c.err.Category())
		require.Equal(t, c.retry, c.err.RetryStrategy())
	}
}

func TestWithContext_ReturnsNewErrorWithMergedContext(t *testing.T) {
	base := SyncError("write failed").WithContext("source", "go").Build()
	derived := base.WithContext("path", "docs/guide.md")

	v, ok := derived.Context().Get("source")
	require.True(t, ok)
	require.Equal(t, "go", v)
	v, ok = derived.Context().Get("path")
	require.True(t, ok)
	require.Equal(t, "docs/guide.md", v)

	_, ok = base.Context().Get("path")
	require.False(t, ok)
}

func TestHasCategory_MatchesOnlyClassifiedErrors(t *testing.T) {
	require.True(t, HasCategory(GitError("x").Build(), CategoryGit))
	require.False(t, HasCategory(stderrors.New("x"), CategoryGit))
}

func TestCLIAdapter_ExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	require.Equal(t, 0, a.ExitCodeFor(nil))
	require.Equal(t, 1, a.ExitCodeFor(stderrors.New("plain")))
	require.Equal(t, 2, a.ExitCodeFor(ValidationError("v").Build()))
	require.Equal(t, 7, a.ExitCodeFor(ConfigError("c").Build()))
	require.Equal(t, 8, a.ExitCodeFor(GitError("g").Build()))
	require.Equal(t, 11, a.ExitCodeFor(SyncError("s").Build()))
}

func TestCLIAdapter_FormatError_VerboseIncludesClassification(t *testing.T) {
	err := GitError("push rejected").Build()
	require.Contains(t, NewCLIErrorAdapter(true, nil).FormatError(err), "[git:error]")
	require.Equal(t, "Error: push rejected", NewCLIErrorAdapter(false, nil).FormatError(err))
}
