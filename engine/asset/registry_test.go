package asset

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedLoader(name string) Loader {
	return func(context.Context, string, int) (Content, error) {
		return Reference{Locator: name}, nil
	}
}

func loaderName(t *testing.T, l Loader) string {
	t.Helper()
	c, err := l(context.Background(), "", 0)
	require.NoError(t, err)
	return c.(Reference).Locator
}

func TestRegistry_ExactBeatsGlob(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("*.obj", namedLoader("glob")))
	require.NoError(t, r.Register("cube.obj", namedLoader("exact")))

	l, kind, err := r.Resolve("cube.obj")
	require.NoError(t, err)
	assert.Equal(t, MatcherExact, kind)
	assert.Equal(t, "exact", loaderName(t, l))

	l, kind, err = r.Resolve("sphere.obj")
	require.NoError(t, err)
	assert.Equal(t, MatcherGlob, kind)
	assert.Equal(t, "glob", loaderName(t, l))
}

func TestRegistry_CachesPatternHits(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register("*.obj", namedLoader("glob")))

	_, kind, err := r.Resolve("sphere.obj")
	require.NoError(t, err)
	assert.Equal(t, MatcherGlob, kind)

	_, kind, err = r.Resolve("sphere.obj")
	require.NoError(t, err)
	assert.Equal(t, MatcherExact, kind)
}

func TestRegistry_RegexIsLastResort(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(`meshes/[a-z]+\.bin`, namedLoader("regex")))
	require.NoError(t, r.Register("meshes/*", namedLoader("glob")))

	l, kind, err := r.Resolve("meshes/rock.bin")
	require.NoError(t, err)
	assert.Equal(t, MatcherGlob, kind)
	assert.Equal(t, "glob", loaderName(t, l))

	l, kind, err = r.Resolve("meshes/deep/rock.bin")
	require.Error(t, err)
	assert.Nil(t, l)

	require.NoError(t, r.Register(`meshes/.+/[a-z]+\.bin`, namedLoader("deep")))
	l, kind, err = r.Resolve("meshes/deep/rock.bin")
	require.NoError(t, err)
	assert.Equal(t, MatcherRegex, kind)
	assert.Equal(t, "deep", loaderName(t, l))
}

func TestRegistry_NotFound(t *testing.T) {
	r := NewRegistry(nil)
	_, _, err := r.Resolve("nothing.here")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.True(t, errors.Is(r.Register("", namedLoader("x")), common.ErrInvalidArgument))
}

func TestGlobToRegexp(t *testing.T) {
	cases := []struct {
		glob    string
		locator string
		match   bool
	}{
		{"*.obj", "cube.obj", true},
		{"*.obj", "models/cube.obj", false},
		{"**.obj", "models/cube.obj", true},
		{"models/**/*.rmesh", "models/a/b/c.rmesh", true},
		{"models/**/*.rmesh", "models/c.rmesh", false},
		{"lod?.bin", "lod1.bin", true},
		{"lod?.bin", "lod10.bin", false},
		{"a+b.obj", "a+b.obj", true},
		{"a+b.obj", "aab.obj", false},
	}
	for _, tc := range cases {
		m, err := NewGlobMatcher(tc.glob)
		require.NoError(t, err)
		assert.Equal(t, tc.match, m.Match(tc.locator), "%s vs %s", tc.glob, tc.locator)
	}
}
