package loader

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-resident/common"
	"github.com/Carmen-Shannon/oxy-resident/engine/asset"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMesh(t *testing.T, path string, m asset.Mesh) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, m, CompressionLZ4))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestLODVariant(t *testing.T) {
	assert.Equal(t, "a/b.lod2.rmesh", LODVariant("a/b.rmesh", 2))
	assert.Equal(t, "s3://bk/m.lod1.rmesh", LODVariant("s3://bk/m.rmesh", 1))
}

func TestParseObjectLocator(t *testing.T) {
	bucket, key, ok := ParseObjectLocator("s3://assets/meshes/tri.rmesh")
	require.True(t, ok)
	assert.Equal(t, "assets", bucket)
	assert.Equal(t, "meshes/tri.rmesh", key)

	_, _, ok = ParseObjectLocator("s3://assets")
	assert.False(t, ok)
	_, _, ok = ParseObjectLocator("meshes/tri.rmesh")
	assert.False(t, ok)
}

func TestLoader_LoadsAndCachesMesh(t *testing.T) {
	root := t.TempDir()
	writeMesh(t, filepath.Join(root, "meshes", "tri.rmesh"), testMesh(3, 2))

	l := NewLoader(WithRoot(root))
	c, err := l.Load(context.Background(), "meshes/tri.rmesh", 0)
	require.NoError(t, err)
	m, ok := c.(asset.Mesh)
	require.True(t, ok)
	assert.Equal(t, "meshes/tri.rmesh", m.ID)
	assert.Len(t, m.Indices, 6)

	require.NoError(t, os.Remove(filepath.Join(root, "meshes", "tri.rmesh")))
	again, err := l.Load(context.Background(), "meshes/tri.rmesh", 0)
	require.NoError(t, err)
	assert.Equal(t, c, again)
	assert.Equal(t, c, l.Get("meshes/tri.rmesh", 0))
	assert.Len(t, l.Contents(), 1)
}

func TestLoader_PrefersLODVariant(t *testing.T) {
	root := t.TempDir()
	writeMesh(t, filepath.Join(root, "m.rmesh"), testMesh(4, 3))
	writeMesh(t, filepath.Join(root, "m.lod1.rmesh"), testMesh(3, 2))

	l := NewLoader(WithRoot(root))
	c, err := l.Load(context.Background(), "m.rmesh", 1)
	require.NoError(t, err)
	assert.Equal(t, "m.lod1.rmesh", c.(asset.Mesh).ID)

	c, err = l.Load(context.Background(), "m.rmesh", 2)
	require.NoError(t, err)
	assert.Equal(t, "m.rmesh", c.(asset.Mesh).ID)
}

func TestLoader_NotFoundAndUnsupported(t *testing.T) {
	l := NewLoader(WithRoot(t.TempDir()))
	_, err := l.Load(context.Background(), "missing.rmesh", 0)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = l.Load(context.Background(), "model.glb", 0)
	assert.True(t, errors.Is(err, common.ErrUnsupported))

	_, err = l.Load(context.Background(), "s3://bucket/m.rmesh", 0)
	assert.True(t, errors.Is(err, common.ErrInvalidArgument))
}

func TestLoader_RefFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "alias"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "alias", "hero.ref"),
		[]byte("# hero mesh\n\n../meshes/hero.rmesh\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "alias", "remote.ref"),
		[]byte("s3://assets/hero.rmesh\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "alias", "blank.ref"), []byte("# nothing\n"), 0o644))

	l := NewLoader(WithRoot(root))
	c, err := l.Load(context.Background(), "alias/hero.ref", 0)
	require.NoError(t, err)
	assert.Equal(t, asset.Reference{Locator: "meshes/hero.rmesh"}, c)

	c, err = l.Load(context.Background(), "alias/remote.ref", 0)
	require.NoError(t, err)
	assert.Equal(t, asset.Reference{Locator: "s3://assets/hero.rmesh"}, c)

	_, err = l.Load(context.Background(), "alias/blank.ref", 0)
	assert.ErrorContains(t, err, "names no target")
}

func TestLoader_LoadReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, testMesh(3, 2), CompressionNone))

	l := NewLoader()
	c, err := l.LoadReader("inline", &buf, ".RMESH")
	require.NoError(t, err)
	assert.Equal(t, "inline", c.(asset.Mesh).ID)
	assert.Equal(t, c, l.Get("inline", 0))

	_, err = l.LoadReader("other", bytes.NewReader(nil), ".obj")
	assert.True(t, errors.Is(err, common.ErrUnsupported))
}

func TestLoader_WithContent(t *testing.T) {
	l := NewLoader(WithContent("virtual.rmesh:0", asset.Empty{}))
	c, err := l.Load(context.Background(), "virtual.rmesh", 0)
	require.NoError(t, err)
	assert.Equal(t, asset.Empty{}, c)
}

func TestLoader_Register(t *testing.T) {
	root := t.TempDir()
	writeMesh(t, filepath.Join(root, "tri.rmesh"), testMesh(3, 2))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tri.ref"), []byte("tri.rmesh\n"), 0o644))

	l := NewLoader(WithRoot(root))
	reg := asset.NewRegistry(nil)
	require.NoError(t, l.Register(reg))

	_, kind, err := reg.Resolve("tri.ref")
	require.NoError(t, err)
	assert.Equal(t, asset.MatcherGlob, kind)

	load, _, err := reg.Resolve("deep/dir/x.rmesh")
	require.NoError(t, err)
	_, err = load(context.Background(), "tri.rmesh", 0)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := asset.NewPipeline(nil, asset.WithRegistry(reg), asset.WithWorkers(1))
	st, err := p.Request(asset.Reference{Locator: "missing.glb"}, 0)
	require.NoError(t, err)
	assert.IsType(t, asset.ErrorState{}, st)
	require.NoError(t, p.Wait(ctx))
}
