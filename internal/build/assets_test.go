package build

import (
	"compress/gzip"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/platform"
)

func TestRewriteAssetRefsQuotedForm(t *testing.T) {
	src := `const logo = "/img/logo.png"; const other = "/not-public.js";`
	publicFiles := map[string]bool{"/img/logo.png": true}

	out := rewriteAssetRefs(src, publicFiles, "/assets-abcd1234")

	require.Contains(t, out, `"/assets-abcd1234/img/logo.png"`)
	require.Contains(t, out, `"/not-public.js"`)
}

func TestRewriteAssetRefsBareURLForm(t *testing.T) {
	src := `.hero { background: url(/img/hero.jpg) no-repeat; }`
	publicFiles := map[string]bool{"/img/hero.jpg": true}

	out := rewriteAssetRefs(src, publicFiles, "/assets-abcd1234")

	require.Contains(t, out, "url(/assets-abcd1234/img/hero.jpg)")
}

func TestCompressDirWritesGzipAndBrotliSiblings(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"dist/assets-abc/peaque.js": strings.Repeat("console.log(1);", 100),
	})
	require.NoError(t, fsys.SetModTime("dist/assets-abc/peaque.js", time.Unix(1000, 0)))

	require.NoError(t, CompressDir(fsys, "dist/assets-abc"))

	require.True(t, fsys.Exists("dist/assets-abc/peaque.js.gz"))
	require.True(t, fsys.Exists("dist/assets-abc/peaque.js.br"))

	gzData, err := fsys.ReadFile("dist/assets-abc/peaque.js.gz")
	require.NoError(t, err)
	r, err := gzip.NewReader(strings.NewReader(string(gzData)))
	require.NoError(t, err)
	decompressed, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("console.log(1);", 100), string(decompressed))

	gzInfo, err := fsys.Stat("dist/assets-abc/peaque.js.gz")
	require.NoError(t, err)
	srcInfo, err := fsys.Stat("dist/assets-abc/peaque.js")
	require.NoError(t, err)
	require.True(t, gzInfo.ModTime().Equal(srcInfo.ModTime()))
}

func TestCompressDirIsIdempotent(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"dist/assets-abc/peaque.js": "console.log(1);",
	})
	require.NoError(t, fsys.SetModTime("dist/assets-abc/peaque.js", time.Unix(1000, 0)))

	require.NoError(t, CompressDir(fsys, "dist/assets-abc"))
	firstGz, err := fsys.ReadFile("dist/assets-abc/peaque.js.gz")
	require.NoError(t, err)

	require.NoError(t, CompressDir(fsys, "dist/assets-abc"))
	secondGz, err := fsys.ReadFile("dist/assets-abc/peaque.js.gz")
	require.NoError(t, err)

	require.Equal(t, firstGz, secondGz)
}
