package build

import (
	"bytes"
	"compress/gzip"
	"io"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"github.com/andybalholm/brotli"

	"peaque.dev/peaque/internal/platform"
)

// quotedAssetRef matches a quoted literal absolute path, the shape a
// bundled import or a CSS "url()" reference takes once esbuild has
// inlined it.
var quotedAssetRef = regexp.MustCompile(`(["'])(/[^"'\s)]+)(["'])`)

// bareURLAssetRef matches an unquoted url(/path) CSS reference.
var bareURLAssetRef = regexp.MustCompile(`url\((/[^"')\s]+)\)`)

// rewriteAssetRefs prefixes every literal absolute path present in
// publicFiles with assetPrefix, in both quoted and unquoted url()
// forms, per spec §4.H step 3.
func rewriteAssetRefs(src string, publicFiles map[string]bool, assetPrefix string) string {
	out := quotedAssetRef.ReplaceAllStringFunc(src, func(m string) string {
		groups := quotedAssetRef.FindStringSubmatch(m)
		if !publicFiles[groups[2]] {
			return m
		}
		return groups[1] + assetPrefix + groups[2] + groups[3]
	})
	out = bareURLAssetRef.ReplaceAllStringFunc(out, func(m string) string {
		groups := bareURLAssetRef.FindStringSubmatch(m)
		if !publicFiles[groups[1]] {
			return m
		}
		return "url(" + assetPrefix + groups[1] + ")"
	})
	return out
}

// CompressDir walks dir and writes a .gz and .br sibling for every
// file that doesn't already carry one, matching the source's mtime so
// re-running the pass is a no-op once every sibling is current (spec
// §4.H step 6).
func CompressDir(fsys platform.FileSystem, dir string) error {
	var walk func(d string) error
	walk = func(d string) error {
		entries, err := fsys.ReadDir(d)
		if err != nil {
			return err
		}
		for _, e := range entries {
			full := d + "/" + e.Name()
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			if strings.HasSuffix(full, ".gz") || strings.HasSuffix(full, ".br") {
				continue
			}
			if err := compressOne(fsys, full); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(dir)
}

func compressOne(fsys platform.FileSystem, file string) error {
	info, err := fsys.Stat(file)
	if err != nil {
		return err
	}

	if upToDate(fsys, file+".gz", info) && upToDate(fsys, file+".br", info) {
		return nil
	}

	data, err := fsys.ReadFile(file)
	if err != nil {
		return err
	}

	if !upToDate(fsys, file+".gz", info) {
		gz, err := gzipBytes(data)
		if err != nil {
			return err
		}
		if err := fsys.WriteFile(file+".gz", gz, 0o644); err != nil {
			return err
		}
		if err := fsys.SetModTime(file+".gz", info.ModTime()); err != nil {
			return err
		}
	}

	if !upToDate(fsys, file+".br", info) {
		br := brotliBytes(data)
		if err := fsys.WriteFile(file+".br", br, 0o644); err != nil {
			return err
		}
		if err := fsys.SetModTime(file+".br", info.ModTime()); err != nil {
			return err
		}
	}

	return nil
}

func upToDate(fsys platform.FileSystem, sibling string, source fs.FileInfo) bool {
	info, err := fsys.Stat(sibling)
	if err != nil {
		return false
	}
	return info.ModTime().Equal(source.ModTime())
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliBytes(data []byte) []byte {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	_, _ = io.Copy(w, bytes.NewReader(data))
	_ = w.Close()
	return buf.Bytes()
}

// AssetRoutePath returns the asset-directory-relative request path an
// asset route should register, stripping the build's output root.
func AssetRoutePath(assetDir, file string) string {
	rel := strings.TrimPrefix(file, assetDir)
	return path.Join("/", rel)
}
