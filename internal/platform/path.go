/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package platform

import (
	"path"
	"strings"
)

// NormalizePath collapses backslashes to forward slashes, removes "."
// segments, and resolves the result with path.Clean, producing a
// POSIX-style path suitable for comparison and storage as a cache key
// or route-tree segment list. It does not resolve ".." outside of what
// path.Clean already does, and it never consults the filesystem.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean(p)
	if cleaned == "." {
		return ""
	}
	return cleaned
}

// UnderRoot reports whether the normalized path p, resolved relative to
// root, stays within root. It is used to reject requests that would
// otherwise escape the project directory (e.g. "/@src/../../etc/passwd").
func UnderRoot(root, p string) (string, bool) {
	root = NormalizePath(root)
	joined := NormalizePath(path.Join(root, p))
	if joined == root {
		return joined, true
	}
	if strings.HasPrefix(joined, root+"/") {
		return joined, true
	}
	return "", false
}

// SplitSegments splits a normalized path into its non-empty segments.
func SplitSegments(p string) []string {
	p = NormalizePath(p)
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
