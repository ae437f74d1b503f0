package headmerge

import (
	"html"
	"sort"
	"strings"
)

// Render emits a <head>...</head> fragment for a fully merged
// Descriptor. assetPrefix is applied to any href/src value that starts
// with "/" and is not already prefixed or protocol-relative ("//"), per
// spec §4.G's asset-prefixing rule.
func Render(d Descriptor, assetPrefix string) string {
	var b strings.Builder
	b.WriteString("<head>\n")

	if d.Title != nil {
		b.WriteString("<title>")
		b.WriteString(html.EscapeString(*d.Title))
		b.WriteString("</title>\n")
	}

	for _, m := range d.Meta {
		b.WriteString("<meta")
		b.WriteString(renderAttrs(m, assetPrefix, nil, "innerHTML"))
		b.WriteString(" />\n")
	}

	for _, l := range d.Link {
		b.WriteString("<link")
		b.WriteString(renderAttrs(l, assetPrefix, []string{"href"}, "innerHTML"))
		b.WriteString(" />\n")
	}

	for _, s := range d.Script {
		b.WriteString("<script")
		b.WriteString(renderAttrs(s, assetPrefix, []string{"src"}, "innerHTML"))
		b.WriteString(">")
		b.WriteString(s["innerHTML"])
		b.WriteString("</script>\n")
	}

	for _, s := range d.Style {
		b.WriteString("<style")
		b.WriteString(renderAttrs(s, assetPrefix, nil, "innerHTML"))
		b.WriteString(">")
		b.WriteString(s["innerHTML"])
		b.WriteString("</style>\n")
	}

	for _, extra := range d.Extra {
		b.WriteString(extra)
		b.WriteString("\n")
	}

	b.WriteString("</head>")
	return b.String()
}

// renderAttrs renders a tag's attributes in sorted-key order, skipping
// skipKeys, HTML-escaping values, and asset-prefixing any key named in
// prefixKeys whose value starts with "/".
func renderAttrs(a Attrs, assetPrefix string, prefixKeys []string, skipKeys ...string) string {
	skip := make(map[string]bool, len(skipKeys))
	for _, k := range skipKeys {
		skip[k] = true
	}
	prefix := make(map[string]bool, len(prefixKeys))
	for _, k := range prefixKeys {
		prefix[k] = true
	}

	keys := make([]string, 0, len(a))
	for k := range a {
		if skip[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := a[k]
		if prefix[k] {
			v = prefixAsset(v, assetPrefix)
		}
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(v))
		b.WriteString(`"`)
	}
	return b.String()
}

// prefixAsset prepends assetPrefix to a root-relative URL unless it is
// already protocol-relative or already carries the prefix.
func prefixAsset(v, assetPrefix string) string {
	if assetPrefix == "" {
		return v
	}
	if strings.HasPrefix(v, "//") {
		return v
	}
	if !strings.HasPrefix(v, "/") {
		return v
	}
	if strings.HasPrefix(v, assetPrefix) {
		return v
	}
	return assetPrefix + v
}
