package headmerge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/headmerge"
)

func strPtr(s string) *string { return &s }

func TestMergeEmptyParentYieldsChild(t *testing.T) {
	child := headmerge.Descriptor{
		Title: strPtr("Dashboard"),
		Meta:  []headmerge.Attrs{{"name": "viewport", "content": "width=device-width"}},
	}
	merged := headmerge.Merge(headmerge.Descriptor{}, child)
	require.Equal(t, "Dashboard", *merged.Title)
	require.Equal(t, child.Meta, merged.Meta)
}

func TestMergeEmptyChildYieldsParent(t *testing.T) {
	parent := headmerge.Descriptor{
		Title: strPtr("Root"),
		Link:  []headmerge.Attrs{{"rel": "icon", "href": "/favicon.ico"}},
	}
	merged := headmerge.Merge(parent, headmerge.Descriptor{})
	require.Equal(t, "Root", *merged.Title)
	require.Equal(t, parent.Link, merged.Link)
}

func TestMergeTitleChildWinsWhenPresent(t *testing.T) {
	parent := headmerge.Descriptor{Title: strPtr("Root")}
	child := headmerge.Descriptor{Title: strPtr("Settings")}
	merged := headmerge.Merge(parent, child)
	require.Equal(t, "Settings", *merged.Title)
}

func TestMergeTitleInheritedWhenChildAbsent(t *testing.T) {
	parent := headmerge.Descriptor{Title: strPtr("Root")}
	merged := headmerge.Merge(parent, headmerge.Descriptor{})
	require.Equal(t, "Root", *merged.Title)
}

func TestMergeMetaReplacesAtPositionByIdentity(t *testing.T) {
	parent := headmerge.Descriptor{
		Meta: []headmerge.Attrs{
			{"name": "viewport", "content": "width=device-width"},
			{"name": "description", "content": "root description"},
		},
	}
	child := headmerge.Descriptor{
		Meta: []headmerge.Attrs{
			{"name": "description", "content": "settings description"},
		},
	}
	merged := headmerge.Merge(parent, child)
	require.Len(t, merged.Meta, 2)
	require.Equal(t, "width=device-width", merged.Meta[0]["content"])
	require.Equal(t, "settings description", merged.Meta[1]["content"])
}

func TestMergeMetaAppendsWhenNoIdentityMatch(t *testing.T) {
	parent := headmerge.Descriptor{
		Meta: []headmerge.Attrs{{"name": "viewport", "content": "width=device-width"}},
	}
	child := headmerge.Descriptor{
		Meta: []headmerge.Attrs{{"property": "og:title", "content": "Settings"}},
	}
	merged := headmerge.Merge(parent, child)
	require.Len(t, merged.Meta, 2)
}

func TestMergeLinkIdentityIsRelAndHref(t *testing.T) {
	parent := headmerge.Descriptor{
		Link: []headmerge.Attrs{{"rel": "stylesheet", "href": "/base.css"}},
	}
	child := headmerge.Descriptor{
		Link: []headmerge.Attrs{{"rel": "stylesheet", "href": "/base.css", "media": "print"}},
	}
	merged := headmerge.Merge(parent, child)
	require.Len(t, merged.Link, 1)
	require.Equal(t, "print", merged.Link[0]["media"])
}

func TestMergeScriptIdentityIsSrc(t *testing.T) {
	parent := headmerge.Descriptor{
		Script: []headmerge.Attrs{{"src": "/analytics.js", "async": "true"}},
	}
	child := headmerge.Descriptor{
		Script: []headmerge.Attrs{{"src": "/analytics.js", "defer": "true"}},
	}
	merged := headmerge.Merge(parent, child)
	require.Len(t, merged.Script, 1)
	require.Equal(t, "true", merged.Script[0]["defer"])
	require.Empty(t, merged.Script[0]["async"])
}

func TestMergeStyleIdentityIsTypeAndInnerHTML(t *testing.T) {
	parent := headmerge.Descriptor{
		Style: []headmerge.Attrs{{"type": "text/css", "innerHTML": "body{margin:0}"}},
	}
	child := headmerge.Descriptor{
		Style: []headmerge.Attrs{{"type": "text/css", "innerHTML": "body{margin:0}", "media": "screen"}},
	}
	merged := headmerge.Merge(parent, child)
	require.Len(t, merged.Style, 1)
	require.Equal(t, "screen", merged.Style[0]["media"])
}

func TestMergeExtraIsPureConcatenation(t *testing.T) {
	parent := headmerge.Descriptor{Extra: []string{"<!-- root -->"}}
	child := headmerge.Descriptor{Extra: []string{"<!-- child -->"}}
	merged := headmerge.Merge(parent, child)
	require.Equal(t, []string{"<!-- root -->", "<!-- child -->"}, merged.Extra)
}

func TestMergeStackFlattensRootToLeaf(t *testing.T) {
	root := headmerge.Descriptor{Title: strPtr("Root")}
	layout := headmerge.Descriptor{
		Link: []headmerge.Attrs{{"rel": "stylesheet", "href": "/app.css"}},
	}
	page := headmerge.Descriptor{Title: strPtr("Settings")}

	merged := headmerge.MergeStack([]headmerge.Descriptor{root, layout, page})
	require.Equal(t, "Settings", *merged.Title)
	require.Len(t, merged.Link, 1)
}

func TestRenderEscapesAttributesAndText(t *testing.T) {
	d := headmerge.Descriptor{
		Title: strPtr(`<script>"quotes"</script>`),
	}
	out := headmerge.Render(d, "")
	require.Contains(t, out, "&lt;script&gt;")
	require.NotContains(t, out, `<script>"quotes"`)
}

func TestRenderAssetPrefixesRootRelativeURLs(t *testing.T) {
	d := headmerge.Descriptor{
		Link:   []headmerge.Attrs{{"rel": "stylesheet", "href": "/app.css"}},
		Script: []headmerge.Attrs{{"src": "/app.js"}},
	}
	out := headmerge.Render(d, "/assets-1a2b3c4d")
	require.Contains(t, out, `href="/assets-1a2b3c4d/app.css"`)
	require.Contains(t, out, `src="/assets-1a2b3c4d/app.js"`)
}

func TestRenderSkipsPrefixForProtocolRelativeAndAlreadyPrefixed(t *testing.T) {
	d := headmerge.Descriptor{
		Link: []headmerge.Attrs{
			{"rel": "dns-prefetch", "href": "//cdn.example.com"},
			{"rel": "stylesheet", "href": "/assets-1a2b3c4d/app.css"},
		},
	}
	out := headmerge.Render(d, "/assets-1a2b3c4d")
	require.Contains(t, out, `href="//cdn.example.com"`)
	require.Contains(t, out, `href="/assets-1a2b3c4d/app.css"`)
	require.NotContains(t, out, "/assets-1a2b3c4d/assets-1a2b3c4d")
}
