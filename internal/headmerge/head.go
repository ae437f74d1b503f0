// Package headmerge implements the head-descriptor merge laws and HTML
// <head> emitter described in spec §4.G: ancestor stacks are folded
// parent-to-child into a single Descriptor, then rendered once per
// unique head-stack key.
package headmerge

// Attrs is an ordered-by-key attribute bag for a single head tag. A
// script or style tag's text content (if any) is carried under the
// "innerHTML" key rather than as a separate field, matching how the
// wire descriptor represents it.
type Attrs map[string]string

// Descriptor is the head contribution of a single route-tree node
// (page, layout, or head.ts module).
type Descriptor struct {
	Title  *string `json:"title,omitempty"`
	Meta   []Attrs `json:"meta,omitempty"`
	Link   []Attrs `json:"link,omitempty"`
	Script []Attrs `json:"script,omitempty"`
	Style  []Attrs `json:"style,omitempty"`
	Extra  []string `json:"extra,omitempty"`
}

// Merge folds child over parent according to spec §4.G's six rules:
// title is child-wins-if-present; meta/link/script/style replace the
// parent entry in place when their identity matches and append
// otherwise; extra is pure concatenation.
func Merge(parent, child Descriptor) Descriptor {
	out := Descriptor{}

	out.Title = parent.Title
	if child.Title != nil {
		out.Title = child.Title
	}

	out.Meta = mergeByIdentity(parent.Meta, child.Meta, metaIdentity)
	out.Link = mergeByIdentity(parent.Link, child.Link, linkIdentity)
	out.Script = mergeByIdentity(parent.Script, child.Script, scriptIdentity)
	out.Style = mergeByIdentity(parent.Style, child.Style, styleIdentity)

	out.Extra = make([]string, 0, len(parent.Extra)+len(child.Extra))
	out.Extra = append(out.Extra, parent.Extra...)
	out.Extra = append(out.Extra, child.Extra...)

	return out
}

// MergeStack folds a full ancestor-to-descendant stack of descriptors
// into one, root first.
func MergeStack(stack []Descriptor) Descriptor {
	var acc Descriptor
	for _, d := range stack {
		acc = Merge(acc, d)
	}
	return acc
}

// identityFunc extracts the identity key a tag is deduplicated on. The
// second return value is false for tags that carry no identity (always
// appended, never replaced in place).
type identityFunc func(Attrs) (string, bool)

func mergeByIdentity(parent, child []Attrs, identity identityFunc) []Attrs {
	result := make([]Attrs, len(parent))
	copy(result, parent)

	for _, c := range child {
		key, ok := identity(c)
		if !ok {
			result = append(result, c)
			continue
		}
		replaced := false
		for i, p := range result {
			if pk, pok := identity(p); pok && pk == key {
				result[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			result = append(result, c)
		}
	}
	return result
}

func metaIdentity(m Attrs) (string, bool) {
	for _, k := range []string{"name", "property", "httpEquiv", "http-equiv"} {
		if v, ok := m[k]; ok {
			return k + ":" + v, true
		}
	}
	return "", false
}

func linkIdentity(l Attrs) (string, bool) {
	href, ok := l["href"]
	if !ok {
		return "", false
	}
	return l["rel"] + "|" + href, true
}

func scriptIdentity(s Attrs) (string, bool) {
	src, ok := s["src"]
	if !ok {
		return "", false
	}
	return src, true
}

func styleIdentity(s Attrs) (string, bool) {
	_, hasType := s["type"]
	_, hasBody := s["innerHTML"]
	if !hasType && !hasBody {
		return "", false
	}
	return s["type"] + "|" + s["innerHTML"], true
}
