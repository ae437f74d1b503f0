package transform

import (
	"fmt"
	"strings"
)

const fastRefreshMarker = "__peaque_fast_refresh_wrapped__"

// WrapFastRefresh injects a fast-refresh registration preamble and
// hand-off trailer around a transformed module, keyed on modulePath.
// The wrapper is idempotent: if source already carries the marker
// comment, it is returned unchanged rather than double-wrapped.
func WrapFastRefresh(source, modulePath string) string {
	if strings.Contains(source, fastRefreshMarker) {
		return source
	}

	preamble := fmt.Sprintf(
		"/* %s */\nimport { registerRefreshScope as __peaqueRegisterRefreshScope, performRefresh as __peaquePerformRefresh } from \"/peaque-dev.js\";\nconst __peaqueRefreshScope = __peaqueRegisterRefreshScope(%q);\n",
		fastRefreshMarker, modulePath,
	)
	trailer := fmt.Sprintf(
		"\n__peaquePerformRefresh(__peaqueRefreshScope, %q);\n",
		modulePath,
	)

	return preamble + source + trailer
}
