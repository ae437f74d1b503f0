package entrygen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/entrygen"
	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/routetree"
)

func TestFrontendRegistersPagesByURLPattern(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"src/pages/page.tsx":                 "export default function Home() {}",
		"src/pages/dashboard/layout.tsx":     "export default function DashboardLayout() {}",
		"src/pages/dashboard/settings/page.tsx": "export default function Settings() {}",
	})
	tree, err := routetree.Build(fsys, "src/pages", routetree.PageConfig)
	require.NoError(t, err)

	src := entrygen.Frontend(tree, "src/pages")

	require.Contains(t, src, `router.register("/", `)
	require.Contains(t, src, `router.register("/dashboard/settings", `)
	require.NotContains(t, src, `router.register("dashboard/settings/page.tsx"`)
	require.NotContains(t, src, "DashboardLayout")
	require.NotContains(t, src, "layout.tsx")
}

func TestFrontendImportsOnlyPageComponents(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"src/pages/layout.tsx":        "export default function RootLayout() {}",
		"src/pages/guard.ts":          "export default function authGuard() {}",
		"src/pages/users/page.tsx":    "export default function Users() {}",
	})
	tree, err := routetree.Build(fsys, "src/pages", routetree.PageConfig)
	require.NoError(t, err)

	src := entrygen.Frontend(tree, "src/pages")

	require.Contains(t, src, "/@src/src/pages/users/page.tsx")
	require.NotContains(t, src, "/@src/src/pages/layout.tsx")
	require.NotContains(t, src, "/@src/src/pages/guard.ts")
}

func TestFrontendHandlesNilTree(t *testing.T) {
	src := entrygen.Frontend(nil, "src/pages")
	require.Contains(t, src, "export function mount() {}")
}
