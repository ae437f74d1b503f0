package routetree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/routetree"
)

func TestPageRouteMatching(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"src/pages/page.tsx":               "export default function Home() {}",
		"src/pages/users/page.tsx":          "export default function Users() {}",
		"src/pages/users/[id]/page.tsx":     "export default function User() {}",
	})

	root, err := routetree.Build(fsys, "src/pages", routetree.PageConfig)
	require.NoError(t, err)

	m, ok := routetree.MatchPath(root, "/users/42")
	require.True(t, ok)
	require.Equal(t, "/users/:id", m.Pattern)
	require.Equal(t, "42", m.Params["id"])
}

func TestGroupDoesNotAffectURL(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"src/pages/(auth)/login/page.tsx": "export default function Login() {}",
	})
	root, err := routetree.Build(fsys, "src/pages", routetree.PageConfig)
	require.NoError(t, err)

	m, ok := routetree.MatchPath(root, "/login")
	require.True(t, ok)
	require.Equal(t, "/login", m.Pattern)

	_, ok = routetree.MatchPath(root, "/auth/login")
	require.False(t, ok)
}

func TestStackFlattening(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"src/pages/layout.tsx":                      "L0",
		"src/pages/dashboard/layout.tsx":             "L1",
		"src/pages/dashboard/settings/page.tsx":      "P",
	})
	root, err := routetree.Build(fsys, "src/pages", routetree.PageConfig)
	require.NoError(t, err)

	m, ok := routetree.MatchPath(root, "/dashboard/settings")
	require.True(t, ok)

	layouts := m.Stacks[routetree.RoleLayout]
	require.Len(t, layouts, 2)
	require.Equal(t, "layout.tsx", layouts[0].Path)
	require.Equal(t, "dashboard/layout.tsx", layouts[1].Path)
	require.Equal(t, "dashboard/settings/page.tsx", m.Names[routetree.RolePage].Path)
}

func TestStaticBeatsParamBeatsWildcard(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"src/pages/users/admin/page.tsx":   "Admin",
		"src/pages/users/[id]/page.tsx":    "User",
		"src/pages/users/[...rest]/page.tsx": "Rest",
	})
	root, err := routetree.Build(fsys, "src/pages", routetree.PageConfig)
	require.NoError(t, err)

	m, ok := routetree.MatchPath(root, "/users/admin")
	require.True(t, ok)
	require.Equal(t, "/users/admin", m.Pattern)

	m, ok = routetree.MatchPath(root, "/users/7")
	require.True(t, ok)
	require.Equal(t, "/users/:id", m.Pattern)
	require.Equal(t, "7", m.Params["id"])

	m, ok = routetree.MatchPath(root, "/users/a/b/c")
	require.True(t, ok)
	require.Equal(t, "/users/*rest", m.Pattern)
	require.Equal(t, "a/b/c", m.Params["rest"])
}

func TestMissingRootYieldsEmptyTree(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{})
	root, err := routetree.Build(fsys, "src/pages", routetree.PageConfig)
	require.NoError(t, err)
	require.False(t, root.Accept)

	_, ok := routetree.MatchPath(root, "/")
	require.False(t, ok)
}

func TestAPIConfigHandler(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"src/api/users/route.ts":      "export async function GET() {}",
		"src/api/middleware.ts":       "export default function mw() {}",
	})
	root, err := routetree.Build(fsys, "src/api", routetree.APIConfig)
	require.NoError(t, err)

	m, ok := routetree.MatchPath(root, "/users")
	require.True(t, ok)
	require.Equal(t, "users/route.ts", m.Names[routetree.RoleHandler].Path)
	require.Len(t, m.Stacks[routetree.RoleMiddleware], 1)
}
