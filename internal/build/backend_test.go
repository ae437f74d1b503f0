package build

import (
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/jobs"
	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/routetree"
)

func TestGenerateBackendEntryRegistersAPIAndPageRoutes(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"proj/src/api/users/route.ts": "export async function GET() {}",
		"proj/src/pages/page.tsx":     "export default function Home() {}",
	})

	apiTree, err := routetree.Build(fsys, "proj/src/api", routetree.APIConfig)
	require.NoError(t, err)
	pageTree, err := routetree.Build(fsys, "proj/src/pages", routetree.PageConfig)
	require.NoError(t, err)

	docs, _, err := renderHeadDocuments(pageTree, "dist/assets-abc")
	require.NoError(t, err)

	src := generateBackendEntry(backendEntryInputs{
		PageTree:      pageTree,
		APITree:       apiTree,
		AssetPrefix:   "/assets-abc",
		AssetDir:      "dist/assets-abc",
		HeadDocuments: docs,
	})

	require.Contains(t, src, `routes.push({ pattern: "/users", handlers:`)
	require.Contains(t, src, `routes.push({ pattern: "/", method: "GET", htmlFile:`)
	require.Contains(t, src, "createServer")
	require.Contains(t, src, "SIGINT")
	require.Contains(t, src, "SIGTERM")
}

func TestGenerateBackendEntryWiresServerActionsAndJobs(t *testing.T) {
	apiTree, err := routetree.Build(platform.NewMapFS(nil), "proj/src/api", routetree.APIConfig)
	require.NoError(t, err)
	pageTree, err := routetree.Build(platform.NewMapFS(nil), "proj/src/pages", routetree.PageConfig)
	require.NoError(t, err)

	src := generateBackendEntry(backendEntryInputs{
		PageTree:      pageTree,
		APITree:       apiTree,
		ServerActions: []string{"src/api/users/actions.ts"},
		Jobs:          []jobs.Descriptor{{Name: "cleanup/expired-sessions", ModulePath: "proj/src/jobs/cleanup/expired-sessions/job.ts"}},
		HeadDocuments: map[string]string{},
	})

	require.Contains(t, src, `rpcMod0`)
	require.Contains(t, src, `/@src/src/api/users/actions.ts`)
	require.Contains(t, src, "jobMod0.schedule")
	require.Contains(t, src, "jobMod0.runJob()")
	require.Contains(t, src, "node-cron")
}

func TestGenerateBackendEntryOmitsStartupAndMiddlewareWhenAbsent(t *testing.T) {
	apiTree, err := routetree.Build(platform.NewMapFS(nil), "proj/src/api", routetree.APIConfig)
	require.NoError(t, err)
	pageTree, err := routetree.Build(platform.NewMapFS(nil), "proj/src/pages", routetree.PageConfig)
	require.NoError(t, err)

	src := generateBackendEntry(backendEntryInputs{
		PageTree:      pageTree,
		APITree:       apiTree,
		HeadDocuments: map[string]string{},
	})

	require.NotContains(t, src, "src/startup")
	require.NotContains(t, src, "globalMiddleware")
}
