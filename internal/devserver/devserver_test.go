package devserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/devserver"
	"peaque.dev/peaque/internal/platform"
)

type fakeInvoker struct{}

func (fakeInvoker) Invoke(ctx context.Context, module, export string, args, out any) error {
	return nil
}

func newProject() platform.FileSystem {
	return platform.NewMapFS(map[string]string{
		"proj/src/pages/page.tsx":           "export default function Home() { return null; }\n",
		"proj/src/pages/about/page.tsx":     "export default function About() { return null; }\n",
		"proj/src/api/users/route.ts":       "export async function GET() { return { status: 200, body: '[]' }; }\n",
		"proj/src/public/favicon.ico":       "ico-bytes",
	})
}

func newTestServer(t *testing.T) *devserver.Server {
	t.Helper()
	fsys := newProject()
	s, err := devserver.New(fsys, devserver.Config{Root: "proj", CacheDir: "proj/.peaque/cache", Addr: "127.0.0.1:0"}, fakeInvoker{})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestFrameworkAssetServed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/peaque-dev.js", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "registerRefreshScope")
}

func TestFallbackServesSPAShell(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "peaque-loader.js")
}

func TestFallbackServesPublicAsset(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/favicon.ico", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ico-bytes", rec.Body.String())
}

func TestAPIRouteDispatch(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRPCPrefixWinsOverAPIPrefix(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/__rpc/src/api/users/actions/update", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
