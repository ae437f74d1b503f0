package rpc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/csrf"
	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/rpc"
	"peaque.dev/peaque/internal/wire"
)

type fakeInvoker struct {
	module, export string
	args           any
	result         any
	err            error
}

func (f *fakeInvoker) Invoke(ctx context.Context, module, export string, args, out any) error {
	f.module, f.export, f.args = module, export, args
	if f.err != nil {
		return f.err
	}
	if p, ok := out.(*any); ok {
		*p = f.result
	}
	return nil
}

func TestParsePathSplitsModuleAndFunction(t *testing.T) {
	mod, fn, ok := rpc.ParsePath("/api/__rpc/src/api/users/actions/updateUser")
	require.True(t, ok)
	require.Equal(t, "src/api/users/actions", mod)
	require.Equal(t, "updateUser", fn)
}

func TestParsePathRejectsWrongPrefix(t *testing.T) {
	_, _, ok := rpc.ParsePath("/api/users")
	require.False(t, ok)
}

const testRoot = "proj"

func newFS() platform.FileSystem {
	return platform.NewMapFS(map[string]string{
		"proj/src/api/users/actions.ts": "'use server'\nexport async function updateUser(x) { return x; }\n",
	})
}

func TestDispatchInvokesMatchedExport(t *testing.T) {
	inv := &fakeInvoker{result: float64(42)}
	d := &rpc.Dispatcher{
		FS:      newFS(),
		Root:    testRoot,
		Guard:   csrf.New(csrf.Config{}),
		Invoker: inv,
	}

	body, err := wire.EncodeCall([]any{float64(1)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/__rpc/src/api/users/actions/updateUser", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "src/api/users/actions", inv.module)
	require.Equal(t, "updateUser", inv.export)
}

func TestDispatchUnknownFunctionIs404(t *testing.T) {
	inv := &fakeInvoker{}
	d := &rpc.Dispatcher{FS: newFS(), Root: testRoot, Guard: csrf.New(csrf.Config{}), Invoker: inv}

	body, _ := wire.EncodeCall(nil)
	req := httptest.NewRequest(http.MethodPost, "/api/__rpc/src/api/users/actions/deleteUser", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDispatchCSRFDenyBeforeInvoke(t *testing.T) {
	inv := &fakeInvoker{}
	d := &rpc.Dispatcher{FS: newFS(), Root: testRoot, Guard: csrf.New(csrf.Config{}), Invoker: inv}

	req := httptest.NewRequest(http.MethodPost, "/api/__rpc/src/api/users/actions/updateUser", strings.NewReader(`{"args":[]}`))
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), csrf.DenyMessage)
	require.Empty(t, inv.module)
}

func TestDispatchInvokeErrorIs500WithMessage(t *testing.T) {
	inv := &fakeInvoker{err: errBoom{}}
	d := &rpc.Dispatcher{FS: newFS(), Root: testRoot, Guard: csrf.New(csrf.Config{}), Invoker: inv}

	body, _ := wire.EncodeCall([]any{})
	req := httptest.NewRequest(http.MethodPost, "/api/__rpc/src/api/users/actions/updateUser", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "boom")
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
