package reqcontext_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/reqcontext"
)

func TestMaybeFromAbsentReturnsFalse(t *testing.T) {
	_, ok := reqcontext.MaybeFrom(context.Background())
	require.False(t, ok)
}

func TestFromPanicsWhenAbsent(t *testing.T) {
	require.Panics(t, func() {
		reqcontext.From(context.Background())
	})
}

func TestAttachAndFromRoundTrip(t *testing.T) {
	req := httptest.NewRequest("GET", "/dashboard/settings", nil)
	rc := reqcontext.New(req, "/dashboard/:section", map[string]string{"section": "settings"})
	ctx := reqcontext.Attach(context.Background(), rc)

	got := reqcontext.From(ctx)
	require.Same(t, rc, got)
	require.Equal(t, "settings", got.Params["section"])
}

func TestValueBagIsPerRequest(t *testing.T) {
	rc := reqcontext.New(httptest.NewRequest("GET", "/", nil), "/", nil)
	_, ok := rc.Get("user")
	require.False(t, ok)

	rc.Set("user", "ada")
	v, ok := rc.Get("user")
	require.True(t, ok)
	require.Equal(t, "ada", v)
}
