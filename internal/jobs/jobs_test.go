package jobs_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"peaque.dev/peaque/internal/jobs"
	"peaque.dev/peaque/internal/platform"
)

func TestDiscoverFindsJobFilesByDisplayName(t *testing.T) {
	fsys := platform.NewMapFS(map[string]string{
		"src/jobs/cleanup/expired-sessions/job.ts": "export const schedule = '0 * * * *';",
		"src/jobs/digest/job.ts":                   "export const schedule = '0 9 * * *';",
		"src/jobs/digest/helpers.ts":                "export function format() {}",
	})

	descs, err := jobs.Discover(fsys, "src/jobs")
	require.NoError(t, err)

	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	require.Equal(t, []string{"cleanup/expired-sessions", "digest"}, names)
}

func TestDiscoverReturnsEmptyWhenJobsDirMissing(t *testing.T) {
	fsys := platform.NewMapFS(nil)
	descs, err := jobs.Discover(fsys, "src/jobs")
	require.NoError(t, err)
	require.Empty(t, descs)
}

func TestSchedulerRegisterRejectsInvalidSpec(t *testing.T) {
	s := jobs.New()
	err := s.Register("broken", "not-a-cron-spec", func(ctx context.Context) error { return nil })
	require.Error(t, err)
}

func TestSchedulerRegisterAcceptsValidSpec(t *testing.T) {
	s := jobs.New()
	err := s.Register("digest", "@daily", func(ctx context.Context) error { return errors.New("boom") })
	require.NoError(t, err)
}
