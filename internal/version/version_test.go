package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func withLinkerValues(t *testing.T, v, c, d string) {
	t.Helper()
	prevV, prevC, prevD := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() { version, commit, date = prevV, prevC, prevD })
}

func TestResolvePrefersLinkerValues(t *testing.T) {
	withLinkerValues(t, "1.4.0", "abc123", "2026-01-02")

	b := resolve(func() (*debug.BuildInfo, bool) {
		t.Fatal("build info must not be read when ldflags are set")
		return nil, false
	})
	require.Equal(t, Build{Version: "1.4.0", Commit: "abc123", Date: "2026-01-02"}, b)
	require.Equal(t, "version=1.4.0 commit=abc123 date=2026-01-02", b.String())
}

func TestResolveFallsBackToVCS(t *testing.T) {
	withLinkerValues(t, "", "", "")

	b := resolve(func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "deadbeef"},
			{Key: "vcs.time", Value: "2026-02-03T04:05:06Z"},
		}}, true
	})
	require.Equal(t, "dev", b.Version)
	require.Equal(t, "deadbeef", b.Commit)
	require.Equal(t, "2026-02-03T04:05:06Z", b.Date)
}

func TestResolveWithoutBuildInfo(t *testing.T) {
	withLinkerValues(t, "dev", "", "")

	b := resolve(func() (*debug.BuildInfo, bool) { return nil, false })
	require.Equal(t, Build{Version: "dev", Commit: unknown, Date: unknown}, b)
	require.NotEmpty(t, Current().Version)
}
