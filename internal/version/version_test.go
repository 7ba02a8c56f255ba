package version

import "testing"

func TestGet(t *testing.T) {
	oldV, oldSHA, oldTime := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldTime }()

	Version, GitSHA, BuildTime = "1.2.0", "abc123", "2026-03-01T09:00:00Z"
	info := Get()
	if info.Version != "1.2.0" || info.GitSHA != "abc123" {
		t.Errorf("Get() = %+v", info)
	}
	if got, want := info.String(), "basestation 1.2.0 (abc123, built 2026-03-01T09:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
