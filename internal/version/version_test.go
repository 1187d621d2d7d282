package version

import "testing"

func TestString(t *testing.T) {
	oldVersion, oldCommit, oldBuild := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuild })

	Version, Commit, BuildTime = "1.2.3", "abc1234", "2026-03-01T12:00:00Z"

	if got, want := String(), "1.2.3 (abc1234) built 2026-03-01T12:00:00Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := Get(); got.Version != "1.2.3" || got.Commit != "abc1234" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestDefaults(t *testing.T) {
	if Version == "" || Commit == "" || BuildTime == "" {
		t.Errorf("build variables must not be empty: %q %q %q", Version, Commit, BuildTime)
	}
}
