package version

import "testing"

func TestString(t *testing.T) {
	Version, Commit, BuildTime = "1.2.3", "abc123", "2024-05-01T00:00:00Z"
	t.Cleanup(func() { Version, Commit, BuildTime = "dev", "unknown", "unknown" })

	if got, want := String(), "1.2.3 (abc123) built 2024-05-01T00:00:00Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := Get(); got != (Info{Version: "1.2.3", Commit: "abc123", BuildTime: "2024-05-01T00:00:00Z"}) {
		t.Errorf("Get() = %+v", got)
	}
	if got, want := UserAgent(), "carewatch-guardian/1.2.3"; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}
