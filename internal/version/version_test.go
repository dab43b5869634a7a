package version

import "testing"

func TestResolvePrefersLdflags(t *testing.T) {
	oldV, oldC, oldB := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldV, oldC, oldB })

	Version, Commit, BuildTime = "v1.2.3", "0123456789abcdef", "2026-10-14T00:00:00Z"
	info := Resolve()
	if info.Version != "v1.2.3" || info.Commit != "0123456789abcdef" || info.BuildTime != "2026-10-14T00:00:00Z" {
		t.Fatalf("unexpected info %+v", info)
	}
	if got := String(); got != "v1.2.3 (0123456789ab)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	oldV := Version
	t.Cleanup(func() { Version = oldV })

	Version = ""
	if Resolve().Version == "" {
		t.Fatal("expected a non-empty version")
	}
}

func TestShortCommit(t *testing.T) {
	if shortCommit("abc") != "abc" {
		t.Fatal("short commits should pass through")
	}
	if shortCommit("0123456789abcdef") != "0123456789ab" {
		t.Fatal("long commits should be cut to 12 characters")
	}
}
