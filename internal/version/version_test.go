package appversion

import (
	"strings"
	"testing"
)

func TestGetUsesStampedVersion(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	defer func() { Version = old }()

	info := Get("tacgo")
	if info.Binary != "tacgo" {
		t.Errorf("Binary = %q, want %q", info.Binary, "tacgo")
	}
	if info.Version != "v1.2.3" {
		t.Errorf("Version = %q, want %q", info.Version, "v1.2.3")
	}
	if info.GoVersion == "" {
		t.Error("GoVersion is empty")
	}
}

func TestFullContainsAllFields(t *testing.T) {
	t.Parallel()

	info := Info{
		Binary:    "tacgoctl",
		Version:   "v0.1.0",
		GitCommit: "abc1234",
		BuildDate: "2026-01-01T00:00:00Z",
		GoVersion: "go1.23.0",
	}

	out := info.Full()
	for _, want := range []string{"tacgoctl v0.1.0", "abc1234", "2026-01-01T00:00:00Z", "go1.23.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("Full() = %q, missing %q", out, want)
		}
	}
}
