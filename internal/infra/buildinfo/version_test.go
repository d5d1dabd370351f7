package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	defer func() { Version = old }()

	info := Get()
	if info.Version != "v1.2.3" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
	if info.Commit == "" || info.BuildTime == "" {
		t.Errorf("Commit/BuildTime should never be empty: %+v", info)
	}
	if !strings.Contains(String(), "v1.2.3") {
		t.Errorf("String() = %q", String())
	}
}

func TestFillFromSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	var info Info
	fillFromSettings(&info, settings)
	if info.Commit != "0123456789ab" {
		t.Errorf("Commit = %q", info.Commit)
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("BuildTime = %q", info.BuildTime)
	}
	if !info.Modified {
		t.Error("Modified = false")
	}

	stamped := Info{Commit: "abc", BuildTime: "yesterday"}
	fillFromSettings(&stamped, settings)
	if stamped.Commit != "abc" || stamped.BuildTime != "yesterday" {
		t.Errorf("ldflags values overwritten: %+v", stamped)
	}
}
