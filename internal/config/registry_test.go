package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/glycin-project/glycin/internal/pool"
)

func writeConf(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestParseConfFileLoaderAndEditorGroups(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "png.conf", `
# PNG support
[loader:image/png]
Exec=/usr/libexec/glycin-loaders/glycin-png
ExposeBaseDir=false
Fontconfig=false

[editor:image/png]
Exec=/usr/libexec/glycin-loaders/glycin-png-editor
Operations=Clip;Rotate;MirrorHorizontally
`)
	entries, err := parseConfFile(filepath.Join(dir, "png.conf"))
	if err != nil {
		t.Fatalf("parseConfFile: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Kind != pool.KindLoader || entries[0].MIME != "image/png" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Kind != pool.KindEditor || len(entries[1].Operations) != 3 {
		t.Fatalf("unexpected editor entry: %+v", entries[1])
	}
}

func TestParseConfFileUnrecognizedGroupIgnored(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "weird.conf", `
[decoder:image/png]
Exec=/should/be/ignored

[loader:image/jpeg]
Exec=/usr/libexec/glycin-loaders/glycin-jpeg
`)
	entries, err := parseConfFile(filepath.Join(dir, "weird.conf"))
	if err != nil {
		t.Fatalf("parseConfFile: %v", err)
	}
	if len(entries) != 1 || entries[0].MIME != "image/jpeg" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestParseConfFileMissingExecErrors(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "broken.conf", "[loader:image/png]\nFontconfig=true\n")
	if _, err := parseConfFile(filepath.Join(dir, "broken.conf")); err == nil {
		t.Fatal("expected an error for a group missing Exec")
	}
}

func TestScanConfDirOrdersFilesAlphabetically(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "a.conf", "[loader:image/png]\nExec=/first\n")
	writeConf(t, dir, "b.conf", "[loader:image/png]\nExec=/second\n")
	entries, err := ScanConfDir(dir)
	if err != nil {
		t.Fatalf("ScanConfDir: %v", err)
	}
	if len(entries) != 2 || entries[0].Exec != "/first" || entries[1].Exec != "/second" {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestLoadRegistryMergesAcrossDataDirsLaterWins(t *testing.T) {
	sysDir := t.TempDir()
	userDir := t.TempDir()

	sysConfd := filepath.Join(sysDir, "glycin-loaders", "1+", "conf.d")
	userConfd := filepath.Join(userDir, "glycin-loaders", "1+", "conf.d")
	if err := os.MkdirAll(sysConfd, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(userConfd, 0o755); err != nil {
		t.Fatal(err)
	}
	writeConf(t, sysConfd, "png.conf", "[loader:image/png]\nExec=/usr/libexec/glycin-png\n")
	writeConf(t, userConfd, "png.conf", "[loader:image/png]\nExec=/home/user/.local/libexec/glycin-png\n")

	reg, err := LoadRegistry([]string{sysDir, userDir}, 1)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	entry, ok := reg.Lookup(pool.KindLoader, "image/png")
	if !ok {
		t.Fatal("expected a loader entry for image/png")
	}
	if entry.Exec != "/home/user/.local/libexec/glycin-png" {
		t.Fatalf("expected the user dir's Exec to win, got %q", entry.Exec)
	}
}

func TestLoadRegistrySkipsMissingDataDirs(t *testing.T) {
	reg, err := LoadRegistry([]string{filepath.Join(t.TempDir(), "does-not-exist")}, 1)
	if err != nil {
		t.Fatalf("LoadRegistry should not error on a missing data dir: %v", err)
	}
	if len(reg.Loaders) != 0 || len(reg.Editors) != 0 {
		t.Fatalf("expected an empty registry, got %+v", reg)
	}
}

func TestRegistryEntryHashDiffersOnExec(t *testing.T) {
	a := RegistryEntry{Kind: pool.KindLoader, MIME: "image/png", Exec: "/a"}
	b := RegistryEntry{Kind: pool.KindLoader, MIME: "image/png", Exec: "/b"}
	if a.Hash("", false, "namespace") == b.Hash("", false, "namespace") {
		t.Fatal("expected different Exec paths to hash differently")
	}
}

func TestRegistryEntryHashDiffersOnBaseDirWhenExposed(t *testing.T) {
	e := RegistryEntry{Kind: pool.KindLoader, MIME: "image/svg+xml", Exec: "/a", ExposeBaseDir: true}
	if e.Hash("/one", true, "namespace") == e.Hash("/two", true, "namespace") {
		t.Fatal("expected different base directories to hash differently when ExposeBaseDir and allowed")
	}
}

func TestRegistryEntryHashIgnoresBaseDirWhenNotExposed(t *testing.T) {
	e := RegistryEntry{Kind: pool.KindLoader, MIME: "image/png", Exec: "/a", ExposeBaseDir: false}
	if e.Hash("/one", true, "namespace") != e.Hash("/two", true, "namespace") {
		t.Fatal("expected base directory to be irrelevant when the entry never exposes it")
	}
}

func TestRegistryEntryHashDiffersOnMechanism(t *testing.T) {
	e := RegistryEntry{Kind: pool.KindLoader, MIME: "image/png", Exec: "/a"}
	if e.Hash("", false, "namespace") == e.Hash("", false, "none") {
		t.Fatal("expected different sandbox mechanisms to hash differently")
	}
}
