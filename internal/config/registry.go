package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/glycin-project/glycin/internal/pool"
)

// RegistryEntry describes one codec helper as declared by a `.conf`
// file: its kind (loader/editor), the MIME type it handles, and the
// keys recognized from C8 — Exec, ExposeBaseDir, Fontconfig, and (for
// editors) the list of edit operations it supports.
type RegistryEntry struct {
	Kind          pool.Kind
	MIME          string
	Exec          string
	ExposeBaseDir bool
	Fontconfig    bool
	Operations    []string
}

// Hash returns a ConfigEntryHash distinguishing this entry's effective
// configuration for one call, for internal/pool's per-key process
// dictionaries. baseDir and mechanism are per-call, not part of the
// registered entry: two calls against the same entry but a different
// exposed base directory or sandbox mechanism must never share a
// helper, since their sandbox bind mounts differ. baseDir only affects
// the hash when it would actually be bind-mounted (ExposeBaseDir is set
// on the entry and the caller opted in via allowBaseDir); otherwise two
// calls that never expose a base directory can still share a helper
// regardless of which directory their source files happen to live in.
func (e RegistryEntry) Hash(baseDir string, allowBaseDir bool, mechanism string) pool.ConfigEntryHash {
	effectiveBaseDir := ""
	if e.ExposeBaseDir && allowBaseDir {
		effectiveBaseDir = baseDir
	}
	return pool.ConfigEntryHash{
		Exec:          e.Exec,
		ExposeBaseDir: e.ExposeBaseDir,
		Fontconfig:    e.Fontconfig,
		BaseDir:       effectiveBaseDir,
		Mechanism:     mechanism,
	}
}

// Registry is the merged view of every `.conf` file found across a
// set of data directories: one entry per (kind, MIME) pair, with later
// directories overriding earlier ones on conflict.
type Registry struct {
	Loaders map[string]RegistryEntry
	Editors map[string]RegistryEntry
}

// entryMap returns the map matching kind, for code shared between
// loader and editor lookups.
func (r *Registry) entryMap(kind pool.Kind) map[string]RegistryEntry {
	if kind == pool.KindEditor {
		return r.Editors
	}
	return r.Loaders
}

// Lookup returns the registry entry for (kind, mime), if any.
func (r *Registry) Lookup(kind pool.Kind, mime string) (RegistryEntry, bool) {
	e, ok := r.entryMap(kind)[mime]
	return e, ok
}

// LoadRegistry scans <dir>/glycin-loaders/<compatVersion>+/conf.d/*.conf
// under every directory in dataDirs, in order, merging entries across
// directories and files: a later-searched directory's Exec for the same
// (kind, mime) group wins over an earlier one, per C8's merge rule.
// Directories or conf.d subtrees that don't exist are skipped rather
// than treated as an error — most installs only populate a subset of
// dataDirs.
func LoadRegistry(dataDirs []string, compatVersion int) (*Registry, error) {
	reg := &Registry{Loaders: map[string]RegistryEntry{}, Editors: map[string]RegistryEntry{}}
	for _, dir := range dataDirs {
		confDir := filepath.Join(dir, "glycin-loaders", strconv.Itoa(compatVersion)+"+", "conf.d")
		entries, err := ScanConfDir(confDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			reg.entryMap(e.Kind)[e.MIME] = e
		}
	}
	return reg, nil
}

// ScanConfDir parses every *.conf file in dir, in sorted filename
// order, and returns their entries concatenated (later files in the
// same directory also override earlier ones, applied by the caller the
// same way cross-directory merging is).
func ScanConfDir(dir string) ([]RegistryEntry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.conf"))
	if err != nil {
		return nil, fmt.Errorf("config: globbing %s: %w", dir, err)
	}
	if len(matches) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}
	sort.Strings(matches)

	var all []RegistryEntry
	for _, path := range matches {
		entries, err := parseConfFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		all = append(all, entries...)
	}
	return all, nil
}

// parseConfFile implements the small GLib-keyfile-shaped syntax C8
// specifies: `[kind:mime]` group headers, `Key=Value` lines within a
// group, `#`-prefixed comment lines, and blank lines, all ignored
// outside a recognized group. No library in the retrieved example pack
// parses this GLib `[group]`/`Key=Value` shape (the corpus's only
// structured-config story is YAML via gopkg.in/yaml.v3, the wrong shape
// here), so this is a small dedicated bufio.Scanner-based parser.
func parseConfFile(path string) ([]RegistryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []RegistryEntry
	var current *RegistryEntry
	var haveExec bool

	flush := func() error {
		if current == nil {
			return nil
		}
		if !haveExec {
			return fmt.Errorf("group %s:%s missing required key Exec", current.Kind, current.MIME)
		}
		entries = append(entries, *current)
		current = nil
		haveExec = false
		return nil
	}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if err := flush(); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			header := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			kindStr, mime, ok := strings.Cut(header, ":")
			if !ok {
				continue // unrecognized group header, ignored per spec
			}
			var kind pool.Kind
			switch kindStr {
			case "loader":
				kind = pool.KindLoader
			case "editor":
				kind = pool.KindEditor
			default:
				continue // unrecognized group kind, ignored per spec
			}
			current = &RegistryEntry{Kind: kind, MIME: mime}
			continue
		}
		if current == nil {
			continue // key outside any recognized group, ignored per spec
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "Exec":
			current.Exec = value
			haveExec = true
		case "ExposeBaseDir":
			current.ExposeBaseDir = parseConfBool(value)
		case "Fontconfig":
			current.Fontconfig = parseConfBool(value)
		case "Operations":
			current.Operations = splitConfList(value)
		default:
			// Unknown key within a recognized group, ignored per spec.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseConfBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// splitConfList splits a semicolon-separated value list, the GLib
// keyfile convention for string-list values, dropping empty elements
// produced by a trailing separator.
func splitConfList(v string) []string {
	parts := strings.Split(v, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
