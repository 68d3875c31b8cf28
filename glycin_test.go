package glycin

import (
	"testing"

	"github.com/glycin-project/glycin/internal/config"
	"github.com/glycin-project/glycin/internal/glyerr"
	"github.com/glycin-project/glycin/internal/pool"
)

func TestRuntimeLookupMissingMIME(t *testing.T) {
	rt := &Runtime{
		cfg:      &config.Config{},
		registry: &config.Registry{Loaders: map[string]config.RegistryEntry{}, Editors: map[string]config.RegistryEntry{}},
	}

	_, err := rt.lookup(pool.KindLoader, "image/does-not-exist")
	if err == nil {
		t.Fatal("expected an error for an unregistered mime type")
	}
	if k, ok := glyerr.KindOf(err); !ok || k != glyerr.KindNoLoadersConfigured {
		t.Errorf("got Kind %v (ok=%v), want KindNoLoadersConfigured", k, ok)
	}
}

func TestRuntimeLookupFound(t *testing.T) {
	entry := config.RegistryEntry{Kind: pool.KindLoader, MIME: "image/png", Exec: "/usr/bin/true"}
	rt := &Runtime{
		cfg: &config.Config{},
		registry: &config.Registry{
			Loaders: map[string]config.RegistryEntry{"image/png": entry},
			Editors: map[string]config.RegistryEntry{},
		},
	}

	got, err := rt.lookup(pool.KindLoader, "image/png")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Exec != entry.Exec {
		t.Errorf("Exec = %q, want %q", got.Exec, entry.Exec)
	}
}
