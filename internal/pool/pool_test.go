package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

var testKey = ConfigEntryHash{Exec: "/usr/bin/test-codec"}

type fakeHandle struct {
	closed       atomic.Bool
	disconnected atomic.Bool
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

func (h *fakeHandle) Disconnected() bool { return h.disconnected.Load() }

func spawnFake() Spawner {
	return func(ctx context.Context) (Handle, error) {
		return &fakeHandle{}, nil
	}
}

func TestAcquireReusesBelowMaxParallel(t *testing.T) {
	p := New(time.Hour, nil)
	defer p.Close()

	var spawns int
	spawner := func(ctx context.Context) (Handle, error) {
		spawns++
		return &fakeHandle{}, nil
	}

	l1, err := p.Acquire(context.Background(), KindLoader, testKey, 2, spawner)
	if err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	l2, err := p.Acquire(context.Background(), KindLoader, testKey, 2, spawner)
	if err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if spawns != 1 {
		t.Fatalf("expected a single spawn for two leases below max parallel, got %d", spawns)
	}
	if l1.Handle() != l2.Handle() {
		t.Fatal("expected both leases to share the same underlying handle")
	}
	l1.Release()
	l2.Release()
}

func TestAcquireSpawnsFreshWhenSaturated(t *testing.T) {
	p := New(time.Hour, nil)
	defer p.Close()

	var spawns int
	spawner := func(ctx context.Context) (Handle, error) {
		spawns++
		return &fakeHandle{}, nil
	}

	l1, err := p.Acquire(context.Background(), KindLoader, testKey, 1, spawner)
	if err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	l2, err := p.Acquire(context.Background(), KindLoader, testKey, 1, spawner)
	if err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if spawns != 2 {
		t.Fatalf("expected a second spawn once max parallel is saturated, got %d", spawns)
	}
	if l1.Handle() == l2.Handle() {
		t.Fatal("expected distinct handles once the first was saturated")
	}
	l1.Release()
	l2.Release()
}

func TestAcquireSkipsDisconnectedProcess(t *testing.T) {
	p := New(time.Hour, nil)
	defer p.Close()

	dead := &fakeHandle{}
	dead.disconnected.Store(true)
	first := true
	spawner := func(ctx context.Context) (Handle, error) {
		if first {
			first = false
			return dead, nil
		}
		return &fakeHandle{}, nil
	}

	l1, err := p.Acquire(context.Background(), KindLoader, testKey, 4, spawner)
	if err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	l1.Release()

	l2, err := p.Acquire(context.Background(), KindLoader, testKey, 4, spawner)
	if err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if l2.Handle() == dead {
		t.Fatal("expected a disconnected process to be skipped, not reused")
	}
}

func TestAcquireNeverSharesHelperAcrossBaseDirectories(t *testing.T) {
	p := New(time.Hour, nil)
	defer p.Close()

	var spawns int
	spawner := func(ctx context.Context) (Handle, error) {
		spawns++
		return &fakeHandle{}, nil
	}

	keyOne := ConfigEntryHash{Exec: "/usr/bin/svg-loader", ExposeBaseDir: true, BaseDir: "/home/user/one", Mechanism: "namespace"}
	keyTwo := ConfigEntryHash{Exec: "/usr/bin/svg-loader", ExposeBaseDir: true, BaseDir: "/home/user/two", Mechanism: "namespace"}

	l1, err := p.Acquire(context.Background(), KindLoader, keyOne, 4, spawner)
	if err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	l2, err := p.Acquire(context.Background(), KindLoader, keyTwo, 4, spawner)
	if err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if spawns != 2 {
		t.Fatalf("expected a fresh helper per distinct base directory, got %d spawns", spawns)
	}
	if l1.Handle() == l2.Handle() {
		t.Fatal("expected two different base directories to never share a helper")
	}
	l1.Release()
	l2.Release()
}

func TestLoaderAndEditorDictionariesAreIndependent(t *testing.T) {
	p := New(time.Hour, nil)
	defer p.Close()

	if _, err := p.Acquire(context.Background(), KindLoader, testKey, 4, spawnFake()); err != nil {
		t.Fatalf("Acquire loader: %v", err)
	}
	if _, err := p.Acquire(context.Background(), KindEditor, testKey, 4, spawnFake()); err != nil {
		t.Fatalf("Acquire editor: %v", err)
	}

	stats := p.Stats()
	if stats.Loaders != 1 || stats.Editors != 1 {
		t.Fatalf("expected one loader and one editor tracked under the same key, got %+v", stats)
	}
}

func TestSweepEvictsIdleProcessPastRetention(t *testing.T) {
	p := New(20*time.Millisecond, nil)
	defer p.Close()

	l, err := p.Acquire(context.Background(), KindLoader, testKey, 4, spawnFake())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	h := l.Handle().(*fakeHandle)
	l.Release()

	deadline := time.Now().Add(2 * time.Second)
	for !h.closed.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !h.closed.Load() {
		t.Fatal("expected the idle process to be closed by the sweep loop")
	}
	if stats := p.Stats(); stats.Loaders != 0 {
		t.Fatalf("expected the swept process to be removed from stats, got %+v", stats)
	}
}
