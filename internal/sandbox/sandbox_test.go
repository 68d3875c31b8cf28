package sandbox

import "testing"

func TestSyscallAllowListFontconfig(t *testing.T) {
	base := SyscallAllowList(false)
	withFc := SyscallAllowList(true)
	if len(withFc) <= len(base) {
		t.Fatalf("expected fontconfig list to be strictly longer: base=%d fc=%d", len(base), len(withFc))
	}
	if len(withFc)-len(base) != len(allowedSyscallsFontconfig) {
		t.Fatalf("unexpected fontconfig extension size: got %d want %d", len(withFc)-len(base), len(allowedSyscallsFontconfig))
	}
}

func TestCompileFilterProducesAllowAndDefault(t *testing.T) {
	prog, err := CompileFilter([]string{"read", "write", "exit_group"}, ActionKillProcess)
	if err != nil {
		t.Fatalf("CompileFilter: %v", err)
	}
	// 3 header instructions (load arch, jeq arch, kill-mismatch) + load nr,
	// then 2 instructions per resolved syscall, then 1 trailing default return.
	want := 4 + 2*3 + 1
	if len(prog) != want {
		t.Fatalf("program length: got %d want %d", len(prog), want)
	}
	last := prog[len(prog)-1]
	if last.K != seccompRetKillProc {
		t.Fatalf("expected trailing default action to kill the process, got K=%#x", last.K)
	}
}

func TestCompileFilterRejectsEmptyAllowList(t *testing.T) {
	if _, err := CompileFilter(nil, ActionTrap); err == nil {
		t.Fatal("expected an error for an empty resolved allow list")
	}
}

func TestCalculateMemoryLimitAppliesCapHeadroomAndRatio(t *testing.T) {
	// Far above the 20 GiB cap: result must be bounded by the cap, not by
	// the (much larger) input.
	limit := CalculateMemoryLimit(1 << 40)
	capped := CalculateMemoryLimit(hardMemoryCap)
	if limit != capped {
		t.Fatalf("expected memory above the hard cap to saturate at the cap's own limit: got %d want %d", limit, capped)
	}

	want := uint64(float64(hardMemoryCap-reservedHeadroom) * availableRatio)
	if capped != want {
		t.Fatalf("calculate: got %d want %d", capped, want)
	}
}

func TestCalculateMemoryLimitBelowHeadroomIsZero(t *testing.T) {
	if got := CalculateMemoryLimit(reservedHeadroom / 2); got != 0 {
		t.Fatalf("expected zero limit when available memory is below headroom, got %d", got)
	}
}

func TestMechanismString(t *testing.T) {
	cases := map[Mechanism]string{
		MechanismNamespace: "namespace",
		MechanismPortal:    "portal",
		MechanismNone:      "none",
	}
	for m, want := range cases {
		if got := m.String(); got != want {
			t.Fatalf("Mechanism(%d).String(): got %q want %q", int(m), got, want)
		}
	}
}
