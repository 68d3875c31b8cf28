package sandbox

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/glycin-project/glycin/internal/glyerr"
)

// hardMemoryCap bounds how much of the system's available memory a
// single codec helper may ever be allowed to claim, independent of how
// much is actually free. The reference implementation caps the
// considered-available figure at 2 GiB before applying its headroom and
// ratio; this spec raises that ceiling to 20 GiB (see DESIGN.md "Open-question
// resolutions") to better fit modern multi-gigapixel inputs,
// while keeping the same headroom-then-ratio shape.
const hardMemoryCap = 20 * 1024 * 1024 * 1024 // 20 GiB

// reservedHeadroom is subtracted from available memory before the ratio
// is applied, leaving room for the host process and other helpers.
const reservedHeadroom = 200 * 1024 * 1024 // 200 MiB

// availableRatio is the fraction of (available - headroom) a single
// helper's RLIMIT_AS may consume.
const availableRatio = 0.8

// AvailableMemory reads MemAvailable and SwapFree out of /proc/meminfo
// and returns their sum in bytes. Both fields are kernel-estimated
// "could be reclaimed/used without swapping heavily" figures, matching
// what the reference implementation reads from the same file.
func AvailableMemory() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, glyerr.New(glyerr.KindRlimitError, fmt.Errorf("opening /proc/meminfo: %w", err))
	}
	defer f.Close()

	var memAvailable, swapFree uint64
	found := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() && found < 2 {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MemAvailable:"):
			memAvailable = parseMeminfoKB(line)
			found++
		case strings.HasPrefix(line, "SwapFree:"):
			swapFree = parseMeminfoKB(line)
			found++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, glyerr.New(glyerr.KindRlimitError, fmt.Errorf("reading /proc/meminfo: %w", err))
	}
	return memAvailable + swapFree, nil
}

func parseMeminfoKB(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	kb, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}

// CalculateMemoryLimit derives the RLIMIT_AS byte value a spawned helper
// should be restricted to, from the host's currently available memory.
func CalculateMemoryLimit(available uint64) uint64 {
	considered := available
	if considered > hardMemoryCap {
		considered = hardMemoryCap
	}
	if considered <= reservedHeadroom {
		return 0
	}
	usable := considered - reservedHeadroom
	return uint64(float64(usable) * availableRatio)
}

// MemoryLimit is CalculateMemoryLimit fed from the live system state.
func MemoryLimit() (uint64, error) {
	available, err := AvailableMemory()
	if err != nil {
		return 0, err
	}
	return CalculateMemoryLimit(available), nil
}

// SetMemoryLimit applies limit as both the soft and hard RLIMIT_AS of
// the calling process, meant to be invoked in a forked child between
// fork and execve, before any namespace/seccomp setup that might itself
// need headroom.
func SetMemoryLimit(limit uint64) error {
	rlimit := unix.Rlimit{Cur: limit, Max: limit}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &rlimit); err != nil {
		return glyerr.New(glyerr.KindRlimitError, fmt.Errorf("setrlimit(RLIMIT_AS, %d): %w", limit, err))
	}
	return nil
}
