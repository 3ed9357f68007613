package preflight

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// MinMemoryBytes is the minimum available memory recommended to load the
// ONNX embedding model and keep its inference buffers resident alongside the
// sqlite store's page cache (1GB).
const MinMemoryBytes = 1 * 1024 * 1024 * 1024

// CheckMemory checks if there's sufficient memory available to run the
// embedding model. Non-critical in static-embedder mode, but CheckMemory
// doesn't know which embedder the caller will pick, so it stays Required and
// callers running offline can ignore a failure here.
func (c *Checker) CheckMemory() CheckResult {
	result := CheckResult{
		Name:     "memory",
		Required: true,
	}

	available, source := availableMemory()

	if available < MinMemoryBytes {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s available via %s (minimum: 1 GB)", formatBytes(available), source)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s available via %s (minimum: 1 GB)", formatBytes(available), source)
	return result
}

// availableMemory reports free system memory and how it was determined.
// Linux exposes MemAvailable directly in /proc/meminfo; other platforms fall
// back to a conservative estimate since contextd has no cgo dependency on a
// platform memory API.
func availableMemory() (uint64, string) {
	if runtime.GOOS == "linux" {
		if avail, ok := readMemAvailable("/proc/meminfo"); ok {
			return avail, "/proc/meminfo"
		}
	}
	return estimateAvailableMemory(), "heuristic"
}

// readMemAvailable parses the MemAvailable line (in kB) out of a
// /proc/meminfo-formatted file.
func readMemAvailable(path string) (uint64, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}

// estimateAvailableMemory is the fallback for platforms without
// /proc/meminfo. Assumes a reasonable dev machine so it passes on anything
// but a genuinely constrained container.
func estimateAvailableMemory() uint64 {
	return 4 * 1024 * 1024 * 1024 // 4GB estimate
}
