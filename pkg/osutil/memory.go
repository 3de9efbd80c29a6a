package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

const (
	cgroupV2MemoryLimitPath = "/sys/fs/cgroup/memory.max"
	cgroupV1MemoryLimitPath = "/sys/fs/cgroup/memory/memory.limit_in_bytes"

	// cgroup v1 reports this page-aligned max int64 when no limit is set
	cgroupV1Unrestricted = 9223372036854771712
)

// GetTotalMemory returns the memory available to the process, honoring the
// container's cgroup limit when one is set.
func GetTotalMemory() uint64 {
	return totalMemory(memory.TotalMemory(), cgroupV2MemoryLimitPath, cgroupV1MemoryLimitPath)
}

func totalMemory(physical uint64, limitPaths ...string) uint64 {
	for _, path := range limitPaths {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		value := strings.TrimSpace(string(raw))
		if value == "max" {
			return physical
		}

		limit, err := strconv.ParseUint(value, 10, 64)
		if err != nil || limit == 0 || limit == cgroupV1Unrestricted {
			return physical
		}
		if limit < physical || physical == 0 {
			return limit
		}
		return physical
	}
	return physical
}
