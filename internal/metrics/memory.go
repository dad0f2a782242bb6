package metrics

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// readRSS reports the process's resident set size in bytes. On Linux it
// reads /proc/self/status; anywhere that fails or isn't Linux, it falls
// back to runtime.MemStats' Sys figure as a coarse approximation.
func readRSS() uint64 {
	if rss, ok := readRSSFromProc(); ok {
		return rss
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys
}

func readRSSFromProc() (uint64, bool) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
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
