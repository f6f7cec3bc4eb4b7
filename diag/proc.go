package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// procReader reads host facts from the proc filesystem. The root is
// configurable so tests point it at a fixture tree.
type procReader struct {
	root string
}

// Uptime returns how long the host has been up.
func (p procReader) Uptime() (time.Duration, error) {
	b, err := os.ReadFile(filepath.Join(p.root, "uptime"))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) < 1 {
		return 0, fmt.Errorf("malformed uptime: %q", string(b))
	}
	secs, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed uptime: %w", err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// LoadAvg returns the 1, 5 and 15 minute load averages.
func (p procReader) LoadAvg() (one, five, fifteen float64, err error) {
	b, err := os.ReadFile(filepath.Join(p.root, "loadavg"))
	if err != nil {
		return 0, 0, 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("malformed loadavg: %q", string(b))
	}
	if one, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return 0, 0, 0, err
	}
	if five, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return 0, 0, 0, err
	}
	if fifteen, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return 0, 0, 0, err
	}
	return one, five, fifteen, nil
}

// MemInfo summarizes /proc/meminfo.
type MemInfo struct {
	TotalKB     int64
	AvailableKB int64
}

// UsedPercent returns memory utilization as a percentage.
func (m MemInfo) UsedPercent() float64 {
	if m.TotalKB == 0 {
		return 0
	}
	return float64(m.TotalKB-m.AvailableKB) / float64(m.TotalKB) * 100
}

// MemInfo reads total and available memory.
func (p procReader) MemInfo() (MemInfo, error) {
	b, err := os.ReadFile(filepath.Join(p.root, "meminfo"))
	if err != nil {
		return MemInfo{}, err
	}

	var info MemInfo
	for _, line := range strings.Split(string(b), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			info.TotalKB = v
		case "MemAvailable:":
			info.AvailableKB = v
		}
	}
	if info.TotalKB == 0 {
		return MemInfo{}, fmt.Errorf("meminfo missing MemTotal")
	}
	return info, nil
}
