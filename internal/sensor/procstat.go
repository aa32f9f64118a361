package sensor

import (
	"os"
	"strconv"
	"strings"

	"codeberg.org/mutker/thermctl/internal/thermal"
)

const defaultStatPath = "/proc/stat"

// ProcStatUtilization estimates CPU utilization from the jiffy deltas on
// the aggregate "cpu" line of /proc/stat. The first sample, and any failed
// read, yields the last known estimate so the power model never sees a gap.
type ProcStatUtilization struct {
	path      string
	prevTotal uint64
	prevIdle  uint64
	last      float64
}

func NewProcStatUtilization() *ProcStatUtilization {
	return &ProcStatUtilization{
		path: defaultStatPath,
		last: thermal.DefaultUtilization,
	}
}

func (u *ProcStatUtilization) Estimate() float64 {
	total, idle, ok := u.sample()
	if !ok {
		return u.last
	}

	deltaTotal := total - u.prevTotal
	deltaIdle := idle - u.prevIdle
	first := u.prevTotal == 0
	u.prevTotal = total
	u.prevIdle = idle

	if first || deltaTotal == 0 {
		return u.last
	}

	u.last = 1.0 - float64(deltaIdle)/float64(deltaTotal)

	return u.last
}

func (u *ProcStatUtilization) sample() (total, idle uint64, ok bool) {
	data, err := os.ReadFile(u.path)
	if err != nil {
		return 0, 0, false
	}

	line, _, _ := strings.Cut(string(data), "\n")
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return 0, 0, false
	}

	for i, field := range fields[1:] {
		value, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		total += value
		// idle + iowait
		if i == 3 || i == 4 {
			idle += value
		}
	}

	return total, idle, true
}
