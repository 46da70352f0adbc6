package common

import (
	"strconv"
)

var MegaSize = []string{
	"B",
	"KB",
	"MB",
	"GB",
	"TB",
	"PB",
	"EB",
}

// ByteSizeToString formats a byte count for progress/log output (e.g. cached-size
// reporting in the cat command), using binary units (KiB, MiB, ...) by
// default or decimal units (KB, MB, ...) when megaUnits is set.
func ByteSizeToString(size int64, megaUnits bool) string {
	units := []string{
		"B",
		"KiB",
		"MiB",
		"GiB",
		"TiB",
		"PiB",
		"EiB",
	}
	unit := 0
	floatSize := float64(size)
	gigSize := 1024

	if megaUnits {
		gigSize = 1000
		units = MegaSize
	}

	for floatSize/float64(gigSize) >= 1 {
		unit++
		floatSize /= float64(gigSize)
	}

	return strconv.FormatFloat(floatSize, 'f', 2, 64) + " " + units[unit]
}
