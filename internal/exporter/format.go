package exporter

import (
	"fmt"
	"strconv"
)

// formatFloat formats a float64 value for export with the shortest
// representation that parses back to the same value, so exported
// snapshots round-trip the stored values exactly.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatInt formats an int64 value for export
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}

// formatBool formats a boolean value for export
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
