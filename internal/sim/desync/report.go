package desync

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// GetCompareDataText renders res as the plain-text desync report.
func GetCompareDataText(res *CompareResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick left = %08X, tick right = %08X\n", res.TickLeft, res.TickRight)
	fmt.Fprintf(&b, "srand0 left = %08X, srand0 right = %08X\n", res.SRand0Left, res.SRand0Right)
	for _, c := range res.Changes {
		switch c.Change {
		case ChangeAdded:
			fmt.Fprintf(&b, "Sprite added (%s), index: %d\n", c.Kind, c.Index)
		case ChangeRemoved:
			fmt.Fprintf(&b, "Sprite removed (%s), index: %d\n", c.Kind, c.Index)
		case ChangeModified:
			fmt.Fprintf(&b, "Sprite modifications (%s), index: %d\n", c.Kind, c.Index)
			for _, d := range c.Diffs {
				fmt.Fprintf(&b, "  %s::%s, len = %d, offset = %d, left = 0x%016X, right = 0x%016X\n",
					d.Struct, d.Field, d.Length, d.Offset, d.Left, d.Right)
			}
		}
	}
	return b.String()
}

// LogCompareDataToFile writes the report to path. It reports false when
// the file cannot be written.
func LogCompareDataToFile(path string, res *CompareResult) bool {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return false
	}
	_, werr := f.WriteString(GetCompareDataText(res))
	cerr := f.Close()
	return werr == nil && cerr == nil
}

// ReportFileName names the report for a desync detected at tick.
func ReportFileName(now time.Time, tick uint32) string {
	return fmt.Sprintf("desync_%d_%d.txt", now.Unix(), tick)
}
