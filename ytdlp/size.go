package ytdlp

import "fmt"

// FormatFileSize renders a byte count as a human-readable label: whole bytes,
// one decimal for KB and MB, two for GB, with 1024 thresholds.
func FormatFileSize(n int64) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%d B", n)
	case n < 1<<20:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	case n < 1<<30:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/(1<<30))
	}
}
