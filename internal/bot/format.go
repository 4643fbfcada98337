package bot

import "fmt"

// countryFlag maps an ISO 3166-1 alpha-2 code to its regional indicator
// pair. Unknown codes fall back to a globe.
func countryFlag(code string) string {
	if len(code) != 2 {
		return "🌍"
	}
	a, b := code[0]|0x20, code[1]|0x20
	if a < 'a' || a > 'z' || b < 'a' || b > 'z' {
		return "🌍"
	}
	return string(rune(0x1F1E6+int(a-'a'))) + string(rune(0x1F1E6+int(b-'a')))
}

func formatBytes(n int64) string {
	const (
		kib = 1 << 10
		mib = 1 << 20
		gib = 1 << 30
	)
	switch {
	case n >= gib:
		return fmt.Sprintf("%.2f GB", float64(n)/gib)
	case n >= mib:
		return fmt.Sprintf("%.1f MB", float64(n)/mib)
	case n >= kib:
		return fmt.Sprintf("%.1f KB", float64(n)/kib)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
