package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseTimestamp accepts "ss", "m:ss", "h:mm:ss" or a Go duration such as
// "1m30s" and returns milliseconds.
func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil && strings.ContainsAny(s, "hms") {
		if d < 0 {
			return 0, fmt.Errorf("negative timestamp %q", s)
		}
		return d.Milliseconds(), nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		if i > 0 && n >= 60 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + n
	}
	return total * 1000, nil
}
