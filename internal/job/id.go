package job

import (
	"strconv"
	"strings"
	"time"
)

// SanitizeLabel reduces a free-form label to [A-Za-z0-9_-], mapping everything
// else to '_'. An empty result falls back to "job".
func SanitizeLabel(label string) string {
	var b strings.Builder
	for _, c := range label {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "job"
	}
	return s
}

// NewID derives a job id from the tracking label (or argv[0] when the label is
// empty) plus a millisecond timestamp. Uniqueness against live records is the
// caller's concern.
func NewID(label string, command []string, now time.Time) string {
	base := label
	if base == "" && len(command) > 0 {
		base = command[0]
	}
	// Strip any path from argv[0] so ids stay readable.
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	return SanitizeLabel(base) + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}
