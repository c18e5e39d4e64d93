// Package duration converts between the HH:MM:SS strings the task backend
// speaks and the numeric durations the timer works with.
package duration

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is rendered for absent or unrepresentable durations.
const NotAvailable = "NA"

const zero = "00:00:00"

// ParseMillis converts "HH:MM:SS" into milliseconds. Malformed input never
// fails: the empty string, anything without exactly three fields, and
// non-numeric fields all contribute zero.
func ParseMillis(text string) int64 {
	if text == "" || text == zero {
		return 0
	}
	parts := strings.Split(text, ":")
	if len(parts) != 3 {
		return 0
	}
	h := leadingInt(parts[0])
	m := leadingInt(parts[1])
	s := leadingInt(parts[2])
	return (h*3600 + m*60 + s) * 1000
}

// ParseDuration is ParseMillis as a time.Duration.
func ParseDuration(text string) time.Duration {
	return time.Duration(ParseMillis(text)) * time.Millisecond
}

// FormatMinutes renders a minute count as zero-padded "HH:MM:SS". Hours are
// not capped at two digits. Nil, NaN, infinite and negative inputs render
// as NotAvailable.
func FormatMinutes(minutes *float64) string {
	if minutes == nil {
		return NotAvailable
	}
	m := *minutes
	if math.IsNaN(m) || math.IsInf(m, 0) || m < 0 {
		return NotAvailable
	}
	return formatSeconds(int64(math.Floor(m * 60)))
}

// FormatMinutesInt is FormatMinutes for the integer minute counts stored on
// tasks.
func FormatMinutesInt(minutes int64) string {
	m := float64(minutes)
	return FormatMinutes(&m)
}

// FormatElapsed renders a live duration, flooring to whole seconds.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return formatSeconds(int64(d / time.Second))
}

// FormatSeconds renders a second count.
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return formatSeconds(seconds)
}

func formatSeconds(total int64) string {
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// leadingInt parses an optional sign followed by decimal digits, ignoring
// leading whitespace and anything after the digits. No digits yields 0.
func leadingInt(field string) int64 {
	field = strings.TrimLeft(field, " \t\n\r")
	end := 0
	if end < len(field) && (field[end] == '+' || field[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(field) && field[end] >= '0' && field[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	n, err := strconv.ParseInt(field[:end], 10, 64)
	if err != nil {
		return 0
	}
	// keeps the millisecond product inside int64
	const limit = math.MaxInt64 / 3_600_000
	if n > limit || n < -limit {
		return 0
	}
	return n
}
