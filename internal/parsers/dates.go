package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const monthNames = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`

var (
	slashDateRe   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	monthDateRe   = regexp.MustCompile(`(?i)^(` + monthNames + `)[a-z]*\.?\s+(\d{1,2})$`)
	leadingDateRe = regexp.MustCompile(`(?i)^(\d{1,2}/\d{1,2}|` + monthNames + `[a-z]*\.?\s+\d{1,2})\s+(\S.*)$`)
)

var monthIndex = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseDateToken resolves an "M/D" or "Month D" token against the reference
// year. Impossible dates such as 2/30 are rejected.
func ParseDateToken(token string, year int) (time.Time, bool) {
	token = strings.TrimSpace(token)
	var month time.Month
	var day int

	if m := slashDateRe.FindStringSubmatch(token); m != nil {
		mm, _ := strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		month = time.Month(mm)
	} else if m := monthDateRe.FindStringSubmatch(token); m != nil {
		month = monthIndex[strings.ToLower(m[1])]
		day, _ = strconv.Atoi(m[2])
	} else {
		return time.Time{}, false
	}

	if year <= 0 || month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// splitLeadingDate separates a leading date token from the rest of a line
func splitLeadingDate(line string) (token, rest string, ok bool) {
	m := leadingDateRe.FindStringSubmatch(line)
	if m == nil {
		return "", line, false
	}
	return m[1], m[2], true
}
