package parsers

import (
	"regexp"
	"strings"
)

// Tag is the role a single statement line plays
type Tag int

const (
	Descriptor Tag = iota
	DateOnly
	SectionHeader
	AmountOnly
)

func (t Tag) String() string {
	switch t {
	case DateOnly:
		return "date"
	case SectionHeader:
		return "header"
	case AmountOnly:
		return "amount"
	default:
		return "descriptor"
	}
}

// ClassifiedLine is one trimmed, non-empty line of a page with its tag
type ClassifiedLine struct {
	Index int
	Text  string
	Tag   Tag
}

var headerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^page\s+\d+\s+of\s+\d+\b`),
	regexp.MustCompile(`(?i)^totals?\b`),
	regexp.MustCompile(`(?i)^(?:beginning|ending|opening|closing)\s+balance\b`),
	regexp.MustCompile(`(?i)^(?:daily\s+ending|ending\s+daily)\s+balance\b`),
	regexp.MustCompile(`(?i)^daily\s+balance\s+summary\b`),
	regexp.MustCompile(`(?i)^transaction\s+history\b`),
	regexp.MustCompile(`(?i)^date\b.*\bdescription\b`),
	regexp.MustCompile(`(?i)^deposits\s*(?:/|and)\s*(?:other\s+)?(?:additions|credits)\b`),
	regexp.MustCompile(`(?i)^(?:electronic\s+)?withdrawals\s*(?:/|and)\s*(?:other\s+)?(?:subtractions|debits)\b`),
	regexp.MustCompile(`(?i)^monthly\s+service\s+fee\s+summary\b`),
	regexp.MustCompile(`(?i)^fee\s+period\b`),
	regexp.MustCompile(`(?i)^(?:your\s+)?account\s+summary\b`),
	regexp.MustCompile(`(?i)^balance\s+summary\b`),
	regexp.MustCompile(`(?i)^summary\s+of\s+accounts\b`),
	regexp.MustCompile(`(?i)^(?:statement\s+period|account\s+number)\b`),
}

var (
	amountOnlyRe = regexp.MustCompile(`^-?\$?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2}$`)
	dateOnlyRe   = regexp.MustCompile(`(?i)^(?:\d{1,2}/\d{1,2}|` + monthNames + `[a-z]*\.?\s+\d{1,2})$`)
)

// IsSectionHeader reports whether a trimmed line is statement chrome
func IsSectionHeader(line string) bool {
	for _, p := range headerPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// ClassifyLine tags a single trimmed line. Headers are checked first.
func ClassifyLine(line string) Tag {
	switch {
	case IsSectionHeader(line):
		return SectionHeader
	case amountOnlyRe.MatchString(line):
		return AmountOnly
	case dateOnlyRe.MatchString(line):
		return DateOnly
	default:
		return Descriptor
	}
}

// ClassifyPage splits page text into trimmed non-empty lines and tags each.
// Index is the position in the returned slice.
func ClassifyPage(text string) []ClassifiedLine {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]ClassifiedLine, 0, len(raw))
	for _, l := range raw {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			continue
		}
		lines = append(lines, ClassifiedLine{Index: len(lines), Text: l, Tag: ClassifyLine(l)})
	}
	return lines
}
