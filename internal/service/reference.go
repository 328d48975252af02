package service

import (
	"regexp"
	"strconv"
)

var bareDigits = regexp.MustCompile(`\d+`)

// ReferenceParser finds the order code a customer typed into the bank
// transfer description.
type ReferenceParser struct {
	prefixed *regexp.Regexp
}

func NewReferenceParser(prefix string) *ReferenceParser {
	return &ReferenceParser{
		prefixed: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) + `[\s\-_.:#]*(\d+)`),
	}
}

// ExtractOrderCode prefers a prefixed code ("MEOSTORE-4889", "meostore 4889")
// and falls back to the first run of digits that is a valid code. A prefixed
// match that is zero or does not fit in int64 is not found, there is no
// fallback in that case.
func (p *ReferenceParser) ExtractOrderCode(description string) (int64, bool) {
	if m := p.prefixed.FindStringSubmatch(description); m != nil {
		return parseCode(m[1])
	}

	for _, digits := range bareDigits.FindAllString(description, -1) {
		if code, ok := parseCode(digits); ok {
			return code, true
		}
	}

	return 0, false
}

func parseCode(digits string) (int64, bool) {
	code, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}
