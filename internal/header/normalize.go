package header

import (
	"errors"
	"strings"
)

// NormalizeRule rewrites compiler output before it is compared with a
// golden file.
type NormalizeRule struct {
	From string `json:"from"`
	To   string `json:"to"`
}

var errMalformedNormalize = errors.New(`malformed normalization rule: expected "<from>" -> "<to>"`)

// parseNormalizeRule parses `"from" -> "to"`. Quotes delimit the strings
// literally; there are no escapes.
func parseNormalizeRule(payload string) (NormalizeRule, error) {
	from, rest, ok := nextQuoted(payload)
	if !ok {
		return NormalizeRule{}, errMalformedNormalize
	}
	if !strings.HasPrefix(strings.TrimSpace(rest), "->") {
		return NormalizeRule{}, errMalformedNormalize
	}
	to, _, ok := nextQuoted(rest)
	if !ok {
		return NormalizeRule{}, errMalformedNormalize
	}
	return NormalizeRule{From: from, To: to}, nil
}

func nextQuoted(s string) (quoted, rest string, ok bool) {
	begin := strings.IndexByte(s, '"')
	if begin < 0 {
		return "", s, false
	}
	end := strings.IndexByte(s[begin+1:], '"')
	if end < 0 {
		return "", s, false
	}
	end += begin + 1
	return s[begin+1 : end], s[end+1:], true
}

// Apply runs every rule over s in order.
func Apply(rules []NormalizeRule, s string) string {
	for _, r := range rules {
		s = strings.ReplaceAll(s, r.From, r.To)
	}
	return s
}
