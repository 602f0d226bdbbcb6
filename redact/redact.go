// Package redact masks personal data (email addresses, phone numbers,
// card numbers and SSNs) in free text and decoded JSON values.
package redact

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	cardRe  = regexp.MustCompile(`\b[0-9]{4}[-.\s]?[0-9]{4}[-.\s]?[0-9]{4}[-.\s]?[0-9]{4}\b`)
	ssnRe   = regexp.MustCompile(`\b[0-9]{3}[-.\s]?[0-9]{2}[-.\s]?[0-9]{4}\b`)
	phoneRe = []*regexp.Regexp{
		regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`),
		regexp.MustCompile(`\+?[0-9]{1,3}[-.\s]?[0-9]{3,4}[-.\s]?[0-9]{3,4}[-.\s]?[0-9]{3,4}`),
	}
	nonDigit = regexp.MustCompile(`\D`)
)

// Email keeps the first and last character of the local part.
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok {
		return s
	}
	if len(local) <= 2 {
		return strings.Repeat("*", len(local)) + "@" + domain
	}
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + "@" + domain
}

// Phone keeps the leading three and trailing four characters of numbers
// with at least ten digits, two and two otherwise.
func Phone(s string) string {
	digits := nonDigit.ReplaceAllString(s, "")
	switch {
	case s == "":
		return s
	case len(digits) < 4:
		return strings.Repeat("*", len(s))
	case len(digits) >= 10:
		return s[:3] + strings.Repeat("*", len(s)-7) + s[len(s)-4:]
	default:
		return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
	}
}

// Card keeps the first and last four characters.
func Card(s string) string {
	if len(nonDigit.ReplaceAllString(s, "")) < 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// SSN keeps the area and serial numbers.
func SSN(s string) string {
	if len(nonDigit.ReplaceAllString(s, "")) != 9 {
		return strings.Repeat("*", len(s))
	}
	return s[:3] + "-**-" + s[len(s)-4:]
}

// Text masks every recognised value in s. Cards and SSNs are masked before
// phone numbers so their digits are not taken for a phone number first.
func Text(s string) string {
	if s == "" {
		return s
	}
	s = emailRe.ReplaceAllStringFunc(s, Email)
	s = cardRe.ReplaceAllStringFunc(s, Card)
	s = ssnRe.ReplaceAllStringFunc(s, SSN)
	for _, re := range phoneRe {
		s = re.ReplaceAllStringFunc(s, Phone)
	}
	return s
}

// Value masks strings inside v, descending into maps and slices of the
// shapes encoding/json decodes into. Other values are returned unchanged.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return Text(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Value(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = Text(val)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, val := range t {
			out[i] = Text(val)
		}
		return out
	default:
		return v
	}
}

// JSON masks the strings of a JSON document. Input that does not decode
// is returned as is.
func JSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.Marshal(Value(v))
	if err != nil {
		return raw
	}
	return out
}
