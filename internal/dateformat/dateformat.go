// Package dateformat translates the Java-style date/time patterns used on
// the pact wire format ("yyyy-MM-dd'T'HH:mm:ss") into Go's reference-time
// layout strings, so both the matching engine (parsing an actual value
// against an expected format) and the generator (producing an example
// value in that format) share one locale-neutral translation instead of
// reimplementing Java's SimpleDateFormat.
package dateformat

import "strings"

var tokenOrder = []struct {
	java string
	goL  string
}{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"dd", "02"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"SSS", "000"},
	{"a", "PM"},
	{"Z", "-0700"},
	{"XXX", "Z07:00"},
	{"zzz", "MST"},
}

// ToGoLayout translates a Java-style pattern to a Go time layout. Literal
// sections quoted with single quotes (Java's escape convention, e.g.
// "'T'") are copied through verbatim with the quotes stripped.
func ToGoLayout(javaPattern string) string {
	var out strings.Builder
	runes := []rune(javaPattern)
	for i := 0; i < len(runes); {
		if runes[i] == '\'' {
			j := i + 1
			for j < len(runes) && runes[j] != '\'' {
				j++
			}
			out.WriteString(string(runes[i+1 : j]))
			i = j + 1
			continue
		}
		matched := false
		for _, tok := range tokenOrder {
			tl := len(tok.java)
			if i+tl <= len(runes) && string(runes[i:i+tl]) == tok.java {
				out.WriteString(tok.goL)
				i += tl
				matched = true
				break
			}
		}
		if !matched {
			out.WriteRune(runes[i])
			i++
		}
	}
	return out.String()
}

// DefaultDate is the ISO-8601 date-only layout used when no format is
// supplied.
const DefaultDate = "2006-01-02"

// DefaultTime is the ISO-8601 time-only layout used when no format is
// supplied.
const DefaultTime = "15:04:05"

// DefaultDateTime is the ISO-8601 layout used when no format is supplied.
const DefaultDateTime = "2006-01-02T15:04:05"
