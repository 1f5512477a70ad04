// Package entity extracts structured educational identifiers from free text.
//
// All extraction functions are pure and deterministic: text in, matches out.
// They never touch I/O and never fail; unparsable input yields empty results.
package entity

import (
	"regexp"
	"strings"
	"time"
)

// Pattern rules for entity extraction. Pre-compiled at package init.
var (
	// courseCodeRegex matches department-letter + number codes: CS101, MATH 200.
	courseCodeRegex = regexp.MustCompile(`(?i)\b[A-Z]{2,4}\s?\d{3,4}[A-Z]?\b`)

	// moduleRegex matches "module"/"modules" followed by a number, with an
	// optional trailing letter.
	moduleRegex = regexp.MustCompile(`(?i)\bmodules?\s*(\d+[A-Za-z]?)\b`)

	// assignmentRegex matches assignment-style references with an optional
	// "#", "No." or "Number" separator before the number.
	assignmentRegex = regexp.MustCompile(`(?i)\b(?:problem ?sets?|assignments?|labs?|exercises?|homeworks?)\s*(?:#|No\.?|Number)?\s*(\d+[A-Za-z]?)\b`)

	// dateRegex matches month-name + day: "Mar 7", "March 7th", "Mar. 7".
	dateRegex = regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?\b`)

	// ordinalRegex strips day ordinal suffixes before date parsing.
	ordinalRegex = regexp.MustCompile(`(\d+)(st|nd|rd|th)`)
)

// Entities is the structured view of one text blob. Derived and ephemeral;
// never persisted independently of the record it came from.
type Entities struct {
	CourseCodes       []string
	ModuleNumbers     []string
	AssignmentNumbers []string
	Dates             []string
}

// Extract pulls all entity kinds out of a text in one pass.
func Extract(text string) Entities {
	return Entities{
		CourseCodes:       ExtractCourseCodes(text),
		ModuleNumbers:     ExtractModuleNumbers(text),
		AssignmentNumbers: ExtractAssignmentNumbers(text),
		Dates:             ExtractDates(text),
	}
}

// ExtractCourseCodes returns course codes like "CS101" or "MATH 200",
// verbatim but trimmed.
func ExtractCourseCodes(text string) []string {
	if text == "" {
		return nil
	}
	matches := courseCodeRegex.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m))
	}
	return out
}

// ExtractModuleNumbers returns module numbers like "Module 7" or "Module 08".
// Leading zeros are stripped so "08" and "8" compare equal; values that are
// empty after stripping are discarded.
func ExtractModuleNumbers(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, m := range moduleRegex.FindAllStringSubmatch(text, -1) {
		num := strings.TrimLeft(m[1], "0")
		if num != "" {
			out = append(out, num)
		}
	}
	return out
}

// ExtractAssignmentNumbers returns assignment/problem-set/lab numbers.
func ExtractAssignmentNumbers(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	for _, m := range assignmentRegex.FindAllStringSubmatch(text, -1) {
		num := strings.TrimSpace(m[1])
		if num != "" {
			out = append(out, num)
		}
	}
	return out
}

// ExtractDates returns calendar-style date substrings ("Mar 7", "March 7th").
func ExtractDates(text string) []string {
	if text == "" {
		return nil
	}
	matches := dateRegex.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m))
	}
	return out
}

// dateFormats are tried in order by StandardizeDate.
var dateFormats = []string{
	"Jan 2",          // Mar 7
	"January 2",      // March 7
	"Jan 2 2006",     // Mar 7 2025
	"January 2 2006", // March 7 2025
	"Jan. 2",         // Mar. 7
	"January. 2",     // March. 7
}

// StandardizeDate parses a calendar-style date string into a comparable
// time. Ordinal suffixes are stripped first. When the input carries no
// year, fallbackYear is assumed. Returns ok=false on total failure; this
// function never errors on malformed input.
func StandardizeDate(s string, fallbackYear int) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	s = ordinalRegex.ReplaceAllString(s, "$1")
	s = canonicalizeMonthCase(strings.TrimSpace(s))

	for _, format := range dateFormats {
		t, err := time.Parse(format, s)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = time.Date(fallbackYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return t, true
	}
	return time.Time{}, false
}

// canonicalizeMonthCase title-cases alphabetic tokens so "mar 9" parses the
// same as "Mar 9". time.Parse is case-sensitive about month names.
func canonicalizeMonthCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if f == "" || f[0] < 'a' || f[0] > 'z' {
			continue
		}
		fields[i] = strings.ToUpper(f[:1]) + strings.ToLower(f[1:])
	}
	return strings.Join(fields, " ")
}
