package core

// normalize.go cleans up the values found in field-collected spreadsheets:
//   - several date layouts, including 2-digit years
//   - Excel formula prefixes (="value") and stray quotes
//   - phone numbers with country codes and separators
//   - identity numbers typed with spaces or dashes

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	uidPattern    = regexp.MustCompile(`^\d{12}$`)
	mobilePattern = regexp.MustCompile(`^\d{10}$`)
	nonDigits     = regexp.MustCompile(`\D`)
	spaceRuns     = regexp.MustCompile(`\s+`)
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// to the previous century.
var TwoDigitYearPivot = 0

var (
	twoDigitYearLayouts = []string{
		"02/01/06", "2/1/06", "02-01-06", "2-1-06", "02.01.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02",
		"02/01/2006", "2/1/2006", "02-01-2006", "2-1-2006", "02.01.2006",
		"02-Jan-2006", "2-Jan-2006", "02 Jan 2006", "2 Jan 2006", "Jan 2, 2006",
		"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
		"20060102",
	}
)

// ParseDate parses a date in any supported layout. Day-first layouts are
// preferred over month-first ones.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return truncateDay(t), true
		}
	}

	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// surrounding whitespace, a ="..." formula wrapper, and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// NormalizeHeader lowercases a header and folds separators to single spaces,
// so "Resident_ID", "resident-id" and " Resident  Id " compare equal.
func NormalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	h = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(h)
	return strings.TrimSpace(spaceRuns.ReplaceAllString(h, " "))
}

// MakeHeaderIndex indexes a header row by normalized name. The first
// occurrence of a duplicated header wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

// NormalizeUID strips separators from a national id number. The result is
// only valid if ValidUID accepts it.
func NormalizeUID(s string) string {
	s = CleanCell(s)
	return strings.NewReplacer(" ", "", "-", "", ".", "").Replace(s)
}

// ValidUID reports whether s is exactly 12 digits.
func ValidUID(s string) bool {
	return uidPattern.MatchString(s)
}

// NormalizeMobile strips separators, a +91/91 country code and a trunk 0.
func NormalizeMobile(s string) string {
	s = CleanCell(s)
	if s == "" {
		return ""
	}
	digits := nonDigits.ReplaceAllString(s, "")

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	return digits
}

// ValidMobile reports whether s is exactly 10 digits.
func ValidMobile(s string) bool {
	return mobilePattern.MatchString(s)
}

// NormalizeGender maps the common spellings to Male, Female or Other.
func NormalizeGender(s string) string {
	switch strings.ToLower(CleanCell(s)) {
	case "m", "male", "man", "boy":
		return "Male"
	case "f", "female", "woman", "girl":
		return "Female"
	case "":
		return ""
	default:
		return "Other"
	}
}

// NormalizeIdentifier trims an identifier and collapses inner whitespace.
func NormalizeIdentifier(s string) string {
	return spaceRuns.ReplaceAllString(CleanCell(s), " ")
}

// NormalizeCode is NormalizeIdentifier plus uppercasing. Resident, household
// and health ids are stored in this form, so "ap-rid-001" and "AP-RID-001"
// name the same resident.
func NormalizeCode(s string) string {
	return strings.ToUpper(NormalizeIdentifier(s))
}

// locationSuffixes are trailing words that field staff add inconsistently.
var locationSuffixes = []string{" mandal", " district", " phc", " secretariat"}

// NormalizePlace title-cases a location name and collapses whitespace, so
// "RAMPUR  mandal" and "rampur" both become "Rampur".
func NormalizePlace(s string) string {
	s = strings.ToLower(NormalizeIdentifier(s))
	for _, suffix := range locationSuffixes {
		if trimmed := strings.TrimSuffix(s, suffix); trimmed != "" {
			s = trimmed
		}
	}
	// Casers keep state, so each call gets its own.
	return cases.Title(language.English).String(s)
}

// NormalizePersonName title-cases a person's name.
func NormalizePersonName(s string) string {
	return cases.Title(language.English).String(strings.ToLower(NormalizeIdentifier(s)))
}
